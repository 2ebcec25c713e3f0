package quadtree

// HeightMap provides the ground height at the corners of the cells. A width x
// height map has (width+1) x (height+1) corners.
type HeightMap interface {
	HeightAtCorner(x, y int) float32
}

// TextureMap provides the texture alpha at the corners of the cells.
type TextureMap interface {
	TextureCount() int
	TextureAlphaAtCorner(texture, x, y int) uint8
}

// Unit is something standing on the map and occupying a Z range.
type Unit interface {
	// The Z where the unit starts.
	BaseZ() float32

	// The height of the unit above its base.
	ExtentZ() float32
}

// UnitLookup returns the units occupying a cell.
type UnitLookup interface {
	UnitsAt(x, y int) []Unit
}

// TextureHook is called for each node touched by a texture change.
type TextureHook func(m TextureMap, n *Node)

const (
	aggregateGround  = "ground"
	aggregateTexture = "texture"
	aggregateUnits   = "units"
)

// CellHeightChanged recomputes the ground aggregate of every node intersecting
// the given cell rectangle. Children are recomputed before their parent. On
// canvas trees the overall bounds are refreshed too.
func (t *Tree) CellHeightChanged(m HeightMap, x1, y1, x2, y2 int) {
	if t.Root() == NoNode || m == nil {
		return
	}

	r := NewRect(x1, y1, x2, y2)
	n := t.cellHeightChanged(m, t.Root(), r)
	instrumentNodeUpdates(aggregateGround, n)
}

func (t *Tree) cellHeightChanged(m HeightMap, id NodeID, r Rect) int {
	if !t.nodes[id].Intersects(r.Left, r.Top, r.Right, r.Bottom) {
		return 0
	}

	updated := 1
	for _, c := range t.nodes[id].children {
		if c != NoNode {
			updated += t.cellHeightChanged(m, c, r)
		}
	}

	n := &t.nodes[id]
	if n.IsLeaf() {
		l, top := n.Left, n.Top
		n.ground = Span(m.HeightAtCorner(l, top), m.HeightAtCorner(l+1, top)).
			Extend(m.HeightAtCorner(l+1, top+1)).
			Extend(m.HeightAtCorner(l, top+1))
	} else {
		n.ground = t.childrenUnion(n, (*Node).Ground)
	}

	// Ground trees never hold units so their bounds are the ground.
	n.updateBounds()
	return updated
}

// CellTextureChanged calls the texture hooks of the tree for every node
// intersecting the given cell rectangle, children before parents.
func (t *Tree) CellTextureChanged(m TextureMap, x1, y1, x2, y2 int) {
	if t.Root() == NoNode || m == nil {
		return
	}

	r := NewRect(x1, y1, x2, y2)
	n := t.cellTextureChanged(m, t.Root(), r)
	instrumentNodeUpdates(aggregateTexture, n)
}

func (t *Tree) cellTextureChanged(m TextureMap, id NodeID, r Rect) int {
	if !t.nodes[id].Intersects(r.Left, r.Top, r.Right, r.Bottom) {
		return 0
	}

	updated := 1
	for _, c := range t.nodes[id].children {
		if c != NoNode {
			updated += t.cellTextureChanged(m, c, r)
		}
	}

	for _, h := range t.textureHooks {
		h(m, &t.nodes[id])
	}
	return updated
}

// CellUnitsChanged recomputes the unit aggregate and the overall bounds of
// every node intersecting the given cell rectangle. It does nothing on ground
// trees.
func (t *Tree) CellUnitsChanged(u UnitLookup, x1, y1, x2, y2 int) {
	if t.kind != KindCanvas || t.Root() == NoNode || u == nil {
		return
	}

	r := NewRect(x1, y1, x2, y2)
	n := t.cellUnitsChanged(u, t.Root(), r)
	instrumentNodeUpdates(aggregateUnits, n)
}

func (t *Tree) cellUnitsChanged(u UnitLookup, id NodeID, r Rect) int {
	if !t.nodes[id].Intersects(r.Left, r.Top, r.Right, r.Bottom) {
		return 0
	}

	updated := 1
	for _, c := range t.nodes[id].children {
		if c != NoNode {
			updated += t.cellUnitsChanged(u, c, r)
		}
	}

	n := &t.nodes[id]
	if n.IsLeaf() {
		var units Interval
		for _, unit := range u.UnitsAt(n.Left, n.Top) {
			units = units.Union(Span(unit.BaseZ(), unit.BaseZ()+unit.ExtentZ()))
		}
		n.units = units
	} else {
		n.units = t.childrenUnion(n, (*Node).Units)
	}

	n.updateBounds()
	return updated
}

// Recompute refreshes every aggregate of the tree. units may be nil.
func (t *Tree) Recompute(m HeightMap, units UnitLookup) {
	maxX, maxY := t.width-1, t.height-1
	t.CellHeightChanged(m, 0, 0, maxX, maxY)
	t.CellUnitsChanged(units, 0, 0, maxX, maxY)
}

func (t *Tree) childrenUnion(n *Node, get func(*Node) Interval) Interval {
	var i Interval
	for _, c := range n.children {
		if c != NoNode {
			i = i.Union(get(&t.nodes[c]))
		}
	}
	return i
}

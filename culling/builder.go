package culling

import (
	"github.com/aukilabs/quadmap/quadtree"
	"github.com/go-gl/mathgl/mgl32"
)

// LOD accepts a node of at most MaxCells cells as a single block when it is
// further than Distance from the near plane.
type LOD struct {
	Distance float32
	MaxCells int
}

// DefaultLOD are the thresholds used by Builder when none are given.
var DefaultLOD = []LOD{
	{Distance: 240, MaxCells: 64},
	{Distance: 120, MaxCells: 16},
	{Distance: 40, MaxCells: 8},
	{Distance: 20, MaxCells: 2},
}

// CellRect is a block of cells added to a cell list.
type CellRect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"w"`
	Height int `json:"h"`
	Depth  int `json:"depth"`
}

// CellList is the result of a visibility query.
type CellList struct {
	Cells []CellRect `json:"cells"`

	// The extents of the added cells. They are -1 when the list is empty.
	MinX int `json:"min_x"`
	MinY int `json:"min_y"`
	MaxX int `json:"max_x"`
	MaxY int `json:"max_y"`

	// The number of nodes tested against the frustum.
	Visited int `json:"visited"`
}

// CellCount returns the number of cells covered by the list.
func (l CellList) CellCount() int {
	var n int
	for _, c := range l.Cells {
		n += c.Width * c.Height
	}
	return n
}

// Builder produces cell lists.
type Builder struct {
	Frustum Frustum

	// The LOD thresholds. DefaultLOD is used when nil.
	LOD []LOD

	// Only add single cells, never coarser blocks.
	DisableLOD bool
}

// VisibleCells walks the tree and returns the cells that are inside the
// frustum. Nodes whose heights are not computed yet are considered flat at
// Z = 0.
func (b *Builder) VisibleCells(t *quadtree.Tree) CellList {
	list := CellList{
		MinX: -1,
		MinY: -1,
		MaxX: -1,
		MaxY: -1,
	}

	if root := t.Root(); root != quadtree.NoNode {
		b.addVisibleCells(&list, t, root)
	}

	instrumentCellList(list)
	return list
}

func (b *Builder) addVisibleCells(list *CellList, t *quadtree.Tree, id quadtree.NodeID) {
	list.Visited++

	min, max := nodeBox(t, id)
	switch b.Frustum.BoxVisibility(min, max) {
	case Outside:
		return

	case Inside:
		b.addCells(list, t, id)

	case Partial:
		if b.doLOD(t, id) {
			b.addCells(list, t, id)
			return
		}

		for _, c := range t.Children(id) {
			if c != quadtree.NoNode {
				b.addVisibleCells(list, t, c)
			}
		}
	}
}

func (b *Builder) addCells(list *CellList, t *quadtree.Tree, id quadtree.NodeID) {
	if !b.doLOD(t, id) {
		for _, c := range t.Children(id) {
			if c != quadtree.NoNode {
				b.addCells(list, t, c)
			}
		}
		return
	}

	n := t.Node(id)
	list.Cells = append(list.Cells, CellRect{
		X:      n.Left,
		Y:      n.Top,
		Width:  n.Width(),
		Height: n.Height(),
		Depth:  n.Depth,
	})

	if n.Left < list.MinX || list.MinX < 0 {
		list.MinX = n.Left
	}
	if n.Right > list.MaxX || list.MaxX < 0 {
		list.MaxX = n.Right
	}
	if n.Top < list.MinY || list.MinY < 0 {
		list.MinY = n.Top
	}
	if n.Bottom > list.MaxY || list.MaxY < 0 {
		list.MaxY = n.Bottom
	}
}

func (b *Builder) doLOD(t *quadtree.Tree, id quadtree.NodeID) bool {
	n := t.Node(id)
	if n.IsLeaf() {
		return true
	}

	if b.DisableLOD {
		return false
	}

	lods := b.LOD
	if lods == nil {
		lods = DefaultLOD
	}

	min, max := nodeBox(t, id)
	d := MaxDistance(b.Frustum[PlaneNear], min, max)
	count := n.Size()

	for _, l := range lods {
		if d > l.Distance && count <= l.MaxCells {
			return true
		}
	}
	return false
}

func nodeBox(t *quadtree.Tree, id quadtree.NodeID) (min, max mgl32.Vec3) {
	min, max, ok := t.BoundingBox(id)
	if ok {
		return min, max
	}

	n := t.Node(id)
	min = mgl32.Vec3{float32(n.Left), -float32(n.Bottom + 1), 0}
	max = mgl32.Vec3{float32(n.Right + 1), -float32(n.Top), 0}
	return min, max
}

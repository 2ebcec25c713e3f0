package quadtree

// NodeID is the handle of a node inside its tree.
type NodeID int32

// NoNode marks a missing child.
const NoNode NodeID = -1

// Child slots.
const (
	TopLeft = iota
	TopRight
	BottomLeft
	BottomRight
)

// Node is a quadtree node. It covers an inclusive rectangle of cells and
// carries the height aggregates of the cells below it.
type Node struct {
	Rect

	// The depth of the node. The root is at depth 0.
	Depth int

	children [4]NodeID
	ground   Interval
	units    Interval
	bounds   Interval
}

// Children returns the child handles in the TopLeft, TopRight, BottomLeft,
// BottomRight order. Missing children are NoNode.
func (n *Node) Children() [4]NodeID {
	return n.children
}

// Ground returns the min/max ground height below the node. It is empty until
// the heights are computed for the first time.
func (n *Node) Ground() Interval {
	return n.ground
}

func (n *Node) GroundMinZ() float32 {
	return n.ground.Min
}

func (n *Node) GroundMaxZ() float32 {
	return n.ground.Max
}

// Units returns the Z range occupied by units below the node. It is empty when
// no unit is there.
func (n *Node) Units() Interval {
	return n.units
}

// UnitMinZ returns the lowest unit Z, or 0 when there is no unit.
func (n *Node) UnitMinZ() float32 {
	return n.units.Min
}

// UnitMaxZ returns the highest unit Z, or 0 when there is no unit.
func (n *Node) UnitMaxZ() float32 {
	return n.units.Max
}

// Bounds returns the union of the ground and unit intervals.
func (n *Node) Bounds() Interval {
	return n.bounds
}

func (n *Node) MinZ() float32 {
	return n.bounds.Min
}

func (n *Node) MaxZ() float32 {
	return n.bounds.Max
}

func (n *Node) updateBounds() {
	if n.units.Empty() {
		n.bounds = n.ground
		return
	}
	n.bounds = n.ground.Union(n.units)
}

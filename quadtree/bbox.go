package quadtree

import "github.com/go-gl/mathgl/mgl32"

// GroundBoundingBox returns the world space box of a node using its ground
// interval. A cell (x, y) covers [x, x+1] x [-(y+1), -y]. ok is false when the
// node is unknown or its heights are not computed yet.
func (t *Tree) GroundBoundingBox(id NodeID) (min, max mgl32.Vec3, ok bool) {
	n := t.Node(id)
	if n == nil {
		return min, max, false
	}
	return box(n.Rect, n.ground)
}

// BoundingBox returns the world space box of a node using its overall bounds.
// On ground trees it is the same as GroundBoundingBox.
func (t *Tree) BoundingBox(id NodeID) (min, max mgl32.Vec3, ok bool) {
	n := t.Node(id)
	if n == nil {
		return min, max, false
	}
	return box(n.Rect, n.bounds)
}

func box(r Rect, z Interval) (min, max mgl32.Vec3, ok bool) {
	if z.Empty() {
		return min, max, false
	}

	min = mgl32.Vec3{float32(r.Left), -float32(r.Bottom + 1), z.Min}
	max = mgl32.Vec3{float32(r.Right + 1), -float32(r.Top), z.Max}
	return min, max, true
}

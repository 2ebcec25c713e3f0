// Package culling builds the list of map cells visible from a camera, using
// the bounds maintained by a quadtree to skip whole subtrees.
package culling

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Plane indexes in a Frustum.
const (
	PlaneRight = iota
	PlaneLeft
	PlaneBottom
	PlaneTop
	PlaneFar
	PlaneNear
)

// Frustum is a view frustum described by 6 planes (a, b, c, d) where
// a*x + b*y + c*z + d is the distance of (x, y, z) to the plane. The normals
// point inside the frustum.
type Frustum [6]mgl32.Vec4

// FrustumFromMatrix extracts the normalized planes of a combined projection
// and view matrix.
func FrustumFromMatrix(m mgl32.Mat4) Frustum {
	row0, row1, row2, row3 := m.Rows()

	f := Frustum{
		PlaneRight:  row3.Sub(row0),
		PlaneLeft:   row3.Add(row0),
		PlaneBottom: row3.Add(row1),
		PlaneTop:    row3.Sub(row1),
		PlaneFar:    row3.Sub(row2),
		PlaneNear:   row3.Add(row2),
	}

	for i, p := range f {
		if l := p.Vec3().Len(); l != 0 {
			f[i] = p.Mul(1 / l)
		}
	}
	return f
}

// DistanceFromPlane returns the signed distance of pos to the plane. It is
// positive on the side the normal points to.
func DistanceFromPlane(plane mgl32.Vec4, pos mgl32.Vec3) float32 {
	return plane.Vec3().Dot(pos) + plane[3]
}

// Visibility describes how much of a box is inside a frustum.
type Visibility int

const (
	Outside Visibility = iota
	Partial
	Inside
)

func (v Visibility) String() string {
	switch v {
	case Outside:
		return "outside"
	case Partial:
		return "partial"
	default:
		return "inside"
	}
}

// BoxVisibility tells whether the axis aligned box going from min to max is
// outside, partially inside or fully inside the frustum.
func (f Frustum) BoxVisibility(min, max mgl32.Vec3) Visibility {
	res := Inside

	for _, p := range f {
		// The corner furthest along the normal and the one furthest against
		// it.
		var pos, neg mgl32.Vec3
		for i := 0; i < 3; i++ {
			if p[i] >= 0 {
				pos[i], neg[i] = max[i], min[i]
			} else {
				pos[i], neg[i] = min[i], max[i]
			}
		}

		if DistanceFromPlane(p, pos) < 0 {
			return Outside
		}
		if DistanceFromPlane(p, neg) < 0 {
			res = Partial
		}
	}
	return res
}

// MaxDistance returns the greatest distance between the plane and the corners
// of the box.
func MaxDistance(plane mgl32.Vec4, min, max mgl32.Vec3) float32 {
	d := math32.Inf(-1)
	for i := 0; i < 8; i++ {
		corner := min
		if i&1 != 0 {
			corner[0] = max[0]
		}
		if i&2 != 0 {
			corner[1] = max[1]
		}
		if i&4 != 0 {
			corner[2] = max[2]
		}
		d = math32.Max(d, DistanceFromPlane(plane, corner))
	}
	return d
}

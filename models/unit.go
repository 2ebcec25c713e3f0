package models

import (
	"github.com/aukilabs/quadmap/quadtree"
	"github.com/chewxy/math32"
)

// Unit is an object standing on the canvas. Positions and sizes are in cell
// units, X and Y being the top left corner of the unit.
type Unit struct {
	ID     uint32  `json:"id"`
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Width  float32 `json:"width"`
	Height float32 `json:"height"`

	// The Z of the bottom of the unit.
	Z float32 `json:"z"`

	// The height of the unit.
	Depth float32 `json:"depth"`
}

func (u *Unit) BaseZ() float32 {
	return u.Z
}

func (u *Unit) ExtentZ() float32 {
	return u.Depth
}

// Center returns the center of the unit in cell units.
func (u *Unit) Center() (x, y float32) {
	return u.X + u.Width/2, u.Y + u.Height/2
}

// Cells returns the rectangle of the cells the unit occupies.
func (u *Unit) Cells() quadtree.Rect {
	left := int(math32.Floor(u.X))
	top := int(math32.Floor(u.Y))

	return quadtree.Rect{
		Left:   left,
		Top:    top,
		Right:  max(int(math32.Ceil(u.X+u.Width))-1, left),
		Bottom: max(int(math32.Ceil(u.Y+u.Height))-1, top),
	}
}

package models

import (
	"sort"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadmap/quadtree"
)

// Canvas tracks the units standing on a map and the cells each of them
// occupies. Edits are forwarded to the trees of the canvas collection.
type Canvas struct {
	m          *Map
	collection *quadtree.Collection
	ids        SequentialIDGenerator
	units      map[uint32]*Unit
	cells      [][]quadtree.Unit
}

// NewCanvas creates an empty canvas over the given map. collection may be
// nil.
func NewCanvas(m *Map, collection *quadtree.Collection) *Canvas {
	return &Canvas{
		m:          m,
		collection: collection,
		units:      make(map[uint32]*Unit),
		cells:      make([][]quadtree.Unit, m.Width()*m.Height()),
	}
}

// Map returns the map the canvas stands on.
func (c *Canvas) Map() *Map {
	return c.m
}

// UnitsAt returns a copy of the units occupying the given cell.
func (c *Canvas) UnitsAt(x, y int) []quadtree.Unit {
	if x < 0 || y < 0 || x >= c.m.Width() || y >= c.m.Height() {
		return nil
	}

	cell := c.cells[y*c.m.Width()+x]
	if len(cell) == 0 {
		return nil
	}

	units := make([]quadtree.Unit, len(cell))
	copy(units, cell)
	return units
}

// Len returns the number of units.
func (c *Canvas) Len() int {
	return len(c.units)
}

// Unit returns a copy of the unit with the given id.
func (c *Canvas) Unit(id uint32) (Unit, bool) {
	u, ok := c.units[id]
	if !ok {
		return Unit{}, false
	}
	return *u, true
}

// Units returns a copy of all the units, sorted by id.
func (c *Canvas) Units() []Unit {
	units := make([]Unit, 0, len(c.units))
	for _, u := range c.units {
		units = append(units, *u)
	}

	sort.Slice(units, func(i, j int) bool {
		return units[i].ID < units[j].ID
	})
	return units
}

func (c *Canvas) checkUnit(u Unit) error {
	if u.Width <= 0 || u.Height <= 0 || u.Depth < 0 {
		return errors.New("invalid unit size").
			WithType(ErrTypeInvalidUnit).
			WithTag("width", u.Width).
			WithTag("height", u.Height).
			WithTag("depth", u.Depth)
	}

	if u.X < 0 || u.Y < 0 ||
		u.X+u.Width > float32(c.m.Width()) ||
		u.Y+u.Height > float32(c.m.Height()) {
		return errors.New("unit out of map").
			WithType(ErrTypeOutOfMap).
			WithTag("x", u.X).
			WithTag("y", u.Y).
			WithTag("width", u.Width).
			WithTag("height", u.Height)
	}
	return nil
}

// AddUnit adds a unit and assigns it a new id. The id of u is ignored.
func (c *Canvas) AddUnit(u Unit) (Unit, error) {
	if err := c.checkUnit(u); err != nil {
		return Unit{}, err
	}

	unit := u
	unit.ID = c.ids.New()
	c.units[unit.ID] = &unit
	c.addToCells(&unit)

	instrumentCanvasUnits(len(c.units))
	return unit, nil
}

// PlaceUnit adds a unit with its base on the ground at its center.
func (c *Canvas) PlaceUnit(u Unit) (Unit, error) {
	u.Z = c.m.HeightAtPoint(u.Center())
	return c.AddUnit(u)
}

// MoveUnit moves a unit to a new position and base Z.
func (c *Canvas) MoveUnit(id uint32, x, y, z float32) (Unit, error) {
	u, ok := c.units[id]
	if !ok {
		return Unit{}, errors.New("unit not found").
			WithType(ErrTypeUnitNotFound).
			WithTag("unit_id", id)
	}

	moved := *u
	moved.X, moved.Y, moved.Z = x, y, z
	if err := c.checkUnit(moved); err != nil {
		return Unit{}, err
	}

	c.removeFromCells(u)
	*u = moved
	c.addToCells(u)
	return moved, nil
}

// RemoveUnit removes a unit. Its id is reused by later units.
func (c *Canvas) RemoveUnit(id uint32) (Unit, error) {
	u, ok := c.units[id]
	if !ok {
		return Unit{}, errors.New("unit not found").
			WithType(ErrTypeUnitNotFound).
			WithTag("unit_id", id)
	}

	c.removeFromCells(u)
	delete(c.units, id)
	c.ids.Reuse(id)

	instrumentCanvasUnits(len(c.units))
	return *u, nil
}

func (c *Canvas) addToCells(u *Unit) {
	r := u.Cells()
	for y := r.Top; y <= r.Bottom; y++ {
		for x := r.Left; x <= r.Right; x++ {
			i := y*c.m.Width() + x
			c.cells[i] = append(c.cells[i], u)
		}
	}
	c.cellUnitsChanged(r)
}

func (c *Canvas) removeFromCells(u *Unit) {
	r := u.Cells()
	for y := r.Top; y <= r.Bottom; y++ {
		for x := r.Left; x <= r.Right; x++ {
			i := y*c.m.Width() + x
			cell := c.cells[i]

			for j, cu := range cell {
				if cu == quadtree.Unit(u) {
					cell = append(cell[:j], cell[j+1:]...)
					break
				}
			}

			if len(cell) == 0 {
				cell = nil
			}
			c.cells[i] = cell
		}
	}
	c.cellUnitsChanged(r)
}

func (c *Canvas) cellUnitsChanged(r quadtree.Rect) {
	instrumentMapEdit(editKindUnits)
	if c.collection != nil {
		c.collection.CellUnitsChanged(c, r.Left, r.Top, r.Right, r.Bottom)
	}
}

package models

import (
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadmap/quadtree"
)

const (
	mapCollectionName    = "map"
	canvasCollectionName = "canvas"
)

// ChangeKind describes what changed in a region of the world.
type ChangeKind string

const (
	ChangeHeight  ChangeKind = "height"
	ChangeTexture ChangeKind = "texture"
	ChangeUnits   ChangeKind = "units"
	ChangeReload  ChangeKind = "reload"
)

// Change is a notification sent to subscribers after an edit.
type Change struct {
	Kind ChangeKind    `json:"kind"`
	Rect quadtree.Rect `json:"rect"`
}

// NodeBounds describes the bounds of a quadtree node.
type NodeBounds struct {
	Rect   quadtree.Rect     `json:"rect"`
	Depth  int               `json:"depth"`
	Ground quadtree.Interval `json:"ground"`
	Units  quadtree.Interval `json:"units"`
	Bounds quadtree.Interval `json:"bounds"`
}

// WorldOption configures a world.
type WorldOption func(*worldOptions)

type worldOptions struct {
	textureCount      int
	disableCanvasTree bool
}

// WithTextureCount sets the number of textures of the map.
func WithTextureCount(n int) WorldOption {
	return func(o *worldOptions) {
		o.textureCount = n
	}
}

// WithoutCanvasTree makes the world only maintain a ground tree. Unit bounds
// are then not tracked.
func WithoutCanvasTree() WorldOption {
	return func(o *worldOptions) {
		o.disableCanvasTree = true
	}
}

// World owns a map, the units standing on it and the quadtrees indexing both.
// It is safe for concurrent use.
type World struct {
	mutex   sync.RWMutex
	options worldOptions

	registry         *quadtree.Registry
	mapCollection    *quadtree.Collection
	canvasCollection *quadtree.Collection

	m          *Map
	canvas     *Canvas
	groundTree *quadtree.Tree
	canvasTree *quadtree.Tree

	subscribersMutex sync.RWMutex
	subscriberIDs    SequentialIDGenerator
	subscribers      map[uint32]func(Change)
}

// NewWorld creates a flat world of width x height cells.
func NewWorld(width, height int, options ...WorldOption) (*World, error) {
	w := &World{
		registry:    quadtree.NewRegistry(),
		subscribers: make(map[uint32]func(Change)),
	}

	for _, o := range options {
		o(&w.options)
	}

	w.mapCollection = w.registry.NewCollection(mapCollectionName)
	w.canvasCollection = w.registry.NewCollection(canvasCollectionName)

	s, err := w.build(width, height)
	if err != nil {
		w.mapCollection.Close()
		w.canvasCollection.Close()
		return nil, err
	}

	w.install(s)
	return w, nil
}

// worldState is everything rebuilt by a reload.
type worldState struct {
	m          *Map
	canvas     *Canvas
	groundTree *quadtree.Tree
	canvasTree *quadtree.Tree
}

// build creates a flat map of width x height cells and its trees without
// touching the current state of the world.
func (w *World) build(width, height int) (worldState, error) {
	if err := quadtree.CheckDimensions(width, height); err != nil {
		return worldState{}, err
	}

	m, err := NewMap(width, height, w.options.textureCount, w.mapCollection)
	if err != nil {
		return worldState{}, err
	}

	groundTree, err := w.registry.NewTree(quadtree.KindGround, width, height)
	if err != nil {
		return worldState{}, err
	}

	var canvasTree *quadtree.Tree
	if !w.options.disableCanvasTree {
		if canvasTree, err = w.registry.NewTree(quadtree.KindCanvas, width, height); err != nil {
			groundTree.Release()
			return worldState{}, err
		}
	}

	canvas := NewCanvas(m, w.canvasCollection)
	groundTree.Recompute(m, nil)
	if canvasTree != nil {
		canvasTree.Recompute(m, canvas)
	}

	return worldState{
		m:          m,
		canvas:     canvas,
		groundTree: groundTree,
		canvasTree: canvasTree,
	}, nil
}

// install releases the current trees and replaces them with the ones of s.
func (w *World) install(s worldState) {
	w.releaseTrees()

	w.mapCollection.RegisterTree(s.groundTree)
	if s.canvasTree != nil {
		w.mapCollection.RegisterTree(s.canvasTree)
		w.canvasCollection.RegisterTree(s.canvasTree)
	}

	w.m = s.m
	w.canvas = s.canvas
	w.groundTree = s.groundTree
	w.canvasTree = s.canvasTree

	logs.WithTag("width", s.m.Width()).
		WithTag("height", s.m.Height()).
		WithTag("canvas_tree", s.canvasTree != nil).
		Info("world built")
}

func (w *World) releaseTrees() {
	if w.groundTree != nil {
		w.groundTree.Release()
		w.groundTree = nil
	}

	if w.canvasTree != nil {
		w.canvasTree.Release()
		w.canvasTree = nil
	}
}

// Reload replaces the world with a flat one of the given size. All units are
// dropped. On error the world is left unchanged.
func (w *World) Reload(width, height int) error {
	if err := w.reload(width, height); err != nil {
		return err
	}

	w.notify(Change{
		Kind: ChangeReload,
		Rect: quadtree.Rect{Right: width - 1, Bottom: height - 1},
	})
	return nil
}

func (w *World) reload(width, height int) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	s, err := w.build(width, height)
	if err != nil {
		return errors.New("reloading world failed").
			WithTag("width", width).
			WithTag("height", height).
			Wrap(err)
	}

	w.install(s)
	return nil
}

// Close releases the trees of the world and its collections.
func (w *World) Close() {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.releaseTrees()
	w.mapCollection.Close()
	w.canvasCollection.Close()
}

// Width returns the number of cell columns.
func (w *World) Width() int {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return w.m.Width()
}

// Height returns the number of cell rows.
func (w *World) Height() int {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return w.m.Height()
}

// TextureCount returns the number of textures of the map.
func (w *World) TextureCount() int {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return w.m.TextureCount()
}

// Checksum returns the hash of the map content.
func (w *World) Checksum() string {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return w.m.Checksum()
}

// HasCanvasTree reports whether unit bounds are tracked.
func (w *World) HasCanvasTree() bool {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return w.canvasTree != nil
}

func (w *World) HeightAtCorner(x, y int) float32 {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return w.m.HeightAtCorner(x, y)
}

func (w *World) HeightAtPoint(x, y float32) float32 {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return w.m.HeightAtPoint(x, y)
}

// SetHeightAtCorner sets the height of a corner.
func (w *World) SetHeightAtCorner(x, y int, h float32) error {
	return w.SetHeightsInRect(x, y, x, y, func(int, int) float32 {
		return h
	})
}

// SetHeightsInRect sets the heights of the corners from (x1, y1) to
// (x2, y2).
func (w *World) SetHeightsInRect(x1, y1, x2, y2 int, height func(x, y int) float32) error {
	return w.edit(func() (Change, error) {
		if err := w.m.SetHeightsInRect(x1, y1, x2, y2, height); err != nil {
			return Change{}, err
		}

		cells, _ := w.m.CellsTouchingCorners(x1, y1, x2, y2)
		return Change{Kind: ChangeHeight, Rect: cells}, nil
	})
}

// SetTexMapAlpha sets the alpha of a texture at a corner.
func (w *World) SetTexMapAlpha(texture, x, y int, alpha uint8) error {
	return w.SetTextures(x, y, []int{texture}, []uint8{alpha})
}

// SetTextures sets the alpha of several textures at a corner.
func (w *World) SetTextures(x, y int, textures []int, alphas []uint8) error {
	return w.edit(func() (Change, error) {
		if err := w.m.SetTextures(x, y, textures, alphas); err != nil {
			return Change{}, err
		}

		cells, _ := w.m.CellsTouchingCorners(x, y, x, y)
		return Change{Kind: ChangeTexture, Rect: cells}, nil
	})
}

func (w *World) TextureAlphaAtCorner(texture, x, y int) uint8 {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return w.m.TextureAlphaAtCorner(texture, x, y)
}

// AddUnit adds a unit at the Z it carries.
func (w *World) AddUnit(u Unit) (Unit, error) {
	var added Unit

	err := w.edit(func() (Change, error) {
		var err error
		if added, err = w.canvas.AddUnit(u); err != nil {
			return Change{}, err
		}
		return Change{Kind: ChangeUnits, Rect: added.Cells()}, nil
	})
	return added, err
}

// PlaceUnit adds a unit standing on the ground.
func (w *World) PlaceUnit(u Unit) (Unit, error) {
	var added Unit

	err := w.edit(func() (Change, error) {
		var err error
		if added, err = w.canvas.PlaceUnit(u); err != nil {
			return Change{}, err
		}
		return Change{Kind: ChangeUnits, Rect: added.Cells()}, nil
	})
	return added, err
}

// MoveUnit moves a unit. When z is nil, the unit is placed on the ground.
func (w *World) MoveUnit(id uint32, x, y float32, z *float32) (Unit, error) {
	var moved Unit

	err := w.edit(func() (Change, error) {
		prev, ok := w.canvas.Unit(id)
		if !ok {
			return Change{}, errors.New("unit not found").
				WithType(ErrTypeUnitNotFound).
				WithTag("unit_id", id)
		}

		var newZ float32
		if z != nil {
			newZ = *z
		} else {
			newZ = w.m.HeightAtPoint(x+prev.Width/2, y+prev.Height/2)
		}

		var err error
		if moved, err = w.canvas.MoveUnit(id, x, y, newZ); err != nil {
			return Change{}, err
		}
		return Change{Kind: ChangeUnits, Rect: prev.Cells().Union(moved.Cells())}, nil
	})
	return moved, err
}

// RemoveUnit removes a unit.
func (w *World) RemoveUnit(id uint32) error {
	return w.edit(func() (Change, error) {
		removed, err := w.canvas.RemoveUnit(id)
		if err != nil {
			return Change{}, err
		}
		return Change{Kind: ChangeUnits, Rect: removed.Cells()}, nil
	})
}

// Unit returns the unit with the given id.
func (w *World) Unit(id uint32) (Unit, bool) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return w.canvas.Unit(id)
}

// Units returns all the units, sorted by id.
func (w *World) Units() []Unit {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return w.canvas.Units()
}

// Snapshot is a consistent copy of the content of a world.
type Snapshot struct {
	Width    int
	Height   int
	Heights  []float32
	Alphas   [][]uint8
	Units    []Unit
	Checksum string
}

// Snapshot copies the map and the units under a single read lock.
func (w *World) Snapshot() Snapshot {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return Snapshot{
		Width:    w.m.Width(),
		Height:   w.m.Height(),
		Heights:  w.m.Heights(),
		Alphas:   w.m.Alphas(),
		Units:    w.canvas.Units(),
		Checksum: w.m.Checksum(),
	}
}

// Bounds returns the bounds of the smallest node containing the given cell
// rectangle.
func (w *World) Bounds(r quadtree.Rect) (NodeBounds, error) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	t := w.tree()
	id := t.Find(r)
	if id == quadtree.NoNode {
		return NodeBounds{}, errors.New("rectangle out of map").
			WithType(ErrTypeOutOfMap).
			WithTag("rect", r)
	}

	n := t.Node(id)
	return NodeBounds{
		Rect:   n.Rect,
		Depth:  n.Depth,
		Ground: n.Ground(),
		Units:  n.Units(),
		Bounds: n.Bounds(),
	}, nil
}

// View calls fn with the tree holding the most complete bounds: the canvas
// tree, or the ground tree when there is none. The tree must not be used after
// fn returns.
func (w *World) View(fn func(t *quadtree.Tree)) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	fn(w.tree())
}

func (w *World) tree() *quadtree.Tree {
	if w.canvasTree != nil {
		return w.canvasTree
	}
	return w.groundTree
}

// Subscribe registers a function called after each edit. fn must not block
// nor call back into the world. The returned function cancels the
// subscription.
func (w *World) Subscribe(fn func(Change)) func() {
	w.subscribersMutex.Lock()
	defer w.subscribersMutex.Unlock()

	id := w.subscriberIDs.New()
	w.subscribers[id] = fn
	instrumentSubscribers(len(w.subscribers))

	var once sync.Once
	return func() {
		once.Do(func() {
			w.subscribersMutex.Lock()
			defer w.subscribersMutex.Unlock()

			delete(w.subscribers, id)
			w.subscriberIDs.Reuse(id)
			instrumentSubscribers(len(w.subscribers))
		})
	}
}

func (w *World) edit(fn func() (Change, error)) error {
	w.mutex.Lock()
	c, err := fn()
	w.mutex.Unlock()

	if err != nil {
		return err
	}

	w.notify(c)
	return nil
}

func (w *World) notify(c Change) {
	w.subscribersMutex.RLock()
	defer w.subscribersMutex.RUnlock()

	for _, fn := range w.subscribers {
		fn(c)
	}
}

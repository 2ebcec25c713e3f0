package models

import (
	"sync"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadmap/quadtree"
	"github.com/stretchr/testify/require"
)

type changeRecorder struct {
	mutex   sync.Mutex
	changes []Change
}

func (r *changeRecorder) record(c Change) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.changes = append(r.changes, c)
}

func (r *changeRecorder) get() []Change {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return append([]Change(nil), r.changes...)
}

func newTestWorld(t *testing.T, options ...WorldOption) *World {
	w, err := NewWorld(8, 8, options...)
	require.NoError(t, err)
	t.Cleanup(w.Close)
	return w
}

func TestNewWorld(t *testing.T) {
	t.Run("new world", func(t *testing.T) {
		w := newTestWorld(t, WithTextureCount(2))
		require.Equal(t, 8, w.Width())
		require.Equal(t, 8, w.Height())
		require.Equal(t, 2, w.TextureCount())
		require.True(t, w.HasCanvasTree())
		require.Len(t, w.Checksum(), 66)
	})

	t.Run("invalid dimensions", func(t *testing.T) {
		_, err := NewWorld(0, 0)
		require.Error(t, err)
		require.True(t, errors.IsType(err, quadtree.ErrTypeInvalidDimensions))
	})

	t.Run("without canvas tree", func(t *testing.T) {
		w := newTestWorld(t, WithoutCanvasTree())
		require.False(t, w.HasCanvasTree())

		_, err := w.AddUnit(Unit{Width: 1, Height: 1, Z: 3, Depth: 1})
		require.NoError(t, err)

		b, err := w.Bounds(quadtree.Rect{Right: 7, Bottom: 7})
		require.NoError(t, err)
		require.True(t, b.Units.Empty())
		require.Equal(t, quadtree.Span(0, 0), b.Bounds)

		w.View(func(tree *quadtree.Tree) {
			require.Equal(t, quadtree.KindGround, tree.Kind())
		})
	})
}

func TestWorldEdits(t *testing.T) {
	t.Run("heights", func(t *testing.T) {
		w := newTestWorld(t)

		var rec changeRecorder
		cancel := w.Subscribe(rec.record)
		defer cancel()

		err := w.SetHeightAtCorner(4, 4, 6)
		require.NoError(t, err)
		require.Equal(t, float32(6), w.HeightAtCorner(4, 4))
		require.Equal(t, float32(3), w.HeightAtPoint(3.5, 4))
		require.Equal(t, []Change{
			{
				Kind: ChangeHeight,
				Rect: quadtree.Rect{Left: 3, Top: 3, Right: 4, Bottom: 4},
			},
		}, rec.get())

		b, err := w.Bounds(quadtree.Rect{Left: 4, Top: 4, Right: 4, Bottom: 4})
		require.NoError(t, err)
		require.True(t, b.Rect.IsLeaf())
		require.Equal(t, quadtree.Span(0, 6), b.Ground)
	})

	t.Run("failed edits are not notified", func(t *testing.T) {
		w := newTestWorld(t)

		var rec changeRecorder
		cancel := w.Subscribe(rec.record)
		defer cancel()

		err := w.SetHeightAtCorner(9, 0, 1)
		require.True(t, errors.IsType(err, ErrTypeOutOfMap))

		err = w.SetTexMapAlpha(0, 0, 0, 1)
		require.True(t, errors.IsType(err, ErrTypeInvalidTexture))

		err = w.RemoveUnit(12)
		require.True(t, errors.IsType(err, ErrTypeUnitNotFound))

		_, err = w.MoveUnit(12, 0, 0, nil)
		require.True(t, errors.IsType(err, ErrTypeUnitNotFound))
		require.Empty(t, rec.get())
	})

	t.Run("textures", func(t *testing.T) {
		w := newTestWorld(t, WithTextureCount(1))

		var rec changeRecorder
		cancel := w.Subscribe(rec.record)
		defer cancel()

		err := w.SetTexMapAlpha(0, 0, 0, 255)
		require.NoError(t, err)
		require.Equal(t, uint8(255), w.TextureAlphaAtCorner(0, 0, 0))
		require.Equal(t, []Change{
			{Kind: ChangeTexture, Rect: quadtree.Rect{}},
		}, rec.get())
	})

	t.Run("units", func(t *testing.T) {
		w := newTestWorld(t)
		require.NoError(t, w.SetHeightsInRect(0, 0, 8, 8, func(x, y int) float32 {
			return 1
		}))

		var rec changeRecorder
		cancel := w.Subscribe(rec.record)
		defer cancel()

		u, err := w.PlaceUnit(Unit{X: 1, Y: 1, Width: 1, Height: 1, Depth: 2})
		require.NoError(t, err)
		require.Equal(t, float32(1), u.Z)

		b, err := w.Bounds(quadtree.Rect{Left: 1, Top: 1, Right: 1, Bottom: 1})
		require.NoError(t, err)
		require.Equal(t, quadtree.Span(1, 3), b.Units)
		require.Equal(t, quadtree.Span(1, 3), b.Bounds)

		z := float32(5)
		moved, err := w.MoveUnit(u.ID, 6, 6, &z)
		require.NoError(t, err)
		require.Equal(t, float32(5), moved.Z)

		moved, err = w.MoveUnit(u.ID, 6, 5, nil)
		require.NoError(t, err)
		require.Equal(t, float32(1), moved.Z)

		stored, ok := w.Unit(u.ID)
		require.True(t, ok)
		require.Equal(t, moved, stored)
		require.Equal(t, []Unit{moved}, w.Units())

		require.NoError(t, w.RemoveUnit(u.ID))
		require.Empty(t, w.Units())

		require.Equal(t, []Change{
			{Kind: ChangeUnits, Rect: quadtree.Rect{Left: 1, Top: 1, Right: 1, Bottom: 1}},
			{Kind: ChangeUnits, Rect: quadtree.Rect{Left: 1, Top: 1, Right: 6, Bottom: 6}},
			{Kind: ChangeUnits, Rect: quadtree.Rect{Left: 6, Top: 5, Right: 6, Bottom: 6}},
			{Kind: ChangeUnits, Rect: quadtree.Rect{Left: 6, Top: 5, Right: 6, Bottom: 5}},
		}, rec.get())
	})
}

func TestWorldSubscribe(t *testing.T) {
	w := newTestWorld(t)

	var a, b changeRecorder
	cancelA := w.Subscribe(a.record)
	cancelB := w.Subscribe(b.record)
	defer cancelB()

	require.NoError(t, w.SetHeightAtCorner(0, 0, 1))
	cancelA()
	cancelA()
	require.NoError(t, w.SetHeightAtCorner(0, 0, 2))

	require.Len(t, a.get(), 1)
	require.Len(t, b.get(), 2)
}

func TestWorldReload(t *testing.T) {
	w := newTestWorld(t)

	var trees []*quadtree.Tree
	w.View(func(tree *quadtree.Tree) {
		trees = append(trees, tree)
	})

	_, err := w.AddUnit(Unit{Width: 1, Height: 1, Depth: 1})
	require.NoError(t, err)
	require.NoError(t, w.SetHeightAtCorner(1, 1, 4))

	var rec changeRecorder
	cancel := w.Subscribe(rec.record)
	defer cancel()

	err = w.Reload(4, 2)
	require.NoError(t, err)
	require.True(t, trees[0].Released())
	require.Equal(t, 2, w.mapCollection.Len())
	require.Equal(t, 1, w.canvasCollection.Len())
	require.False(t, w.mapCollection.Contains(trees[0]))
	require.False(t, w.canvasCollection.Contains(trees[0]))

	require.Equal(t, 4, w.Width())
	require.Equal(t, 2, w.Height())
	require.Empty(t, w.Units())
	require.Zero(t, w.HeightAtCorner(1, 1))
	require.Equal(t, []Change{
		{Kind: ChangeReload, Rect: quadtree.Rect{Right: 3, Bottom: 1}},
	}, rec.get())

	err = w.Reload(-1, 2)
	require.True(t, errors.IsType(err, quadtree.ErrTypeInvalidDimensions))
	require.Equal(t, 4, w.Width())
}

func TestWorldReloadOversized(t *testing.T) {
	t.Run("world is left unchanged", func(t *testing.T) {
		w := newTestWorld(t)
		require.NoError(t, w.SetHeightAtCorner(1, 1, 4))
		checksum := w.Checksum()

		var trees []*quadtree.Tree
		w.View(func(tree *quadtree.Tree) {
			trees = append(trees, tree)
		})

		var rec changeRecorder
		cancel := w.Subscribe(rec.record)
		defer cancel()

		for _, dims := range [][2]int{
			{quadtree.MaxDimension + 1, 4},
			{1 << 40, 1 << 40},
		} {
			err := w.Reload(dims[0], dims[1])
			require.True(t, errors.IsType(err, quadtree.ErrTypeInvalidDimensions))
		}

		require.Equal(t, 8, w.Width())
		require.Equal(t, 8, w.Height())
		require.Equal(t, checksum, w.Checksum())
		require.Equal(t, float32(4), w.HeightAtCorner(1, 1))
		require.False(t, trees[0].Released())
		require.True(t, w.mapCollection.Contains(trees[0]))
		require.Empty(t, rec.get())
	})

	t.Run("world stays usable", func(t *testing.T) {
		w := newTestWorld(t)

		err := w.Reload(quadtree.MaxDimension+1, quadtree.MaxDimension+1)
		require.Error(t, err)

		require.NoError(t, w.Reload(2, 2))
		require.Equal(t, 2, w.Width())
		require.NoError(t, w.SetHeightAtCorner(2, 2, 1))
	})

	t.Run("largest world", func(t *testing.T) {
		w, err := NewWorld(1, quadtree.MaxDimension, WithoutCanvasTree())
		require.NoError(t, err)
		defer w.Close()
		require.Equal(t, quadtree.MaxDimension, w.Height())
	})
}

func TestWorldBounds(t *testing.T) {
	w := newTestWorld(t)

	b, err := w.Bounds(quadtree.Rect{Left: 0, Top: 0, Right: 1, Bottom: 1})
	require.NoError(t, err)
	require.Equal(t, quadtree.Rect{Left: 0, Top: 0, Right: 1, Bottom: 1}, b.Rect)
	require.Equal(t, 2, b.Depth)

	b, err = w.Bounds(quadtree.Rect{Left: 3, Top: 3, Right: 4, Bottom: 4})
	require.NoError(t, err)
	require.Equal(t, quadtree.Rect{Right: 7, Bottom: 7}, b.Rect)
	require.Zero(t, b.Depth)

	_, err = w.Bounds(quadtree.Rect{Left: 7, Top: 7, Right: 8, Bottom: 8})
	require.True(t, errors.IsType(err, ErrTypeOutOfMap))
}

func TestWorldConcurrentEdits(t *testing.T) {
	w := newTestWorld(t)

	var rec changeRecorder
	cancel := w.Subscribe(rec.record)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			require.NoError(t, w.SetHeightAtCorner(i, i, float32(i)))
			_, err := w.AddUnit(Unit{X: float32(i), Width: 1, Height: 1, Depth: 1})
			require.NoError(t, err)
			_, _ = w.Bounds(quadtree.Rect{Right: 7, Bottom: 7})
		}(i)
	}
	wg.Wait()

	require.Len(t, rec.get(), 16)
	require.Len(t, w.Units(), 8)

	b, err := w.Bounds(quadtree.Rect{Right: 7, Bottom: 7})
	require.NoError(t, err)
	require.Equal(t, quadtree.Span(0, 7), b.Ground)
}

func TestWorldSnapshot(t *testing.T) {
	w := newTestWorld(t, WithTextureCount(1))
	require.NoError(t, w.SetHeightAtCorner(2, 2, 5))
	require.NoError(t, w.SetTexMapAlpha(0, 3, 3, 80))
	_, err := w.AddUnit(Unit{X: 1, Y: 1, Width: 1, Height: 1, Depth: 1})
	require.NoError(t, err)

	s := w.Snapshot()
	require.Equal(t, 8, s.Width)
	require.Equal(t, 8, s.Height)
	require.Len(t, s.Heights, 81)
	require.Equal(t, float32(5), s.Heights[2*9+2])
	require.Len(t, s.Alphas, 1)
	require.Equal(t, uint8(80), s.Alphas[0][3*9+3])
	require.Equal(t, w.Units(), s.Units)
	require.Equal(t, w.Checksum(), s.Checksum)

	t.Run("later edits do not leak in", func(t *testing.T) {
		require.NoError(t, w.SetHeightAtCorner(2, 2, 6))
		require.NoError(t, w.SetTexMapAlpha(0, 3, 3, 0))

		require.Equal(t, float32(5), s.Heights[2*9+2])
		require.Equal(t, uint8(80), s.Alphas[0][3*9+3])
		require.NotEqual(t, w.Checksum(), s.Checksum)
	})
}

package quadtree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRectIntersects(t *testing.T) {
	r := Rect{Left: 2, Top: 2, Right: 5, Bottom: 3}

	tests := []struct {
		scenario       string
		x1, y1, x2, y2 int
		expected       bool
	}{
		{scenario: "inside", x1: 3, y1: 2, x2: 4, y2: 3, expected: true},
		{scenario: "covering", x1: 0, y1: 0, x2: 9, y2: 9, expected: true},
		{scenario: "touching corner", x1: 5, y1: 3, x2: 7, y2: 7, expected: true},
		{scenario: "left", x1: 0, y1: 2, x2: 1, y2: 3, expected: false},
		{scenario: "right", x1: 6, y1: 2, x2: 8, y2: 3},
		{scenario: "above", x1: 2, y1: 0, x2: 5, y2: 1},
		{scenario: "below", x1: 2, y1: 4, x2: 5, y2: 4},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			require.Equal(t, test.expected, r.Intersects(test.x1, test.y1, test.x2, test.y2))
		})
	}
}

func TestRectContains(t *testing.T) {
	r := Rect{Left: 0, Top: 0, Right: 3, Bottom: 3}

	require.True(t, r.Contains(0, 0, 3, 3))
	require.True(t, r.Contains(1, 1, 2, 2))
	require.True(t, r.ContainsCell(3, 0))
	require.False(t, r.Contains(1, 1, 4, 2))
	require.False(t, r.ContainsCell(-1, 0))
}

func TestNewRect(t *testing.T) {
	require.Equal(t, Rect{Left: 1, Top: 2, Right: 3, Bottom: 4}, NewRect(3, 4, 1, 2))
	require.Equal(t, 9, NewRect(0, 0, 2, 2).Size())
	require.True(t, NewRect(5, 5, 5, 5).IsLeaf())
}

func TestRectClamp(t *testing.T) {
	t.Run("clamps to the grid", func(t *testing.T) {
		r, ok := Rect{Left: -2, Top: -1, Right: 10, Bottom: 2}.Clamp(4, 4)
		require.True(t, ok)
		require.Equal(t, Rect{Left: 0, Top: 0, Right: 3, Bottom: 2}, r)
	})

	t.Run("outside of the grid", func(t *testing.T) {
		_, ok := Rect{Left: 5, Top: 0, Right: 10, Bottom: 2}.Clamp(4, 4)
		require.False(t, ok)
	})
}

func TestRectQuadrants(t *testing.T) {
	t.Run("square", func(t *testing.T) {
		quads, exists := Rect{Left: 0, Top: 0, Right: 3, Bottom: 3}.quadrants()
		require.Equal(t, [4]bool{true, true, true, true}, exists)
		require.Equal(t, Rect{Left: 0, Top: 0, Right: 1, Bottom: 1}, quads[TopLeft])
		require.Equal(t, Rect{Left: 2, Top: 0, Right: 3, Bottom: 1}, quads[TopRight])
		require.Equal(t, Rect{Left: 0, Top: 2, Right: 1, Bottom: 3}, quads[BottomLeft])
		require.Equal(t, Rect{Left: 2, Top: 2, Right: 3, Bottom: 3}, quads[BottomRight])
	})

	t.Run("single column", func(t *testing.T) {
		quads, exists := Rect{Left: 4, Top: 0, Right: 4, Bottom: 2}.quadrants()
		require.Equal(t, [4]bool{true, false, true, false}, exists)
		require.Equal(t, Rect{Left: 4, Top: 0, Right: 4, Bottom: 1}, quads[TopLeft])
		require.Equal(t, Rect{Left: 4, Top: 2, Right: 4, Bottom: 2}, quads[BottomLeft])
	})

	t.Run("single row", func(t *testing.T) {
		quads, exists := Rect{Left: 0, Top: 1, Right: 2, Bottom: 1}.quadrants()
		require.Equal(t, [4]bool{true, true, false, false}, exists)
		require.Equal(t, Rect{Left: 0, Top: 1, Right: 1, Bottom: 1}, quads[TopLeft])
		require.Equal(t, Rect{Left: 2, Top: 1, Right: 2, Bottom: 1}, quads[TopRight])
	})
}

package noise

import (
	"testing"

	"github.com/aukilabs/quadmap/models"
	"github.com/stretchr/testify/require"
)

func TestGeneratorHeights(t *testing.T) {
	t.Run("same seed gives the same heights", func(t *testing.T) {
		a := New(42).Heights(16, 8)
		b := New(42).Heights(16, 8)
		require.Len(t, a, 17*9)
		require.Equal(t, a, b)
	})

	t.Run("heights are bounded", func(t *testing.T) {
		g := New(7)
		g.Offset = 10

		for _, h := range g.Heights(32, 32) {
			require.GreaterOrEqual(t, h, float32(10-DefaultAmplitude))
			require.LessOrEqual(t, h, float32(10+DefaultAmplitude))
		}
	})

	t.Run("heights are not flat", func(t *testing.T) {
		heights := New(3).Heights(32, 32)

		lo, hi := heights[0], heights[0]
		for _, h := range heights {
			lo = min(lo, h)
			hi = max(hi, h)
		}
		require.Greater(t, hi-lo, float32(0))
	})
}

func TestGeneratorApply(t *testing.T) {
	w, err := models.NewWorld(16, 16)
	require.NoError(t, err)
	defer w.Close()

	g := New(99)
	err = g.Apply(w)
	require.NoError(t, err)

	heights := g.Heights(16, 16)
	for y := 0; y <= 16; y++ {
		for x := 0; x <= 16; x++ {
			require.Equal(t, heights[y*17+x], w.HeightAtCorner(x, y))
		}
	}
}

package mapfile

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadmap/quadtree"
	"github.com/stretchr/testify/require"
)

const tomlMap = `
width = 2
height = 2
textures = 1
heights = [
  0.0, 1.0, 2.0,
  1.0, 2.0, 3.0,
  2.0, 3.0, 4.0,
]

[[units]]
x = 0.0
y = 0.0
width = 1.0
height = 1.0
depth = 2.0

[[units]]
x = 1.0
y = 1.0
width = 1.0
height = 1.0
z = 10.0
depth = 1.0
`

const jsonMap = `{
  "width": 4,
  "height": 4,
  "seed": 12,
  "units": [{"x": 1.5, "y": 1.5, "width": 1, "height": 1, "depth": 1}]
}`

func TestFormatFromPath(t *testing.T) {
	format, err := FormatFromPath("maps/island.JSON")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = FormatFromPath("island.toml")
	require.NoError(t, err)
	require.Equal(t, FormatTOML, format)

	_, err = FormatFromPath("island.yaml")
	require.True(t, errors.IsType(err, ErrTypeUnsupportedFormat))
}

func TestDecode(t *testing.T) {
	t.Run("toml", func(t *testing.T) {
		d, err := Decode(strings.NewReader(tomlMap), FormatTOML)
		require.NoError(t, err)
		require.Equal(t, 2, d.Width)
		require.Equal(t, 2, d.Height)
		require.Equal(t, 1, d.Textures)
		require.Nil(t, d.Seed)
		require.Len(t, d.Heights, 9)
		require.Len(t, d.Units, 2)
		require.Nil(t, d.Units[0].Z)
		require.Equal(t, float32(10), *d.Units[1].Z)
	})

	t.Run("json", func(t *testing.T) {
		d, err := Decode(strings.NewReader(jsonMap), FormatJSON)
		require.NoError(t, err)
		require.Equal(t, 4, d.Width)
		require.Equal(t, int64(12), *d.Seed)
		require.Empty(t, d.Heights)
		require.Len(t, d.Units, 1)
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, err := Decode(strings.NewReader(jsonMap), Format("yaml"))
		require.True(t, errors.IsType(err, ErrTypeUnsupportedFormat))
	})

	t.Run("malformed content", func(t *testing.T) {
		_, err := Decode(strings.NewReader("{"), FormatJSON)
		require.True(t, errors.IsType(err, ErrTypeInvalidDescription))
	})
}

func TestDescriptionValidate(t *testing.T) {
	seed := int64(1)

	tests := []struct {
		scenario string
		desc     Description
	}{
		{
			scenario: "no width",
			desc:     Description{Height: 1},
		},
		{
			scenario: "negative texture count",
			desc:     Description{Width: 1, Height: 1, Textures: -1},
		},
		{
			scenario: "seed and heights",
			desc:     Description{Width: 1, Height: 1, Seed: &seed, Heights: make([]float32, 4)},
		},
		{
			scenario: "wrong heights count",
			desc:     Description{Width: 1, Height: 1, Heights: make([]float32, 3)},
		},
		{
			scenario: "width above the maximum",
			desc:     Description{Width: quadtree.MaxDimension + 1, Height: 1},
		},
		{
			scenario: "overflowing dimensions",
			desc:     Description{Width: 1 << 40, Height: 1 << 40},
		},
		{
			scenario: "alphas without textures",
			desc:     Description{Width: 1, Height: 1, Alphas: [][]int{make([]int, 4)}},
		},
		{
			scenario: "wrong alphas count",
			desc:     Description{Width: 1, Height: 1, Textures: 1, Alphas: [][]int{make([]int, 3)}},
		},
		{
			scenario: "alpha out of range",
			desc:     Description{Width: 1, Height: 1, Textures: 1, Alphas: [][]int{{0, 256, 0, 0}}},
		},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			err := test.desc.Validate()
			require.Error(t, err)
			require.True(t, errors.IsType(err, ErrTypeInvalidDescription))
		})
	}
}

func TestDescriptionBuild(t *testing.T) {
	t.Run("explicit heights and units", func(t *testing.T) {
		d, err := Decode(strings.NewReader(tomlMap), FormatTOML)
		require.NoError(t, err)

		w, err := d.Build()
		require.NoError(t, err)
		defer w.Close()

		require.Equal(t, 1, w.TextureCount())
		require.Equal(t, float32(4), w.HeightAtCorner(2, 2))
		require.Equal(t, float32(3), w.HeightAtCorner(1, 2))

		units := w.Units()
		require.Len(t, units, 2)
		require.Equal(t, float32(1), units[0].Z)
		require.Equal(t, float32(10), units[1].Z)

		b, err := w.Bounds(quadtree.Rect{Right: 1, Bottom: 1})
		require.NoError(t, err)
		require.Equal(t, quadtree.Span(0, 4), b.Ground)
		require.Equal(t, quadtree.Span(1, 11), b.Units)
	})

	t.Run("seeded heights", func(t *testing.T) {
		d, err := Decode(strings.NewReader(jsonMap), FormatJSON)
		require.NoError(t, err)

		a, err := d.Build()
		require.NoError(t, err)
		defer a.Close()

		b, err := d.Build()
		require.NoError(t, err)
		defer b.Close()

		require.Equal(t, a.Checksum(), b.Checksum())
		require.Equal(t, a.HeightAtPoint(2, 2), a.Units()[0].Z)
	})

	t.Run("texture alphas", func(t *testing.T) {
		d := Description{
			Width:    1,
			Height:   1,
			Textures: 2,
			Alphas: [][]int{
				{0, 0, 0, 0},
				{0, 255, 0, 7},
			},
		}

		w, err := d.Build()
		require.NoError(t, err)
		defer w.Close()

		require.Equal(t, uint8(255), w.TextureAlphaAtCorner(1, 1, 0))
		require.Equal(t, uint8(7), w.TextureAlphaAtCorner(1, 1, 1))
		require.Zero(t, w.TextureAlphaAtCorner(0, 1, 0))
		require.Equal(t, d.Alphas, Describe(w).Alphas)
	})

	t.Run("unit out of map", func(t *testing.T) {
		d := Description{
			Width:  2,
			Height: 2,
			Units:  []UnitDescription{{X: 3, Y: 0, Width: 1, Height: 1}},
		}

		_, err := d.Build()
		require.Error(t, err)
	})
}

func TestSaveLoad(t *testing.T) {
	d, err := Decode(strings.NewReader(tomlMap), FormatTOML)
	require.NoError(t, err)

	w, err := d.Build()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.SetTexMapAlpha(0, 2, 2, 200))

	for _, name := range []string{"map.toml", "map.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			err := Save(path, Describe(w))
			require.NoError(t, err)

			loaded, err := Load(path)
			require.NoError(t, err)

			w2, err := loaded.Build()
			require.NoError(t, err)
			defer w2.Close()

			require.Equal(t, w.Checksum(), w2.Checksum())
			require.Equal(t, w.Units(), w2.Units())
			require.Equal(t, uint8(200), w2.TextureAlphaAtCorner(0, 2, 2))
		})
	}

	t.Run("unpainted maps have no alphas", func(t *testing.T) {
		flat, err := Description{Width: 2, Height: 2, Textures: 3}.Build()
		require.NoError(t, err)
		defer flat.Close()

		desc := Describe(flat)
		require.Equal(t, 3, desc.Textures)
		require.Nil(t, desc.Alphas)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
		require.Error(t, err)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		err := Save(filepath.Join(t.TempDir(), "map.txt"), Describe(w))
		require.True(t, errors.IsType(err, ErrTypeUnsupportedFormat))
	})
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, FormatTOML, Description{Width: 1, Height: 1})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "width = 1")

	buf.Reset()
	err = Encode(&buf, FormatJSON, Description{Width: 1, Height: 1})
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"width": 1`)
}

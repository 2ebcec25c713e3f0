// Package mapfile loads and saves map descriptions.
package mapfile

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/quadmap/models"
	"github.com/aukilabs/quadmap/noise"
	"github.com/aukilabs/quadmap/quadtree"
	"github.com/pelletier/go-toml/v2"
	"github.com/segmentio/encoding/json"
)

const (
	// The error type returned when a file extension or format is unknown.
	ErrTypeUnsupportedFormat = "mapfile_unsupported_format"

	// The error type returned when a description cannot produce a world.
	ErrTypeInvalidDescription = "mapfile_invalid_description"
)

// Format is the encoding of a map file.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatFromPath returns the format matching the extension of path.
func FormatFromPath(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		return FormatJSON, nil

	case ".toml":
		return FormatTOML, nil

	default:
		return "", errors.New("unsupported map file extension").
			WithType(ErrTypeUnsupportedFormat).
			WithTag("path", path).
			WithTag("extension", ext)
	}
}

// Description describes a map and the units standing on it.
type Description struct {
	Width    int `json:"width"    toml:"width"`
	Height   int `json:"height"   toml:"height"`
	Textures int `json:"textures" toml:"textures"`

	// When set, the heights are generated with perlin noise.
	Seed *int64 `json:"seed,omitempty" toml:"seed,omitempty"`

	// The (width+1) x (height+1) corner heights, row by row. Empty means
	// flat. Cannot be combined with a seed.
	Heights []float32 `json:"heights,omitempty" toml:"heights,omitempty"`

	// The (width+1) x (height+1) corner alphas of each texture, row by row.
	// Values range from 0 to 255. Empty means no texture is painted.
	Alphas [][]int `json:"alphas,omitempty" toml:"alphas,omitempty"`

	Units []UnitDescription `json:"units,omitempty" toml:"units,omitempty"`
}

// UnitDescription describes a unit. When Z is not set, the unit is placed on
// the ground.
type UnitDescription struct {
	X      float32  `json:"x"               toml:"x"`
	Y      float32  `json:"y"               toml:"y"`
	Width  float32  `json:"width"           toml:"width"`
	Height float32  `json:"height"          toml:"height"`
	Z      *float32 `json:"z,omitempty"     toml:"z,omitempty"`
	Depth  float32  `json:"depth"           toml:"depth"`
}

// Load reads the map file at path. The format is picked from the extension.
func Load(path string) (Description, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return Description{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Description{}, errors.New("opening map file failed").
			WithTag("path", path).
			Wrap(err)
	}
	defer f.Close()

	d, err := Decode(f, format)
	if err != nil {
		return Description{}, errors.New("loading map file failed").
			WithTag("path", path).
			Wrap(err)
	}

	logs.WithTag("path", path).
		WithTag("width", d.Width).
		WithTag("height", d.Height).
		WithTag("units", len(d.Units)).
		Info("map file loaded")
	return d, nil
}

// Decode reads a description with the given format and validates it.
func Decode(r io.Reader, format Format) (Description, error) {
	var d Description
	var err error

	switch format {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&d)

	case FormatTOML:
		err = toml.NewDecoder(r).Decode(&d)

	default:
		return Description{}, errors.New("unsupported map file format").
			WithType(ErrTypeUnsupportedFormat).
			WithTag("format", format)
	}

	if err != nil {
		return Description{}, errors.New("decoding map description failed").
			WithType(ErrTypeInvalidDescription).
			WithTag("format", format).
			Wrap(err)
	}

	if err := d.Validate(); err != nil {
		return Description{}, err
	}
	return d, nil
}

// Save writes the description at path. The format is picked from the
// extension.
func Save(path string, d Description) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.New("creating map file failed").
			WithTag("path", path).
			Wrap(err)
	}
	defer f.Close()

	if err := Encode(f, format, d); err != nil {
		return errors.New("saving map file failed").
			WithTag("path", path).
			Wrap(err)
	}
	return f.Close()
}

// Encode writes a description with the given format.
func Encode(w io.Writer, format Format, d Description) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)

	case FormatTOML:
		return toml.NewEncoder(w).Encode(d)

	default:
		return errors.New("unsupported map file format").
			WithType(ErrTypeUnsupportedFormat).
			WithTag("format", format)
	}
}

// Validate checks that the description can produce a world.
func (d Description) Validate() error {
	if err := quadtree.CheckDimensions(d.Width, d.Height); err != nil {
		return errors.New("invalid map dimensions").
			WithType(ErrTypeInvalidDescription).
			Wrap(err)
	}

	if d.Textures < 0 {
		return errors.New("invalid texture count").
			WithType(ErrTypeInvalidDescription).
			WithTag("textures", d.Textures)
	}

	if d.Seed != nil && len(d.Heights) != 0 {
		return errors.New("seed and heights are exclusive").
			WithType(ErrTypeInvalidDescription)
	}

	if n := (d.Width + 1) * (d.Height + 1); len(d.Heights) != 0 && len(d.Heights) != n {
		return errors.New("invalid heights count").
			WithType(ErrTypeInvalidDescription).
			WithTag("expected", n).
			WithTag("heights", len(d.Heights))
	}

	if len(d.Alphas) != 0 && len(d.Alphas) != d.Textures {
		return errors.New("invalid alphas count").
			WithType(ErrTypeInvalidDescription).
			WithTag("textures", d.Textures).
			WithTag("alphas", len(d.Alphas))
	}

	n := (d.Width + 1) * (d.Height + 1)
	for i, alphas := range d.Alphas {
		if len(alphas) != n {
			return errors.New("invalid texture alphas count").
				WithType(ErrTypeInvalidDescription).
				WithTag("texture", i).
				WithTag("expected", n).
				WithTag("alphas", len(alphas))
		}

		for _, a := range alphas {
			if a < 0 || a > math.MaxUint8 {
				return errors.New("texture alpha out of range").
					WithType(ErrTypeInvalidDescription).
					WithTag("texture", i).
					WithTag("alpha", a)
			}
		}
	}
	return nil
}

// Build creates the world described by d.
func (d Description) Build(options ...models.WorldOption) (*models.World, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	options = append([]models.WorldOption{models.WithTextureCount(d.Textures)}, options...)
	w, err := models.NewWorld(d.Width, d.Height, options...)
	if err != nil {
		return nil, err
	}

	if err := d.apply(w); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

func (d Description) apply(w *models.World) error {
	switch {
	case d.Seed != nil:
		if err := noise.New(*d.Seed).Apply(w); err != nil {
			return err
		}

	case len(d.Heights) != 0:
		err := w.SetHeightsInRect(0, 0, d.Width, d.Height, func(x, y int) float32 {
			return d.Heights[y*(d.Width+1)+x]
		})
		if err != nil {
			return err
		}
	}

	if err := d.applyAlphas(w); err != nil {
		return err
	}

	for i, ud := range d.Units {
		u := models.Unit{
			X:      ud.X,
			Y:      ud.Y,
			Width:  ud.Width,
			Height: ud.Height,
			Depth:  ud.Depth,
		}

		var err error
		if ud.Z != nil {
			u.Z = *ud.Z
			_, err = w.AddUnit(u)
		} else {
			_, err = w.PlaceUnit(u)
		}

		if err != nil {
			return errors.New("adding unit failed").
				WithTag("index", i).
				Wrap(err)
		}
	}
	return nil
}

// applyAlphas paints the corners where at least one texture is visible.
func (d Description) applyAlphas(w *models.World) error {
	if len(d.Alphas) == 0 {
		return nil
	}

	textures := make([]int, len(d.Alphas))
	for i := range textures {
		textures[i] = i
	}

	alphas := make([]uint8, len(d.Alphas))
	for y := 0; y <= d.Height; y++ {
		for x := 0; x <= d.Width; x++ {
			i := y*(d.Width+1) + x

			visible := false
			for t := range d.Alphas {
				alphas[t] = uint8(d.Alphas[t][i])
				visible = visible || alphas[t] != 0
			}
			if !visible {
				continue
			}

			if err := w.SetTextures(x, y, textures, alphas); err != nil {
				return errors.New("painting textures failed").
					WithTag("x", x).
					WithTag("y", y).
					Wrap(err)
			}
		}
	}
	return nil
}

// Describe returns the description of a world taken from a single snapshot.
// Heights and unit Z are always explicit. Alphas are only set when a texture
// is painted.
func Describe(w *models.World) Description {
	s := w.Snapshot()

	var alphas [][]int
	for _, a := range s.Alphas {
		if painted(a) {
			alphas = make([][]int, len(s.Alphas))
			break
		}
	}
	for i := range alphas {
		alphas[i] = make([]int, len(s.Alphas[i]))
		for j, a := range s.Alphas[i] {
			alphas[i][j] = int(a)
		}
	}

	descs := make([]UnitDescription, 0, len(s.Units))
	for _, u := range s.Units {
		z := u.Z
		descs = append(descs, UnitDescription{
			X:      u.X,
			Y:      u.Y,
			Width:  u.Width,
			Height: u.Height,
			Z:      &z,
			Depth:  u.Depth,
		})
	}

	return Description{
		Width:    s.Width,
		Height:   s.Height,
		Textures: len(s.Alphas),
		Heights:  s.Heights,
		Alphas:   alphas,
		Units:    descs,
	}
}

func painted(alphas []uint8) bool {
	for _, a := range alphas {
		if a != 0 {
			return true
		}
	}
	return false
}

// Package noise generates procedural heightmaps.
package noise

import (
	"github.com/aquilax/go-perlin"
	"github.com/chewxy/math32"
)

const (
	DefaultFrequency     = 0.08
	DefaultZoneFrequency = 0.015
	DefaultAmplitude     = 8
)

// Terrain is a corner heightmap that can be written to.
type Terrain interface {
	Width() int
	Height() int
	SetHeightsInRect(x1, y1, x2, y2 int, height func(x, y int) float32) error
}

// Generator generates corner heights using perlin noise.
type Generator struct {
	// The frequency of the details.
	Frequency float64

	// The frequency of the zones scaling the details. Low values give large
	// plains and mountain ranges.
	ZoneFrequency float64

	// The maximum absolute height.
	Amplitude float32

	// Added to every height.
	Offset float32

	detail *perlin.Perlin
	zone   *perlin.Perlin
}

// New creates a generator with the default settings.
func New(seed int64) *Generator {
	return &Generator{
		Frequency:     DefaultFrequency,
		ZoneFrequency: DefaultZoneFrequency,
		Amplitude:     DefaultAmplitude,
		detail:        perlin.NewPerlin(1.5, 2.0, 4, seed),
		zone:          perlin.NewPerlin(2.5, 3.0, 4, seed+1),
	}
}

// HeightAt returns the height at the given corner.
func (g *Generator) HeightAt(x, y int) float32 {
	fx, fy := float64(x), float64(y)

	h := g.detail.Noise2D(fx*g.Frequency, fy*g.Frequency)

	// Zone is very low frequency.
	zone := g.zone.Noise2D(fx*g.ZoneFrequency, fy*g.ZoneFrequency)*2 + 0.5
	zone = min(max(zone, 0.1), 1)

	v := float32(h*zone) * 2 * g.Amplitude
	return math32.Max(-g.Amplitude, math32.Min(v, g.Amplitude)) + g.Offset
}

// Heights returns the (width+1) x (height+1) corner heights of a map, row by
// row.
func (g *Generator) Heights(width, height int) []float32 {
	heights := make([]float32, 0, (width+1)*(height+1))
	for y := 0; y <= height; y++ {
		for x := 0; x <= width; x++ {
			heights = append(heights, g.HeightAt(x, y))
		}
	}
	return heights
}

// Apply writes the generated heights to every corner of the terrain.
func (g *Generator) Apply(t Terrain) error {
	return t.SetHeightsInRect(0, 0, t.Width(), t.Height(), g.HeightAt)
}

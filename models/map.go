package models

import (
	"encoding/binary"
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/quadmap/quadtree"
	"github.com/chewxy/math32"
	"github.com/ethereum/go-ethereum/crypto"
)

// Map holds the ground of a width x height cell grid: the height and the
// texture alphas at each of its (width+1) x (height+1) corners. Edits are
// forwarded to the trees of the map collection.
type Map struct {
	width      int
	height     int
	heights    []float32
	textures   [][]uint8
	collection *quadtree.Collection
}

// NewMap creates a flat map. collection may be nil.
func NewMap(width, height, textureCount int, collection *quadtree.Collection) (*Map, error) {
	if err := quadtree.CheckDimensions(width, height); err != nil {
		return nil, errors.New("invalid map dimensions").Wrap(err)
	}

	corners := (width + 1) * (height + 1)

	textures := make([][]uint8, max(textureCount, 0))
	for i := range textures {
		textures[i] = make([]uint8, corners)
	}

	return &Map{
		width:      width,
		height:     height,
		heights:    make([]float32, corners),
		textures:   textures,
		collection: collection,
	}, nil
}

// Width returns the number of cell columns.
func (m *Map) Width() int {
	return m.width
}

// Height returns the number of cell rows.
func (m *Map) Height() int {
	return m.height
}

// Collection returns the collection notified on edits.
func (m *Map) Collection() *quadtree.Collection {
	return m.collection
}

func (m *Map) cornerIndex(x, y int) int {
	return y*(m.width+1) + x
}

func (m *Map) isCorner(x, y int) bool {
	return x >= 0 && y >= 0 && x <= m.width && y <= m.height
}

func (m *Map) checkCorners(x1, y1, x2, y2 int) error {
	if !m.isCorner(x1, y1) || !m.isCorner(x2, y2) {
		return errors.New("corner out of map").
			WithType(ErrTypeOutOfMap).
			WithTag("x1", x1).
			WithTag("y1", y1).
			WithTag("x2", x2).
			WithTag("y2", y2).
			WithTag("width", m.width).
			WithTag("height", m.height)
	}
	return nil
}

// HeightAtCorner returns the height at the given corner. Coordinates outside
// of the map are clamped to its border.
func (m *Map) HeightAtCorner(x, y int) float32 {
	x = min(max(x, 0), m.width)
	y = min(max(y, 0), m.height)
	return m.heights[m.cornerIndex(x, y)]
}

// HeightAtPoint returns the ground height at a point in cell coordinates,
// blending the corners of the cell the point is in.
func (m *Map) HeightAtPoint(x, y float32) float32 {
	cellX := int(math32.Floor(x))
	cellY := int(math32.Floor(y))
	x2 := x - float32(cellX)
	y2 := y - float32(cellY)

	h1 := m.HeightAtCorner(cellX, cellY)
	h2 := m.HeightAtCorner(cellX+1, cellY)
	h3 := m.HeightAtCorner(cellX, cellY+1)
	h4 := m.HeightAtCorner(cellX+1, cellY+1)

	return (h1*(1-x2)+h2*x2)*(1-y2) + (h3*(1-x2)+h4*x2)*y2
}

// SetHeightAtCorner sets the height of a corner.
func (m *Map) SetHeightAtCorner(x, y int, h float32) error {
	if err := m.checkCorners(x, y, x, y); err != nil {
		return err
	}

	m.heights[m.cornerIndex(x, y)] = h
	m.HeightsInRectChanged(x, y, x, y)
	return nil
}

// SetHeightsInRect sets the height of every corner from (x1, y1) to (x2, y2)
// with the values returned by height, then notifies the trees once.
func (m *Map) SetHeightsInRect(x1, y1, x2, y2 int, height func(x, y int) float32) error {
	r := quadtree.NewRect(x1, y1, x2, y2)
	if err := m.checkCorners(r.Left, r.Top, r.Right, r.Bottom); err != nil {
		return err
	}

	for y := r.Top; y <= r.Bottom; y++ {
		for x := r.Left; x <= r.Right; x++ {
			m.heights[m.cornerIndex(x, y)] = height(x, y)
		}
	}

	m.HeightsInRectChanged(r.Left, r.Top, r.Right, r.Bottom)
	return nil
}

// HeightsInRectChanged notifies the trees that the heights of the corners
// from (minX, minY) to (maxX, maxY) changed.
func (m *Map) HeightsInRectChanged(minX, minY, maxX, maxY int) {
	cells, ok := m.CellsTouchingCorners(minX, minY, maxX, maxY)
	if !ok {
		return
	}

	instrumentMapEdit(editKindHeight)
	if m.collection != nil {
		m.collection.CellHeightChanged(m, cells.Left, cells.Top, cells.Right, cells.Bottom)
	}
}

// CellsTouchingCorners returns the cells sharing at least one of the given
// corners.
func (m *Map) CellsTouchingCorners(minX, minY, maxX, maxY int) (quadtree.Rect, bool) {
	r := quadtree.NewRect(minX, minY, maxX, maxY)
	r.Left--
	r.Top--
	return r.Clamp(m.width, m.height)
}

// TextureCount returns the number of textures of the map.
func (m *Map) TextureCount() int {
	return len(m.textures)
}

// TextureAlphaAtCorner returns the alpha of a texture at a corner, or 0 when
// the texture or the corner does not exist.
func (m *Map) TextureAlphaAtCorner(texture, x, y int) uint8 {
	if texture < 0 || texture >= len(m.textures) || !m.isCorner(x, y) {
		return 0
	}
	return m.textures[texture][m.cornerIndex(x, y)]
}

// SetTexMapAlpha sets the alpha of a texture at a corner.
func (m *Map) SetTexMapAlpha(texture, x, y int, alpha uint8) error {
	return m.SetTextures(x, y, []int{texture}, []uint8{alpha})
}

// SetTextures sets the alpha of several textures at a corner. Nothing is
// changed when one of the textures is invalid.
func (m *Map) SetTextures(x, y int, textures []int, alphas []uint8) error {
	if err := m.checkCorners(x, y, x, y); err != nil {
		return err
	}

	if len(textures) != len(alphas) {
		return errors.New("textures and alphas mismatch").
			WithType(ErrTypeInvalidTexture).
			WithTag("textures", len(textures)).
			WithTag("alphas", len(alphas))
	}

	for _, t := range textures {
		if t < 0 || t >= len(m.textures) {
			return errors.New("invalid texture").
				WithType(ErrTypeInvalidTexture).
				WithTag("texture", t).
				WithTag("texture_count", len(m.textures))
		}
	}

	for i, t := range textures {
		m.textures[t][m.cornerIndex(x, y)] = alphas[i]
	}

	cells, ok := m.CellsTouchingCorners(x, y, x, y)
	if !ok {
		return nil
	}

	instrumentMapEdit(editKindTexture)
	if m.collection != nil {
		m.collection.CellTextureChanged(m, cells.Left, cells.Top, cells.Right, cells.Bottom)
	}
	return nil
}

// Heights returns a copy of the corner heights, row by row.
func (m *Map) Heights() []float32 {
	heights := make([]float32, len(m.heights))
	copy(heights, m.heights)
	return heights
}

// Alphas returns a copy of the corner alphas of each texture, row by row.
func (m *Map) Alphas() [][]uint8 {
	alphas := make([][]uint8, len(m.textures))
	for i, a := range m.textures {
		alphas[i] = make([]uint8, len(a))
		copy(alphas[i], a)
	}
	return alphas
}

// Checksum returns the Keccak256 hash of the map content.
func (m *Map) Checksum() string {
	buf := make([]byte, 0, 12+len(m.heights)*4+len(m.textures)*len(m.heights))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(m.width))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(m.height))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.textures)))

	for _, h := range m.heights {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(h))
	}
	for _, alphas := range m.textures {
		buf = append(buf, alphas...)
	}

	return crypto.Keccak256Hash(buf).Hex()
}

package quadtree

// Rect is an inclusive rectangle of map cells.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// NewRect returns the rectangle spanning the two given cells, whatever their
// order.
func NewRect(x1, y1, x2, y2 int) Rect {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Rect{Left: x1, Top: y1, Right: x2, Bottom: y2}
}

// Width returns the number of columns covered by the rectangle.
func (r Rect) Width() int {
	return r.Right - r.Left + 1
}

// Height returns the number of rows covered by the rectangle.
func (r Rect) Height() int {
	return r.Bottom - r.Top + 1
}

// Size returns the number of cells covered by the rectangle.
func (r Rect) Size() int {
	return r.Width() * r.Height()
}

// IsLeaf reports whether the rectangle covers exactly one cell.
func (r Rect) IsLeaf() bool {
	return r.Left == r.Right && r.Top == r.Bottom
}

// Intersects reports whether the rectangle shares at least one cell with the
// rectangle going from (x1, y1) to (x2, y2).
func (r Rect) Intersects(x1, y1, x2, y2 int) bool {
	return !(x1 > r.Right || x2 < r.Left || y1 > r.Bottom || y2 < r.Top)
}

// Contains reports whether the rectangle going from (x1, y1) to (x2, y2) is
// fully inside r.
func (r Rect) Contains(x1, y1, x2, y2 int) bool {
	return x1 >= r.Left && x2 <= r.Right && y1 >= r.Top && y2 <= r.Bottom
}

// ContainsCell reports whether the cell (x, y) is inside r.
func (r Rect) ContainsCell(x, y int) bool {
	return r.Contains(x, y, x, y)
}

// Union returns the smallest rectangle containing both r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		Left:   min(r.Left, o.Left),
		Top:    min(r.Top, o.Top),
		Right:  max(r.Right, o.Right),
		Bottom: max(r.Bottom, o.Bottom),
	}
}

// Clamp returns r restricted to a width x height grid. ok is false when
// nothing is left.
func (r Rect) Clamp(width, height int) (clamped Rect, ok bool) {
	clamped = Rect{
		Left:   max(r.Left, 0),
		Top:    max(r.Top, 0),
		Right:  min(r.Right, width-1),
		Bottom: min(r.Bottom, height-1),
	}
	return clamped, clamped.Left <= clamped.Right && clamped.Top <= clamped.Bottom
}

// Quadrants splits a non leaf rectangle in the TopLeft, TopRight, BottomLeft
// and BottomRight order. The top left quadrant always exists, the others only
// when their half is not empty.
func (r Rect) quadrants() (quads [4]Rect, exists [4]bool) {
	hmid := r.Left + (r.Right-r.Left)/2
	vmid := r.Top + (r.Bottom-r.Top)/2

	hasRight := hmid+1 <= r.Right
	hasBottom := vmid+1 <= r.Bottom

	quads[TopLeft] = Rect{Left: r.Left, Top: r.Top, Right: hmid, Bottom: vmid}
	exists[TopLeft] = true

	if hasRight {
		quads[TopRight] = Rect{Left: hmid + 1, Top: r.Top, Right: r.Right, Bottom: vmid}
		exists[TopRight] = true
	}

	if hasBottom {
		quads[BottomLeft] = Rect{Left: r.Left, Top: vmid + 1, Right: hmid, Bottom: r.Bottom}
		exists[BottomLeft] = true
	}

	if hasRight && hasBottom {
		quads[BottomRight] = Rect{Left: hmid + 1, Top: vmid + 1, Right: r.Right, Bottom: r.Bottom}
		exists[BottomRight] = true
	}

	return quads, exists
}

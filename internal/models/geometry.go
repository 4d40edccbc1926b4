package models

// Pixel is an integer pixel position in (row, column) order.
type Pixel struct {
	Row int
	Col int
}

// Point is a sub-pixel position in (row, column) order.
type Point struct {
	Row float64
	Col float64
}

// Add returns p translated by q.
func (p Point) Add(q Point) Point {
	return Point{Row: p.Row + q.Row, Col: p.Col + q.Col}
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{Row: p.Row - q.Row, Col: p.Col - q.Col}
}

// BBox is a half-open pixel rectangle [MinRow, MaxRow) x [MinCol, MaxCol).
type BBox struct {
	MinRow int
	MinCol int
	MaxRow int
	MaxCol int
}

// Height returns the number of rows covered by the box
func (b BBox) Height() int { return b.MaxRow - b.MinRow }

// Width returns the number of columns covered by the box
func (b BBox) Width() int { return b.MaxCol - b.MinCol }

// Empty reports whether the box covers no pixels.
func (b BBox) Empty() bool { return b.MaxRow <= b.MinRow || b.MaxCol <= b.MinCol }

// Extend grows the box so that it covers px. An empty box becomes the single pixel.
func (b BBox) Extend(px Pixel) BBox {
	if b.Empty() {
		return BBox{MinRow: px.Row, MinCol: px.Col, MaxRow: px.Row + 1, MaxCol: px.Col + 1}
	}
	if px.Row < b.MinRow {
		b.MinRow = px.Row
	}
	if px.Col < b.MinCol {
		b.MinCol = px.Col
	}
	if px.Row >= b.MaxRow {
		b.MaxRow = px.Row + 1
	}
	if px.Col >= b.MaxCol {
		b.MaxCol = px.Col + 1
	}
	return b
}

// Contains reports whether p lies within the pixel centres spanned by the box,
// that is MinRow <= Row <= MaxRow-1 and likewise for columns.
func (b BBox) Contains(p Point) bool {
	if b.Empty() {
		return false
	}
	return p.Row >= float64(b.MinRow) && p.Row <= float64(b.MaxRow-1) &&
		p.Col >= float64(b.MinCol) && p.Col <= float64(b.MaxCol-1)
}

package raster

import (
	"fmt"
	"strings"
)

// Mask is an immutable binary mask in row-major order. Foreground pixels are true.
type Mask struct {
	height int
	width  int
	bits   []bool
}

// NewMask creates a mask from a row-major slice of h*w values. The slice is copied.
func NewMask(height, width int, bits []bool) (*Mask, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: mask dimensions %dx%d must be positive", ErrShape, height, width)
	}
	if len(bits) != height*width {
		return nil, fmt.Errorf("%w: mask has %d pixels, want %d", ErrShape, len(bits), height*width)
	}
	buf := make([]bool, len(bits))
	copy(buf, bits)
	return &Mask{height: height, width: width, bits: buf}, nil
}

// NewEmptyMask creates an all-background mask.
func NewEmptyMask(height, width int) (*Mask, error) {
	return NewMask(height, width, make([]bool, max(height, 0)*max(width, 0)))
}

// MaskFromRows parses a mask from text rows. '#' and '1' mark foreground,
// every other character is background. All rows must have the same length.
func MaskFromRows(rows ...string) (*Mask, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrShape)
	}
	width := len(rows[0])
	bits := make([]bool, 0, len(rows)*width)
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has length %d, want %d", ErrShape, i, len(row), width)
		}
		for _, ch := range row {
			bits = append(bits, ch == '#' || ch == '1')
		}
	}
	return NewMask(len(rows), width, bits)
}

// Validate reports whether m is a usable mask. A nil or zero-value mask is not.
func (m *Mask) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil mask", ErrShape)
	}
	if m.height <= 0 || m.width <= 0 || len(m.bits) != m.height*m.width {
		return fmt.Errorf("%w: uninitialised mask", ErrShape)
	}
	return nil
}

// Shape returns the mask extent.
func (m *Mask) Shape() (height, width int) { return m.height, m.width }

// At reports whether pixel (r, c) is foreground. Out of range pixels are background.
func (m *Mask) At(r, c int) bool {
	if r < 0 || c < 0 || r >= m.height || c >= m.width {
		return false
	}
	return m.bits[r*m.width+c]
}

// Count returns the number of foreground pixels.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

// Bits returns a copy of the row-major pixel values.
func (m *Mask) Bits() []bool {
	out := make([]bool, len(m.bits))
	copy(out, m.bits)
	return out
}

// Equal reports whether both masks have the same extent and pixels.
func (m *Mask) Equal(o *Mask) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.height != o.height || m.width != o.width {
		return false
	}
	for i := range m.bits {
		if m.bits[i] != o.bits[i] {
			return false
		}
	}
	return true
}

// String renders the mask in the MaskFromRows format.
func (m *Mask) String() string {
	var sb strings.Builder
	for r := 0; r < m.height; r++ {
		if r > 0 {
			sb.WriteByte('\n')
		}
		for c := 0; c < m.width; c++ {
			if m.bits[r*m.width+c] {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
	}
	return sb.String()
}

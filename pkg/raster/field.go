// Package raster holds the in-memory arrays the plaque pipeline works on:
// intensity fields captured from microscopy images and the binary masks
// derived from them. Both types are immutable once constructed.
package raster

import (
	"errors"
	"fmt"
	"image"
)

// ErrShape is returned when an array has the wrong rank, extent or length.
var ErrShape = errors.New("raster: invalid shape")

// Field is an immutable intensity field stored in row-major order with
// interleaved channels: sample (r, c, ch) lives at (r*width+c)*channels+ch.
type Field struct {
	height   int
	width    int
	channels int
	rank     int
	data     []float64
}

// NewField2D creates a single-channel rank-2 field. The data is copied.
func NewField2D(height, width int, data []float64) (*Field, error) {
	return newField(height, width, 1, 2, data)
}

// NewField3D creates a rank-3 field with the given number of channels. The data is copied.
func NewField3D(height, width, channels int, data []float64) (*Field, error) {
	return newField(height, width, channels, 3, data)
}

func newField(height, width, channels, rank int, data []float64) (*Field, error) {
	if height <= 0 || width <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: field dimensions %dx%dx%d must be positive", ErrShape, height, width, channels)
	}
	if len(data) != height*width*channels {
		return nil, fmt.Errorf("%w: field data has %d samples, want %d", ErrShape, len(data), height*width*channels)
	}
	buf := make([]float64, len(data))
	copy(buf, data)
	return &Field{height: height, width: width, channels: channels, rank: rank, data: buf}, nil
}

// FieldFromBytes creates a rank-3 field from raw interleaved bytes, such as
// the pixel buffer of a decoded 8-bit image.
func FieldFromBytes(height, width, channels int, b []byte) (*Field, error) {
	if len(b) != height*width*channels {
		return nil, fmt.Errorf("%w: byte buffer has %d samples, want %d", ErrShape, len(b), height*width*channels)
	}
	data := make([]float64, len(b))
	for i, v := range b {
		data[i] = float64(v)
	}
	return NewField3D(height, width, channels, data)
}

// FieldFromImage converts an image into an RGB field with 8-bit sample values.
func FieldFromImage(img image.Image) (*Field, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrShape)
	}
	bounds := img.Bounds()
	height, width := bounds.Dy(), bounds.Dx()
	data := make([]float64, 0, height*width*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			data = append(data, float64(r>>8), float64(g>>8), float64(b>>8))
		}
	}
	return NewField3D(height, width, 3, data)
}

// Validate reports whether f is a usable field. A nil or zero-value field is not.
func (f *Field) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil field", ErrShape)
	}
	if f.height <= 0 || f.width <= 0 || f.channels <= 0 || len(f.data) != f.height*f.width*f.channels {
		return fmt.Errorf("%w: uninitialised field", ErrShape)
	}
	return nil
}

// Shape returns the spatial extent and channel count.
func (f *Field) Shape() (height, width, channels int) {
	return f.height, f.width, f.channels
}

// Rank is 2 for fields built with NewField2D and 3 otherwise.
func (f *Field) Rank() int { return f.rank }

// At returns the sample at row r, column c and channel ch.
func (f *Field) At(r, c, ch int) float64 {
	return f.data[(r*f.width+c)*f.channels+ch]
}

// Data returns a copy of the underlying samples.
func (f *Field) Data() []float64 {
	out := make([]float64, len(f.data))
	copy(out, f.data)
	return out
}

// ChannelMean returns the per-pixel mean over channels as an h*w row-major slice.
func (f *Field) ChannelMean() []float64 {
	out := make([]float64, f.height*f.width)
	if f.channels == 1 {
		copy(out, f.data)
		return out
	}
	inv := 1 / float64(f.channels)
	for i := range out {
		sum := 0.0
		base := i * f.channels
		for ch := 0; ch < f.channels; ch++ {
			sum += f.data[base+ch]
		}
		out[i] = sum * inv
	}
	return out
}

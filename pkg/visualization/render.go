// Package visualization renders masks and measured plaques as images for
// inspection.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"plaquequant/pkg/quantify"
	"plaquequant/pkg/raster"
)

var (
	// maskTint is blended over foreground pixels
	maskTint = color.NRGBA{R: 220, G: 40, B: 40, A: 255}

	// singleMark and mergedMark draw centroids of single and corrected regions
	singleMark = color.NRGBA{R: 40, G: 220, B: 40, A: 255}
	mergedMark = color.NRGBA{R: 250, G: 220, B: 0, A: 255}
)

// MaskImage renders foreground pixels white on black.
func MaskImage(m *raster.Mask) (*image.Gray, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	h, w := m.Shape()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			if m.At(r, c) {
				img.SetGray(c, r, color.Gray{Y: 255})
			}
		}
	}
	return img, nil
}

// FieldImage renders the channel mean of f, stretched to the full grey range.
func FieldImage(f *raster.Field) (*image.Gray, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	h, w, _ := f.Shape()
	mean := f.ChannelMean()

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range mean {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	scale := 0.0
	if hi > lo {
		scale = 255 / (hi - lo)
	}

	img := image.NewGray(image.Rect(0, 0, w, h))
	for i, v := range mean {
		img.Pix[i] = uint8(math.Round((v - lo) * scale))
	}
	return img, nil
}

// Overlay draws res over base: the cleaned mask is tinted and each plaque
// centroid gets a cross whose arms grow with its count. base must have the
// extent of the result mask.
func Overlay(base image.Image, res *quantify.Result) (*image.NRGBA, error) {
	if res == nil {
		return nil, fmt.Errorf("nil result")
	}
	if err := res.Mask.Validate(); err != nil {
		return nil, err
	}
	h, w := res.Mask.Shape()
	b := base.Bounds()
	if b.Dx() != w || b.Dy() != h {
		return nil, fmt.Errorf("%w: base %dx%d, mask %dx%d", raster.ErrShape, b.Dy(), b.Dx(), h, w)
	}

	out := imaging.Clone(base)
	for r := 0; r < h; r++ {
		for c := 0; c < w; c++ {
			if res.Mask.At(r, c) {
				out.SetNRGBA(c, r, blend(out.NRGBAAt(c, r), maskTint, 0.4))
			}
		}
	}

	for _, pl := range res.Plaques {
		mark := singleMark
		if pl.Count > 1 {
			mark = mergedMark
		}
		cross(out, pl.Centroid.Row, pl.Centroid.Col, 1+pl.Count, mark)
	}
	return out, nil
}

func blend(a, b color.NRGBA, t float64) color.NRGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x)*(1-t) + float64(y)*t))
	}
	return color.NRGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}

func cross(img *image.NRGBA, row, col float64, arm int, c color.NRGBA) {
	r0, c0 := int(math.Round(row)), int(math.Round(col))
	for d := -arm; d <= arm; d++ {
		// Set ignores points outside the bounds
		img.SetNRGBA(c0+d, r0, c)
		img.SetNRGBA(c0, r0+d, c)
	}
}

// Upscale enlarges img by an integer factor without interpolation.
func Upscale(img image.Image, factor int) image.Image {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	return imaging.Resize(img, b.Dx()*factor, b.Dy()*factor, imaging.NearestNeighbor)
}

// Save writes img to path, creating the directory if needed. The format
// follows the file extension.
func Save(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("error saving %s: %w", path, err)
	}
	return nil
}

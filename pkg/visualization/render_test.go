package visualization

import (
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"plaquequant/pkg/quantify"
	"plaquequant/pkg/raster"
)

func testResult(t *testing.T) *quantify.Result {
	t.Helper()
	m, err := raster.MaskFromRows(
		"..........",
		".###......",
		".###......",
		".###......",
		"..........",
		"......##..",
	)
	if err != nil {
		t.Fatalf("Failed to build mask: %v", err)
	}
	res, err := quantify.Run(m, nil, quantify.Params{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return res
}

func TestMaskImage(t *testing.T) {
	res := testResult(t)
	img, err := MaskImage(res.Mask)
	if err != nil {
		t.Fatalf("MaskImage failed: %v", err)
	}
	if img.Bounds().Dx() != 10 || img.Bounds().Dy() != 6 {
		t.Fatalf("Unexpected bounds %v", img.Bounds())
	}
	if img.GrayAt(1, 1).Y != 255 || img.GrayAt(0, 0).Y != 0 || img.GrayAt(7, 5).Y != 255 {
		t.Errorf("Unexpected mask rendering")
	}
	if _, err := MaskImage(nil); err == nil {
		t.Errorf("Expected error for nil mask")
	}
}

func TestFieldImage(t *testing.T) {
	f, err := raster.NewField2D(1, 3, []float64{10, 20, 30})
	if err != nil {
		t.Fatalf("Failed to build field: %v", err)
	}
	img, err := FieldImage(f)
	if err != nil {
		t.Fatalf("FieldImage failed: %v", err)
	}
	if img.GrayAt(0, 0).Y != 0 || img.GrayAt(1, 0).Y != 128 || img.GrayAt(2, 0).Y != 255 {
		t.Errorf("Unexpected stretch %v", img.Pix)
	}

	flat, _ := raster.NewField2D(1, 2, []float64{4, 4})
	img, err = FieldImage(flat)
	if err != nil || img.GrayAt(0, 0).Y != 0 {
		t.Errorf("Constant field should render black, got %v, %v", img, err)
	}
}

func TestOverlay(t *testing.T) {
	res := testResult(t)
	base, _ := MaskImage(res.Mask)
	out, err := Overlay(image.NewGray(base.Bounds()), res)
	if err != nil {
		t.Fatalf("Overlay failed: %v", err)
	}

	// Centroid of the 3x3 block sits at row 2, col 2
	if got := out.NRGBAAt(2, 2); got != singleMark {
		t.Errorf("Expected centroid mark, got %v", got)
	}
	if got := out.NRGBAAt(9, 0); got != (color.NRGBA{A: 255}) {
		t.Errorf("Background should be untouched, got %v", got)
	}
	if got := out.NRGBAAt(3, 1); got.R <= got.G {
		t.Errorf("Expected tinted foreground, got %v", got)
	}

	small := image.NewGray(image.Rect(0, 0, 3, 3))
	if _, err := Overlay(small, res); !errors.Is(err, raster.ErrShape) {
		t.Errorf("Expected ErrShape for mismatched base, got %v", err)
	}
}

func TestUpscaleAndSave(t *testing.T) {
	res := testResult(t)
	img, _ := MaskImage(res.Mask)

	big := Upscale(img, 3)
	if big.Bounds().Dx() != 30 || big.Bounds().Dy() != 18 {
		t.Fatalf("Unexpected upscaled bounds %v", big.Bounds())
	}
	if Upscale(img, 1) != image.Image(img) {
		t.Errorf("Factor 1 should return the input")
	}

	path := filepath.Join(t.TempDir(), "out", "mask.png")
	if err := Save(big, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("Failed to reopen %s: %v", path, err)
	}
	if loaded.Bounds() != big.Bounds() {
		t.Errorf("Reloaded bounds %v, want %v", loaded.Bounds(), big.Bounds())
	}
	r, _, _, _ := loaded.At(4, 4).RGBA()
	if r>>8 != 255 {
		t.Errorf("Expected foreground at (4,4) after upscaling")
	}
}

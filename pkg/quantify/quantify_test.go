package quantify

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"plaquequant/pkg/filters"
	"plaquequant/pkg/picks"
	"plaquequant/pkg/raster"
)

// discMask draws filled discs of the given radius into an h x w mask
func discMask(t *testing.T, height, width, radius int, centres [][2]int, extra ...[2]int) *raster.Mask {
	t.Helper()
	bits := make([]bool, height*width)
	for _, c := range centres {
		for r := 0; r < height; r++ {
			for col := 0; col < width; col++ {
				dr, dc := r-c[0], col-c[1]
				if dr*dr+dc*dc <= radius*radius {
					bits[r*width+col] = true
				}
			}
		}
	}
	for _, px := range extra {
		bits[px[0]*width+px[1]] = true
	}
	m, err := raster.NewMask(height, width, bits)
	if err != nil {
		t.Fatalf("Failed to build mask: %v", err)
	}
	return m
}

func testMask(t *testing.T) *raster.Mask {
	// Two isolated discs, a touching pair and one noise pixel
	return discMask(t, 60, 80, 5,
		[][2]int{{15, 15}, {15, 45}, {45, 20}, {45, 30}},
		[2]int{2, 70},
	)
}

func TestRunWithoutPicks(t *testing.T) {
	params := Params{Filter: filters.Config{MinComponentSize: 5}}
	res, err := Run(testMask(t), nil, params, zerolog.Nop())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Regions() != 3 {
		t.Fatalf("Expected 3 regions, got %d", res.Regions())
	}
	if res.Total() != 3 {
		t.Errorf("Without picks every region counts once, got total %d", res.Total())
	}
	for _, p := range res.Plaques {
		if p.Count != 1 || p.PickMode != picks.ModeNone {
			t.Errorf("Plaque %d: count %d mode %v", p.Label, p.Count, p.PickMode)
		}
		if !p.BBox.Contains(p.Centroid) {
			t.Errorf("Plaque %d: centroid outside bbox", p.Label)
		}
	}

	first := res.Plaques[0]
	if first.Area != 81 || first.Centroid.Row != 15 || first.Centroid.Col != 15 {
		t.Errorf("Unexpected first plaque %+v", first)
	}
	if res.Mask.At(2, 70) {
		t.Errorf("Noise pixel should have been filtered out")
	}
}

func TestRunWithPicks(t *testing.T) {
	for _, shape := range []bool{false, true} {
		params := Params{
			Filter: filters.Config{MinComponentSize: 5},
			Picks:  picks.Config{UsePicks: true, ShapeCorrection: shape},
		}
		res, err := Run(testMask(t), nil, params, zerolog.Nop())
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if res.ExpectedSingleArea != 81 {
			t.Errorf("Expected single area 81, got %f", res.ExpectedSingleArea)
		}
		if res.Total() != 4 {
			t.Errorf("shape=%v: expected 4 plaques, got %d", shape, res.Total())
		}
		merged := res.Plaques[2]
		if merged.Area != 161 || merged.Count != 2 {
			t.Errorf("shape=%v: unexpected merged plaque %+v", shape, merged)
		}
		wantMode := picks.ModeArea
		if shape {
			wantMode = picks.ModeAreaShape
		}
		if res.PickMode != wantMode || merged.PickMode != wantMode {
			t.Errorf("Expected mode %v, got %v", wantMode, res.PickMode)
		}
	}
}

func TestRunEmptyMask(t *testing.T) {
	m, _ := raster.NewEmptyMask(10, 10)
	res, err := Run(m, nil, Params{Picks: picks.Config{UsePicks: true}}, zerolog.Nop())
	if err != nil {
		t.Fatalf("An empty mask is not an error: %v", err)
	}
	if res.Regions() != 0 || res.Total() != 0 {
		t.Errorf("Expected no plaques, got %d", res.Regions())
	}
}

func TestRunErrors(t *testing.T) {
	m := testMask(t)
	if _, err := Run(nil, nil, Params{}, zerolog.Nop()); !errors.Is(err, raster.ErrShape) {
		t.Errorf("Expected ErrShape for nil mask, got %v", err)
	}
	if _, err := Run(m, nil, Params{Filter: filters.Config{MinComponentSize: -3}}, zerolog.Nop()); !errors.Is(err, filters.ErrConfig) {
		t.Errorf("Expected filters.ErrConfig, got %v", err)
	}
	if _, err := Run(m, nil, Params{Picks: picks.Config{ExpectedSingleArea: -1}}, zerolog.Nop()); !errors.Is(err, picks.ErrConfig) {
		t.Errorf("Expected picks.ErrConfig, got %v", err)
	}
}

func TestResultClone(t *testing.T) {
	res, err := Run(testMask(t), nil, Params{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	c := res.Clone()
	c.Plaques[0].Count = 99
	if res.Plaques[0].Count == 99 {
		t.Errorf("Clone should not share plaque storage")
	}
}

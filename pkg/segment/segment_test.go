package segment

import (
	"errors"
	"math/rand"
	"testing"

	"plaquequant/pkg/raster"
)

func mustMask(t *testing.T, rows ...string) *raster.Mask {
	t.Helper()
	m, err := raster.MaskFromRows(rows...)
	if err != nil {
		t.Fatalf("Failed to build mask: %v", err)
	}
	return m
}

func TestLabelConnectivity(t *testing.T) {
	m := mustMask(t,
		"##...",
		"##...",
		"..#..",
		".....",
		"....#",
	)

	eight, err := Label(m, Eight)
	if err != nil {
		t.Fatalf("Label failed: %v", err)
	}
	if len(eight.Regions) != 2 {
		t.Errorf("Expected 2 regions with 8-connectivity, got %d", len(eight.Regions))
	}

	four, err := Label(m, Four)
	if err != nil {
		t.Fatalf("Label failed: %v", err)
	}
	if len(four.Regions) != 3 {
		t.Errorf("Expected 3 regions with 4-connectivity, got %d", len(four.Regions))
	}

	// Zero value defaults to 8-connectivity
	def, err := Label(m, 0)
	if err != nil {
		t.Fatalf("Label failed: %v", err)
	}
	if len(def.Regions) != 2 {
		t.Errorf("Expected default connectivity to be 8, got %d regions", len(def.Regions))
	}
}

func TestLabelRasterOrder(t *testing.T) {
	m := mustMask(t,
		"...#",
		"#..#",
		"#...",
	)
	l, err := Label(m, Eight)
	if err != nil {
		t.Fatalf("Label failed: %v", err)
	}
	if len(l.Regions) != 2 {
		t.Fatalf("Expected 2 regions, got %d", len(l.Regions))
	}
	// The column-3 region is met first in a row-major scan
	if l.LabelAt(0, 3) != 1 || l.LabelAt(1, 0) != 2 {
		t.Errorf("Unexpected labels: (0,3)=%d (1,0)=%d", l.LabelAt(0, 3), l.LabelAt(1, 0))
	}
	for i, r := range l.Regions {
		if r.Label != i+1 {
			t.Errorf("Region %d has label %d", i, r.Label)
		}
	}

	r := l.Regions[0]
	if r.Area() != 2 || r.BBox.MinRow != 0 || r.BBox.MaxRow != 2 || r.BBox.MinCol != 3 || r.BBox.MaxCol != 4 {
		t.Errorf("Unexpected region %+v", r)
	}
	if !r.TouchesBorder {
		t.Errorf("Region on the last column should touch the border")
	}
}

func TestLabelEmptyMask(t *testing.T) {
	m, _ := raster.NewEmptyMask(4, 4)
	l, err := Label(m, Eight)
	if err != nil {
		t.Fatalf("Label failed: %v", err)
	}
	if len(l.Regions) != 0 {
		t.Errorf("Expected no regions, got %d", len(l.Regions))
	}
}

func TestLabelErrors(t *testing.T) {
	m := mustMask(t, "#")
	if _, err := Label(m, Connectivity(6)); !errors.Is(err, ErrConnectivity) {
		t.Errorf("Expected ErrConnectivity, got %v", err)
	}
	if _, err := Label(nil, Eight); !errors.Is(err, raster.ErrShape) {
		t.Errorf("Expected ErrShape, got %v", err)
	}
}

// TestLabelIdempotent checks that relabelling the reconstructed binary form
// gives the same regions, and that the segmentation is deterministic.
func TestLabelIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	bits := make([]bool, 60*80)
	for i := range bits {
		bits[i] = rng.Float64() < 0.45
	}
	m, _ := raster.NewMask(60, 80, bits)

	for _, conn := range []Connectivity{Four, Eight} {
		first, err := Label(m, conn)
		if err != nil {
			t.Fatalf("Label failed: %v", err)
		}
		rebuilt, err := first.Mask()
		if err != nil {
			t.Fatalf("Mask failed: %v", err)
		}
		if !rebuilt.Equal(m) {
			t.Fatalf("Reconstructed mask differs from input")
		}
		second, err := Label(rebuilt, conn)
		if err != nil {
			t.Fatalf("Label failed: %v", err)
		}
		if len(first.Regions) != len(second.Regions) {
			t.Errorf("conn %d: region count changed from %d to %d", conn, len(first.Regions), len(second.Regions))
		}
		for i := range first.Labels {
			if first.Labels[i] != second.Labels[i] {
				t.Fatalf("conn %d: label of pixel %d changed", conn, i)
			}
		}

		total := 0
		for _, r := range first.Regions {
			total += r.Area()
		}
		if total != m.Count() {
			t.Errorf("Region areas sum to %d, mask has %d foreground pixels", total, m.Count())
		}
	}
}

func TestKeep(t *testing.T) {
	m := mustMask(t,
		"#..##",
		"...##",
	)
	l, _ := Label(m, Eight)
	kept, err := l.Keep(func(r Region) bool { return r.Area() > 1 })
	if err != nil {
		t.Fatalf("Keep failed: %v", err)
	}
	want := mustMask(t,
		"...##",
		"...##",
	)
	if !kept.Equal(want) {
		t.Errorf("Unexpected mask:\n%s", kept)
	}
}

package picks

import (
	"errors"
	"math"
	"testing"

	"plaquequant/pkg/measure"
)

func stats(area int, elongation float64) measure.Stats {
	return measure.Stats{Area: area, Moments: measure.Moments{Elongation: elongation}}
}

func TestCountWithoutPicks(t *testing.T) {
	e, err := NewEstimator(Config{}, nil)
	if err != nil {
		t.Fatalf("NewEstimator failed: %v", err)
	}
	for _, s := range []measure.Stats{stats(1, 1), stats(50, 1), stats(5000, 7)} {
		if n := e.Count(s); n != 1 {
			t.Errorf("Area %d: expected 1 without picks, got %d", s.Area, n)
		}
	}
	if e.Mode() != ModeNone || e.Expected() != 0 {
		t.Errorf("Expected ModeNone with no expected area, got %v %f", e.Mode(), e.Expected())
	}
}

func TestCountWithExpectedArea(t *testing.T) {
	e, err := NewEstimator(Config{UsePicks: true, ExpectedSingleArea: 100}, nil)
	if err != nil {
		t.Fatalf("NewEstimator failed: %v", err)
	}
	tests := []struct {
		area int
		want int
	}{
		{1, 1},
		{49, 1},
		{100, 1},
		{149, 1},
		{150, 2},
		{210, 2},
		{360, 4},
	}
	for _, tt := range tests {
		if got := e.Count(stats(tt.area, 1)); got != tt.want {
			t.Errorf("Area %d: got %d, want %d", tt.area, got, tt.want)
		}
	}
	if e.Mode() != ModeArea {
		t.Errorf("Expected ModeArea, got %v", e.Mode())
	}
}

func TestExpectedAreaFromPopulation(t *testing.T) {
	population := []measure.Stats{stats(90, 1), stats(100, 1), stats(110, 1), stats(100, 1), stats(400, 1)}

	e, err := NewEstimator(Config{UsePicks: true}, population)
	if err != nil {
		t.Fatalf("NewEstimator failed: %v", err)
	}
	if e.Expected() != 100 {
		t.Errorf("Expected median area 100, got %f", e.Expected())
	}
	if n := e.Count(population[4]); n != 4 {
		t.Errorf("Expected 4 plaques in the merged region, got %d", n)
	}

	if got := ExpectedArea(population, Modal); got != 100 {
		t.Errorf("Expected modal area 100, got %f", got)
	}
	if got := ExpectedArea(nil, Median); got != 0 {
		t.Errorf("Expected 0 for empty population, got %f", got)
	}
}

func TestShapeCorrection(t *testing.T) {
	population := []measure.Stats{stats(100, 1.1), stats(100, 1.0), stats(100, 1.2), stats(120, 2.3)}
	cfg := Config{UsePicks: true, ShapeCorrection: true}

	e, err := NewEstimator(cfg, population)
	if err != nil {
		t.Fatalf("NewEstimator failed: %v", err)
	}
	// Two touching discs have about the area of one and a half but elongation near 2.2
	if n := e.Count(population[3]); n != 2 {
		t.Errorf("Expected shape correction to give 2, got %d", n)
	}
	if n := e.Count(population[0]); n != 1 {
		t.Errorf("Round region should stay at 1, got %d", n)
	}
	if e.Mode() != ModeAreaShape {
		t.Errorf("Expected ModeAreaShape, got %v", e.Mode())
	}
}

func TestCountAlwaysPositive(t *testing.T) {
	cfgs := []Config{
		{},
		{UsePicks: true},
		{UsePicks: true, ExpectedSingleArea: 1e9},
		{UsePicks: true, ShapeCorrection: true, ElongationThreshold: 1},
	}
	regions := []measure.Stats{stats(1, 1), stats(3, 0), stats(1000, 12)}
	for _, cfg := range cfgs {
		e, err := NewEstimator(cfg, regions)
		if err != nil {
			t.Fatalf("NewEstimator(%+v) failed: %v", cfg, err)
		}
		for _, s := range regions {
			if n := e.Count(s); n < 1 {
				t.Errorf("Config %+v, area %d: count %d below 1", cfg, s.Area, n)
			}
		}
	}
}

func TestCountCappedByArea(t *testing.T) {
	e, err := NewEstimator(Config{UsePicks: true, ExpectedSingleArea: 1e-300}, nil)
	if err != nil {
		t.Fatalf("NewEstimator failed: %v", err)
	}
	if n := e.Count(stats(100, 1)); n != 100 {
		t.Errorf("Tiny expected area should cap the count at the area, got %d", n)
	}
	if n := e.Count(stats(0, 1)); n != 1 {
		t.Errorf("Empty region should count 1, got %d", n)
	}

	shape, err := NewEstimator(Config{UsePicks: true, ExpectedSingleArea: 100, ShapeCorrection: true}, nil)
	if err != nil {
		t.Fatalf("NewEstimator failed: %v", err)
	}
	if n := shape.Count(stats(3, 1e300)); n != 3 {
		t.Errorf("Extreme elongation should cap the count at the area, got %d", n)
	}
	if n := shape.Count(stats(3, math.Inf(1))); n != 3 {
		t.Errorf("Infinite elongation should cap the count at the area, got %d", n)
	}
}

func TestConfigValidate(t *testing.T) {
	bad := []Config{
		{ExpectedSingleArea: -1},
		{ElongationThreshold: 0.5},
		{Population: Population(9)},
	}
	for _, cfg := range bad {
		if _, err := NewEstimator(cfg, nil); !errors.Is(err, ErrConfig) {
			t.Errorf("Config %+v: expected ErrConfig, got %v", cfg, err)
		}
	}
}

func TestModeString(t *testing.T) {
	if ModeNone.String() != "none" || ModeArea.String() != "area" || ModeAreaShape.String() != "area+shape" {
		t.Errorf("Unexpected mode names")
	}
}

// Package picks estimates how many individual plaques a connected region
// represents. Plaques that grow into each other merge into one region, so a
// plain component count undercounts dense wells.
package picks

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"plaquequant/pkg/measure"
)

// ErrConfig is returned for an invalid pick configuration.
var ErrConfig = errors.New("picks: invalid configuration")

// DefaultElongationThreshold is the elongation above which a region is treated as a merge.
const DefaultElongationThreshold = 1.6

// Mode records which correction produced a count.
type Mode int

const (
	// ModeNone counts every region as one plaque.
	ModeNone Mode = iota
	// ModeArea divides region area by the expected single-plaque area.
	ModeArea
	// ModeAreaShape additionally uses elongation as a merge indicator.
	ModeAreaShape
)

// String returns the name used in reports.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeArea:
		return "area"
	case ModeAreaShape:
		return "area+shape"
	default:
		return "unknown"
	}
}

// Population selects the statistic used to derive the single-plaque area.
type Population int

const (
	// Median of region areas.
	Median Population = iota
	// Modal region area.
	Modal
)

// Config controls pick correction.
type Config struct {
	// UsePicks enables correction. When false every region counts once.
	UsePicks bool

	// ExpectedSingleArea is the pixel area of one plaque. Zero derives it from the population.
	ExpectedSingleArea float64

	// Population is the statistic used when ExpectedSingleArea is zero.
	Population Population

	// ShapeCorrection enables the elongation indicator.
	ShapeCorrection bool

	// ElongationThreshold marks merged regions. Zero means DefaultElongationThreshold.
	ElongationThreshold float64
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if math.IsNaN(c.ExpectedSingleArea) || math.IsInf(c.ExpectedSingleArea, 0) || c.ExpectedSingleArea < 0 {
		return fmt.Errorf("%w: expected single area %v", ErrConfig, c.ExpectedSingleArea)
	}
	if math.IsNaN(c.ElongationThreshold) || (c.ElongationThreshold != 0 && c.ElongationThreshold < 1) {
		return fmt.Errorf("%w: elongation threshold %v below 1", ErrConfig, c.ElongationThreshold)
	}
	if c.Population != Median && c.Population != Modal {
		return fmt.Errorf("%w: population statistic %d", ErrConfig, c.Population)
	}
	return nil
}

func (c Config) elongationThreshold() float64 {
	if c.ElongationThreshold == 0 {
		return DefaultElongationThreshold
	}
	return c.ElongationThreshold
}

// Mode reports the mode the configuration produces.
func (c Config) Mode() Mode {
	switch {
	case !c.UsePicks:
		return ModeNone
	case c.ShapeCorrection:
		return ModeAreaShape
	default:
		return ModeArea
	}
}

// Estimator assigns plaque counts to measured regions.
type Estimator struct {
	cfg      Config
	expected float64
}

// NewEstimator prepares an estimator. The population is only consulted when
// picks are enabled and no expected area is configured.
func NewEstimator(cfg Config, population []measure.Stats) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Estimator{cfg: cfg, expected: cfg.ExpectedSingleArea}
	if cfg.UsePicks && e.expected == 0 {
		e.expected = ExpectedArea(singles(cfg, population), cfg.Population)
	}
	return e, nil
}

// Expected returns the single-plaque area in use, 0 when none applies.
func (e *Estimator) Expected() float64 { return e.expected }

// Mode reports how counts are produced.
func (e *Estimator) Mode() Mode { return e.cfg.Mode() }

// Count returns the number of plaques s represents. The result is always at
// least 1 and never more than the region's pixel area.
func (e *Estimator) Count(s measure.Stats) int {
	if !e.cfg.UsePicks {
		return 1
	}
	// A region never holds more plaques than pixels; the cap also keeps
	// the float to int conversions in range.
	limit := math.Max(1, float64(s.Area))
	n := 1
	if e.expected > 0 {
		n = max(1, int(math.Round(math.Min(float64(s.Area)/e.expected, limit))))
	}
	if e.cfg.ShapeCorrection && s.Moments.Elongation >= e.cfg.elongationThreshold() {
		n = max(n, int(math.Round(math.Min(s.Moments.Elongation, limit))))
	}
	return n
}

// ExpectedArea derives a single-plaque area from region areas. It returns 0
// for an empty population.
func ExpectedArea(population []measure.Stats, p Population) float64 {
	if len(population) == 0 {
		return 0
	}
	areas := make([]float64, len(population))
	for i, s := range population {
		areas[i] = float64(s.Area)
	}
	sort.Float64s(areas)

	if p == Modal {
		mode, _ := stat.Mode(areas, nil)
		return mode
	}
	return stat.Quantile(0.5, stat.Empirical, areas, nil)
}

// singles drops obviously merged regions from the population when shape
// information is in use. If every region looks merged the full population is kept.
func singles(cfg Config, population []measure.Stats) []measure.Stats {
	if !cfg.ShapeCorrection {
		return population
	}
	thr := cfg.elongationThreshold()
	out := make([]measure.Stats, 0, len(population))
	for _, s := range population {
		if s.Moments.Elongation < thr {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return population
	}
	return out
}

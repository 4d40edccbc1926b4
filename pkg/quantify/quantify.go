// Package quantify composes the measurement pipeline: artifact and background
// filtering, segmentation, measurement and pick correction.
//
// The pipeline stages run strictly in order:
//  1. Clean the mask with the artifact and background filters
//  2. Label connected regions of the cleaned mask
//  3. Measure area, centroid and moments of every region
//  4. Estimate the plaque count of every region
//
// Run is a pure function of its inputs. Callers that need caching wrap it,
// as the specimen package does.
package quantify

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"plaquequant/internal/models"
	"plaquequant/pkg/filters"
	"plaquequant/pkg/measure"
	"plaquequant/pkg/picks"
	"plaquequant/pkg/raster"
	"plaquequant/pkg/segment"
)

// Params holds the measurement configuration. It is comparable and can be
// used as a cache key.
type Params struct {
	// Filter configures artifact and background removal
	Filter filters.Config

	// Connectivity used by segmentation. Zero means segment.Eight.
	Connectivity segment.Connectivity

	// PixelSize is the physical edge length of a pixel; zero keeps pixel units
	PixelSize float64

	// Picks configures merged-plaque correction
	Picks picks.Config
}

// Plaque is one measured plaque object.
type Plaque struct {
	// Label of the source region within this measurement pass. BBox locates
	// the region; no pointer to the region itself is kept.
	Label int
	BBox  models.BBox

	Area       int
	ScaledArea float64
	Centroid   models.Point
	Elongation float64

	// Count is the estimated number of plaques in the region, at least 1
	Count int

	// PickMode records which correction produced Count
	PickMode picks.Mode
}

// Result is the output of one pipeline run.
type Result struct {
	Plaques []Plaque

	// Mask is the cleaned mask that was segmented
	Mask *raster.Mask

	// PickMode and ExpectedSingleArea describe the pick correction applied
	PickMode           picks.Mode
	ExpectedSingleArea float64
}

// Regions returns the number of connected regions.
func (r *Result) Regions() int { return len(r.Plaques) }

// Total returns the sum of plaque counts.
func (r *Result) Total() int {
	n := 0
	for _, p := range r.Plaques {
		n += p.Count
	}
	return n
}

// Clone returns a deep copy whose plaque slice can be modified freely. The
// mask is shared because masks are immutable.
func (r *Result) Clone() *Result {
	out := *r
	out.Plaques = make([]Plaque, len(r.Plaques))
	copy(out.Plaques, r.Plaques)
	return &out
}

// Run executes the complete measurement pipeline on one mask.
// This is the entry point used by specimens for every measurement pass.
//
// Parameters:
//   - mask: Binary plaque mask, left unmodified
//   - field: Optional intensity field, only needed by intensity-based background rules
//   - p: Filter, segmentation, measurement and pick configuration
//   - logger: Receives debug-level stage summaries
//
// Returns:
//   - The measured plaques and the cleaned mask; an all-background mask yields no plaques
//   - An error wrapping the failing stage
func Run(mask *raster.Mask, field *raster.Field, p Params, logger zerolog.Logger) (*Result, error) {
	start := time.Now()
	log := logger.With().Str("component", "quantify").Logger()

	if err := mask.Validate(); err != nil {
		return nil, err
	}
	if p.Filter.Connectivity == 0 {
		p.Filter.Connectivity = p.Connectivity
	}

	// Step 1: artifact and background filters
	cleaned, err := filters.Clean(mask, field, p.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to filter mask: %w", err)
	}
	log.Debug().
		Int("foreground", mask.Count()).
		Int("kept", cleaned.Count()).
		Msg("mask filtered")

	// Step 2: segmentation
	labeling, err := segment.Label(cleaned, p.Connectivity)
	if err != nil {
		return nil, fmt.Errorf("failed to segment mask: %w", err)
	}

	// Step 3: measurement
	stats, err := measure.All(labeling, p.PixelSize)
	if err != nil {
		return nil, fmt.Errorf("failed to measure regions: %w", err)
	}

	// Step 4: pick correction
	estimator, err := picks.NewEstimator(p.Picks, stats)
	if err != nil {
		return nil, fmt.Errorf("failed to configure pick correction: %w", err)
	}

	res := &Result{
		Plaques:            make([]Plaque, 0, len(stats)),
		Mask:               cleaned,
		PickMode:           estimator.Mode(),
		ExpectedSingleArea: estimator.Expected(),
	}
	for _, s := range stats {
		res.Plaques = append(res.Plaques, Plaque{
			Label:      s.Label,
			BBox:       s.BBox,
			Area:       s.Area,
			ScaledArea: s.ScaledArea,
			Centroid:   s.Centroid,
			Elongation: s.Moments.Elongation,
			Count:      estimator.Count(s),
			PickMode:   estimator.Mode(),
		})
	}

	log.Debug().
		Int("regions", res.Regions()).
		Int("plaques", res.Total()).
		Str("picks", res.PickMode.String()).
		Float64("expected_area", res.ExpectedSingleArea).
		Dur("elapsed", time.Since(start)).
		Msg("measurement complete")

	return res, nil
}

// Package plate stitches independently measured wells into a plate-level view.
//
// Each well carries an offset that places its local coordinate frame on the
// plate. Plaques are never merged across wells: every stitched plaque belongs
// to exactly one well.
package plate

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"plaquequant/internal/models"
	"plaquequant/pkg/quantify"
	"plaquequant/pkg/raster"
)

// ErrWell is returned for an invalid well definition.
var ErrWell = errors.New("plate: invalid well")

// Specimen is the capability the stitcher needs from a well's data holder.
type Specimen interface {
	Name() string
	Mask() *raster.Mask
	Measure(quantify.Params) (*quantify.Result, error)
}

// Well places one specimen on the plate.
type Well struct {
	// ID identifies the well, for example "B3". IDs must be unique on a plate.
	ID string

	// Offset is the plate position of the well's (0, 0) pixel
	Offset models.Point

	Specimen Specimen
}

// WellResult is the measurement of one well.
type WellResult struct {
	ID     string
	Offset models.Point
	Result *quantify.Result
}

// Plaque is a plaque tagged with its well and plate coordinates.
type Plaque struct {
	quantify.Plaque

	Well      string
	WellIndex int

	// PlateCentroid is Offset + Centroid
	PlateCentroid models.Point
}

// Plate is the stitched result.
type Plate struct {
	// Wells are in input order
	Wells []WellResult

	// Plaques are grouped by well in input order, then by label
	Plaques []Plaque

	index *index
}

// Stitcher measures wells and combines their results.
type Stitcher struct {
	// Params is the measurement configuration applied to every well
	Params quantify.Params

	// Workers bounds concurrent measurements. Zero uses runtime.NumCPU().
	Workers int

	Logger zerolog.Logger
}

// NewStitcher creates a stitcher with a silent logger.
func NewStitcher(params quantify.Params) *Stitcher {
	return &Stitcher{Params: params, Logger: zerolog.Nop()}
}

// Stitch measures every well and returns the plate view.
// Wells are measured concurrently, bounded by Workers. The first failure
// cancels wells that have not started yet and no partial plate is returned.
//
// Parameters:
//   - ctx: Cancels wells that have not started
//   - wells: Wells with unique IDs and non-nil specimens
//
// Returns:
//   - A plate whose plaques carry their well and plate-relative centroid
//   - ErrWell for an invalid well list, or the first measurement error
func (s *Stitcher) Stitch(ctx context.Context, wells []Well) (*Plate, error) {
	if err := validateWells(wells); err != nil {
		return nil, err
	}
	log := s.Logger.With().Str("component", "plate").Logger()

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]*quantify.Result, len(wells))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, w := range wells {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := w.Specimen.Measure(s.Params)
			if err != nil {
				return fmt.Errorf("well %s: %w", w.ID, err)
			}
			results[i] = res
			log.Debug().Str("well", w.ID).Int("plaques", res.Total()).Msg("well measured")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p := &Plate{Wells: make([]WellResult, len(wells))}
	for i, w := range wells {
		p.Wells[i] = WellResult{ID: w.ID, Offset: w.Offset, Result: results[i]}
		for _, pl := range results[i].Plaques {
			p.Plaques = append(p.Plaques, Plaque{
				Plaque:        pl,
				Well:          w.ID,
				WellIndex:     i,
				PlateCentroid: w.Offset.Add(pl.Centroid),
			})
		}
	}
	p.index = newIndex(p.Plaques)

	log.Info().Int("wells", len(wells)).Int("plaques", p.Total()).Msg("plate stitched")
	return p, nil
}

func validateWells(wells []Well) error {
	seen := make(map[string]bool, len(wells))
	for i, w := range wells {
		if strings.TrimSpace(w.ID) == "" {
			return fmt.Errorf("%w: well %d has no ID", ErrWell, i)
		}
		if seen[w.ID] {
			return fmt.Errorf("%w: duplicate well ID %q", ErrWell, w.ID)
		}
		seen[w.ID] = true
		if isNil(w.Specimen) {
			return fmt.Errorf("%w: well %q has no specimen", ErrWell, w.ID)
		}
	}
	return nil
}

// isNil also catches a nil pointer stored in the interface.
func isNil(s Specimen) bool {
	if s == nil {
		return true
	}
	v := reflect.ValueOf(s)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// Total returns the sum of plaque counts over all wells.
func (p *Plate) Total() int {
	n := 0
	for _, pl := range p.Plaques {
		n += pl.Count
	}
	return n
}

// ByWell returns the plaques of one well.
func (p *Plate) ByWell(id string) []Plaque {
	var out []Plaque
	for _, pl := range p.Plaques {
		if pl.Well == id {
			out = append(out, pl)
		}
	}
	return out
}

// Counts returns the total plaque count per well ID.
func (p *Plate) Counts() map[string]int {
	out := make(map[string]int, len(p.Wells))
	for _, w := range p.Wells {
		out[w.ID] = w.Result.Total()
	}
	return out
}

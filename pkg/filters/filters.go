// Package filters removes noise and background components from a plaque mask
// before it is measured.
//
// Every rule is decided per connected component from properties of that
// component alone, so dropping some components never changes the verdict on
// the others and reapplying a filter to its own output is a no-op.
package filters

import (
	"errors"
	"fmt"
	"math"

	"plaquequant/pkg/raster"
	"plaquequant/pkg/segment"
)

var (
	// ErrConfig is returned for an invalid filter configuration.
	ErrConfig = errors.New("filters: invalid configuration")

	// ErrNoField is returned when an intensity rule is configured without a field.
	ErrNoField = errors.New("filters: intensity rule requires a field")
)

// IntensityBand drops components whose mean intensity lies within [Low, High].
// Intensities are the channel mean of the raw field samples.
type IntensityBand struct {
	Enabled bool
	Low     float64
	High    float64
}

// BackgroundPolicy describes which components are considered background.
// The zero value drops nothing.
type BackgroundPolicy struct {
	// DropBorderTouching removes components that touch the field edge and
	// have at least BorderMinArea pixels. A BorderMinArea of 0 removes every
	// border component.
	DropBorderTouching bool
	BorderMinArea      int

	// MaxAreaFraction removes components covering more than this fraction of
	// the field, such as the uncleared surround of a well. Zero disables the rule.
	MaxAreaFraction float64

	// Intensity removes components matching a background intensity signature.
	Intensity IntensityBand
}

// Validate checks the policy values.
func (p BackgroundPolicy) Validate() error {
	if p.BorderMinArea < 0 {
		return fmt.Errorf("%w: border min area %d", ErrConfig, p.BorderMinArea)
	}
	if math.IsNaN(p.MaxAreaFraction) || p.MaxAreaFraction < 0 || p.MaxAreaFraction > 1 {
		return fmt.Errorf("%w: max area fraction %v not in [0, 1]", ErrConfig, p.MaxAreaFraction)
	}
	if p.Intensity.Enabled && !(p.Intensity.Low <= p.Intensity.High) {
		return fmt.Errorf("%w: intensity band [%v, %v]", ErrConfig, p.Intensity.Low, p.Intensity.High)
	}
	return nil
}

// Config combines artifact and background removal.
type Config struct {
	// MinComponentSize is the smallest component, in pixels, that survives. Zero keeps everything.
	MinComponentSize int

	// Connectivity used to identify components. Zero means segment.Eight.
	Connectivity segment.Connectivity

	Background BackgroundPolicy
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.MinComponentSize < 0 {
		return fmt.Errorf("%w: min component size %d", ErrConfig, c.MinComponentSize)
	}
	if _, err := c.Connectivity.Resolve(); err != nil {
		return err
	}
	return c.Background.Validate()
}

// RemoveArtifacts returns a copy of m without components smaller than minSize pixels.
func RemoveArtifacts(m *raster.Mask, minSize int, conn segment.Connectivity) (*raster.Mask, error) {
	if minSize < 0 {
		return nil, fmt.Errorf("%w: min component size %d", ErrConfig, minSize)
	}
	l, err := segment.Label(m, conn)
	if err != nil {
		return nil, err
	}
	return l.Keep(func(r segment.Region) bool {
		return r.Area() >= minSize
	})
}

// RemoveBackground returns a copy of m without the components the policy
// classifies as background. field may be nil unless the intensity rule is enabled.
func RemoveBackground(m *raster.Mask, field *raster.Field, p BackgroundPolicy, conn segment.Connectivity) (*raster.Mask, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	l, err := segment.Label(m, conn)
	if err != nil {
		return nil, err
	}

	var intensity []float64
	if p.Intensity.Enabled {
		if field == nil {
			return nil, ErrNoField
		}
		if err := field.Validate(); err != nil {
			return nil, err
		}
		fh, fw, _ := field.Shape()
		if fh != l.Height || fw != l.Width {
			return nil, fmt.Errorf("%w: field %dx%d does not match mask %dx%d", raster.ErrShape, fh, fw, l.Height, l.Width)
		}
		intensity = field.ChannelMean()
	}

	total := float64(l.Height * l.Width)
	return l.Keep(func(r segment.Region) bool {
		if p.DropBorderTouching && r.TouchesBorder && r.Area() >= p.BorderMinArea {
			return false
		}
		if p.MaxAreaFraction > 0 && float64(r.Area())/total > p.MaxAreaFraction {
			return false
		}
		if intensity != nil {
			mean := regionMean(r, intensity, l.Width)
			if mean >= p.Intensity.Low && mean <= p.Intensity.High {
				return false
			}
		}
		return true
	})
}

// Clean applies RemoveArtifacts followed by RemoveBackground.
func Clean(m *raster.Mask, field *raster.Field, cfg Config) (*raster.Mask, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	out, err := RemoveArtifacts(m, cfg.MinComponentSize, cfg.Connectivity)
	if err != nil {
		return nil, fmt.Errorf("removing artifacts: %w", err)
	}
	out, err = RemoveBackground(out, field, cfg.Background, cfg.Connectivity)
	if err != nil {
		return nil, fmt.Errorf("removing background: %w", err)
	}
	return out, nil
}

func regionMean(r segment.Region, intensity []float64, width int) float64 {
	sum := 0.0
	for _, px := range r.Pixels {
		sum += intensity[px.Row*width+px.Col]
	}
	return sum / float64(len(r.Pixels))
}

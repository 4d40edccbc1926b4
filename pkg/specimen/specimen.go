// Package specimen holds the input data of one analysed region and exposes
// the measurement pipeline over it.
//
// A Specimen is built either directly from a mask or from an RGB image. For
// an image, the mask is derived by the threshold engine unless the caller supplies
// one. Measurement results are cached per configuration.
package specimen

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"plaquequant/pkg/quantify"
	"plaquequant/pkg/raster"
	"plaquequant/pkg/threshold"
)

var (
	// ErrInput is returned when the name, image or mask is malformed.
	ErrInput = errors.New("specimen: invalid input")

	// ErrConfig is returned when the mask source is missing, incomplete or ambiguous.
	ErrConfig = errors.New("specimen: invalid mask source")
)

// Source tags how the specimen's mask was obtained.
type Source int

const (
	// FromMask specimens wrap a caller-supplied mask.
	FromMask Source = iota + 1
	// FromImage specimens own an intensity field.
	FromImage
)

// String returns the source name.
func (s Source) String() string {
	switch s {
	case FromMask:
		return "mask"
	case FromImage:
		return "image"
	default:
		return "unknown"
	}
}

// ImageSource selects how an image specimen gets its mask. Exactly one of
// Mask or the (Threshold, Sigma) pair must be set. A nil pointer means the
// value was not supplied; zero values are valid settings.
type ImageSource struct {
	Mask *raster.Mask

	Threshold     *float64
	Sigma         *float64
	Normalization threshold.Normalization
}

// MaskSource returns an ImageSource that uses m as the mask.
func MaskSource(m *raster.Mask) ImageSource {
	return ImageSource{Mask: m}
}

// ThresholdSource returns an ImageSource that derives the mask with the
// threshold engine.
func ThresholdSource(thr, sigma float64) ImageSource {
	return ImageSource{Threshold: &thr, Sigma: &sigma}
}

// Option configures a Specimen.
type Option func(*Specimen)

// WithLogger sets the logger passed to the pipeline.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Specimen) { s.logger = l }
}

// Specimen is a named mask, optionally backed by the image it was derived from.
type Specimen struct {
	name   string
	source Source
	mask   *raster.Mask
	image  *raster.Field

	// thresholdParams is set when the mask was derived from image
	thresholdParams *threshold.Params

	logger zerolog.Logger

	mu       sync.Mutex
	cacheKey quantify.Params
	cached   *quantify.Result
}

// NewMask creates a specimen from a caller-supplied mask.
func NewMask(name string, mask *raster.Mask, opts ...Option) (*Specimen, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := mask.Validate(); err != nil {
		return nil, fmt.Errorf("%w: mask: %w", ErrInput, err)
	}
	s := &Specimen{name: name, source: FromMask, mask: mask}
	s.apply(opts)
	return s, nil
}

// NewImage creates a specimen from a rank-3 intensity field. The mask is
// taken from src.Mask or derived by thresholding the image.
func NewImage(name string, image *raster.Field, src ImageSource, opts ...Option) (*Specimen, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := image.Validate(); err != nil {
		return nil, fmt.Errorf("%w: image: %w", ErrInput, err)
	}
	if image.Rank() != 3 {
		return nil, fmt.Errorf("%w: image: rank %d, want 3", ErrInput, image.Rank())
	}

	hasMask := src.Mask != nil
	hasThreshold := src.Threshold != nil
	hasSigma := src.Sigma != nil

	s := &Specimen{name: name, source: FromImage, image: image}
	switch {
	case hasMask && (hasThreshold || hasSigma):
		return nil, fmt.Errorf("%w: both a mask and threshold parameters were supplied", ErrConfig)
	case hasMask:
		if err := src.Mask.Validate(); err != nil {
			return nil, fmt.Errorf("%w: mask: %w", ErrInput, err)
		}
		ih, iw, _ := image.Shape()
		mh, mw := src.Mask.Shape()
		if ih != mh || iw != mw {
			return nil, fmt.Errorf("%w: mask %dx%d does not match image %dx%d", ErrInput, mh, mw, ih, iw)
		}
		s.mask = src.Mask
	case hasThreshold && hasSigma:
		p := threshold.Params{Threshold: *src.Threshold, Sigma: *src.Sigma, Normalization: src.Normalization}
		mask, err := threshold.Apply(image, p)
		if err != nil {
			if errors.Is(err, raster.ErrShape) || errors.Is(err, threshold.ErrNotNumeric) {
				return nil, fmt.Errorf("%w: image: %w", ErrInput, err)
			}
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
		s.mask = mask
		s.thresholdParams = &p
	case hasThreshold:
		return nil, fmt.Errorf("%w: threshold supplied without a smoothing scale", ErrConfig)
	case hasSigma:
		return nil, fmt.Errorf("%w: smoothing scale supplied without a threshold", ErrConfig)
	default:
		return nil, fmt.Errorf("%w: either a mask or a fixed threshold must be provided", ErrConfig)
	}

	s.apply(opts)
	return s, nil
}

func (s *Specimen) apply(opts []Option) {
	s.logger = zerolog.Nop()
	for _, opt := range opts {
		opt(s)
	}
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name must be non-empty", ErrInput)
	}
	return nil
}

// Name returns the specimen identifier.
func (s *Specimen) Name() string { return s.name }

// Source reports how the mask was obtained.
func (s *Specimen) Source() Source { return s.source }

// Mask returns the specimen mask. Masks are immutable.
func (s *Specimen) Mask() *raster.Mask { return s.mask }

// Image returns the intensity field of image specimens.
func (s *Specimen) Image() (*raster.Field, bool) {
	return s.image, s.image != nil
}

// ThresholdParams returns the parameters used to derive the mask, if any.
func (s *Specimen) ThresholdParams() (threshold.Params, bool) {
	if s.thresholdParams == nil {
		return threshold.Params{}, false
	}
	return *s.thresholdParams, true
}

// Measured reports whether a measurement result is cached.
func (s *Specimen) Measured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cached != nil
}

// Measure runs the pipeline over the specimen's mask. A call with the same
// params as the previous call returns the cached result; any other params
// replace it. The returned result is a copy owned by the caller.
func (s *Specimen) Measure(params quantify.Params) (*quantify.Result, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil specimen", ErrInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.cacheKey == params {
		return s.cached.Clone(), nil
	}

	logger := s.logger.With().Str("specimen", s.name).Str("source", s.source.String()).Logger()
	res, err := quantify.Run(s.mask, s.image, params, logger)
	if err != nil {
		return nil, fmt.Errorf("measuring %s: %w", s.name, err)
	}
	s.cacheKey = params
	s.cached = res
	return res.Clone(), nil
}

// Invalidate drops the cached result.
func (s *Specimen) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
}

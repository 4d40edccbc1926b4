// Package threshold derives a binary plaque mask from an intensity field.
//
// The engine collapses multi-channel input to a single normalised channel,
// smooths it with a separable Gaussian, renormalises the result so the cutoff
// does not depend on the input's sample range, and keeps every sample at or
// above the cutoff as foreground.
package threshold

import (
	"errors"
	"fmt"
	"math"

	"plaquequant/pkg/raster"
)

var (
	// ErrThresholdRange is returned when the cutoff lies outside the range of normalised samples.
	ErrThresholdRange = errors.New("threshold: cutoff out of range")

	// ErrSigma is returned for a negative or non-finite smoothing scale.
	ErrSigma = errors.New("threshold: invalid smoothing scale")

	// ErrNotNumeric is returned when the field contains NaN or infinite samples.
	ErrNotNumeric = errors.New("threshold: non-finite sample")
)

// DefaultTruncate is the kernel half-width in units of sigma.
const DefaultTruncate = 4.0

// MaxKernelRadius bounds the Gaussian kernel half-width in pixels.
const MaxKernelRadius = 1 << 16

// Params configures one thresholding pass.
type Params struct {
	// Threshold is the cutoff applied to normalised samples. Samples >= Threshold are foreground.
	Threshold float64

	// Sigma is the Gaussian scale in pixels. Zero disables smoothing.
	Sigma float64

	// Normalization is applied to the smoothed field before the cutoff.
	Normalization Normalization

	// Method selects the convolution strategy.
	Method Method

	// Truncate bounds the kernel at Truncate*Sigma pixels. Zero means DefaultTruncate.
	Truncate float64
}

// Validate checks the cutoff and smoothing scale.
func (p Params) Validate() error {
	if math.IsNaN(p.Sigma) || math.IsInf(p.Sigma, 0) || p.Sigma < 0 {
		return fmt.Errorf("%w: sigma %v", ErrSigma, p.Sigma)
	}
	if math.IsNaN(p.Truncate) || math.IsInf(p.Truncate, 0) || p.Truncate < 0 {
		return fmt.Errorf("%w: truncate %v", ErrSigma, p.Truncate)
	}
	truncate := p.Truncate
	if truncate == 0 {
		truncate = DefaultTruncate
	}
	if r := math.Ceil(truncate * p.Sigma); r > MaxKernelRadius {
		return fmt.Errorf("%w: kernel radius %v exceeds %d pixels", ErrSigma, r, MaxKernelRadius)
	}
	if math.IsNaN(p.Threshold) || math.IsInf(p.Threshold, 0) {
		return fmt.Errorf("%w: %v", ErrThresholdRange, p.Threshold)
	}
	lo, hi, bounded := p.Normalization.Range()
	if bounded && (p.Threshold < lo || p.Threshold > hi) {
		return fmt.Errorf("%w: %v not in [%v, %v]", ErrThresholdRange, p.Threshold, lo, hi)
	}
	switch p.Method {
	case Auto, Direct, FFT:
	default:
		return fmt.Errorf("threshold: unknown smoothing method %d", p.Method)
	}
	return nil
}

// Fixed thresholds f at the given cutoff after min-max normalisation and
// Gaussian smoothing with scale sigma.
func Fixed(f *raster.Field, threshold, sigma float64) (*raster.Mask, error) {
	return Apply(f, Params{Threshold: threshold, Sigma: sigma})
}

// Apply runs the full thresholding pass over an intensity field.
// Channels are averaged and scaled to [0, 1], the result is smoothed with a
// separable Gaussian and normalised again, and every sample at or above the
// cutoff becomes foreground.
//
// Parameters:
//   - f: Rank-2 or rank-3 intensity field
//   - p: Cutoff, smoothing scale, normalisation and convolution method
//
// Returns:
//   - A new mask with the spatial extent of f
//   - raster.ErrShape, ErrNotNumeric, ErrSigma or ErrThresholdRange on invalid input
func Apply(f *raster.Field, p Params) (*raster.Mask, error) {
	smoothed, err := Smoothed(f, p)
	if err != nil {
		return nil, err
	}
	height, width, _ := f.Shape()

	bits := make([]bool, len(smoothed))
	for i, v := range smoothed {
		bits[i] = v >= p.Threshold
	}
	return raster.NewMask(height, width, bits)
}

// Smoothed returns the collapsed, smoothed and normalised field that Apply
// compares against the cutoff.
func Smoothed(f *raster.Field, p Params) ([]float64, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if r := f.Rank(); r != 2 && r != 3 {
		return nil, fmt.Errorf("%w: field rank %d, want 2 or 3", raster.ErrShape, r)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	data, err := Collapse(f)
	if err != nil {
		return nil, err
	}
	height, width, _ := f.Shape()

	truncate := p.Truncate
	if truncate == 0 {
		truncate = DefaultTruncate
	}
	smoothed := Smooth(data, height, width, p.Sigma, truncate, p.Method)
	return Normalize(smoothed, p.Normalization), nil
}

// Collapse averages the channels of f and min-max normalises the result to [0, 1].
func Collapse(f *raster.Field) ([]float64, error) {
	data := f.ChannelMean()
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: pixel %d", ErrNotNumeric, i)
		}
	}
	return Normalize(data, MinMax), nil
}

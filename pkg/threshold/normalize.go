package threshold

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Normalization selects how smoothed samples are rescaled before the cutoff.
type Normalization int

const (
	// MinMax maps samples linearly onto [0, 1].
	MinMax Normalization = iota
	// ZScore centres samples on their mean in units of standard deviation.
	ZScore
)

// String returns the configuration name of the normalisation.
func (n Normalization) String() string {
	switch n {
	case MinMax:
		return "minmax"
	case ZScore:
		return "zscore"
	default:
		return "unknown"
	}
}

// ParseNormalization is the inverse of Normalization.String.
func ParseNormalization(s string) (Normalization, bool) {
	switch s {
	case "", "minmax":
		return MinMax, true
	case "zscore":
		return ZScore, true
	default:
		return MinMax, false
	}
}

// Range returns the interval of normalised values and whether it is bounded.
func (n Normalization) Range() (lo, hi float64, bounded bool) {
	if n == MinMax {
		return 0, 1, true
	}
	return 0, 0, false
}

// Normalize returns a rescaled copy of data. A constant input maps to all zeros.
func Normalize(data []float64, n Normalization) []float64 {
	out := make([]float64, len(data))
	if len(data) == 0 {
		return out
	}

	switch n {
	case ZScore:
		mean, std := stat.PopMeanStdDev(data, nil)
		if std == 0 {
			return out
		}
		for i, v := range data {
			out[i] = (v - mean) / std
		}
	default:
		lo, hi := floats.Min(data), floats.Max(data)
		span := hi - lo
		if span == 0 {
			return out
		}
		for i, v := range data {
			out[i] = (v - lo) / span
		}
	}
	return out
}

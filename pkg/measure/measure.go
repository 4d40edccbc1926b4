// Package measure computes area, centroid and second-moment shape statistics
// for labeled regions.
package measure

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"plaquequant/internal/models"
	"plaquequant/pkg/segment"
)

var (
	// ErrPixelSize is returned for a negative or non-finite pixel size.
	ErrPixelSize = errors.New("measure: invalid pixel size")

	// ErrEmptyRegion is returned when a region has no pixels.
	ErrEmptyRegion = errors.New("measure: empty region")
)

// pixelVariance is the second moment of a unit square about its centre.
// Adding it treats each pixel as an area rather than a point, which keeps the
// minor axis of one-pixel-wide regions finite.
const pixelVariance = 1.0 / 12.0

// Moments describes the ellipse with the same second moments as a region.
type Moments struct {
	// MajorAxis and MinorAxis are full axis lengths in pixels
	MajorAxis float64
	MinorAxis float64

	// Elongation is MajorAxis / MinorAxis, 1 for isotropic regions
	Elongation float64

	// Orientation is the angle of the major axis from the column axis, in radians
	Orientation float64
}

// Stats are the measurements of one region.
type Stats struct {
	Label int

	// Area is the exact pixel count
	Area int

	// ScaledArea is Area multiplied by the squared pixel size
	ScaledArea float64

	// Centroid is the mean pixel position
	Centroid models.Point

	BBox          models.BBox
	TouchesBorder bool
	Moments       Moments
}

// Region measures one labeled region. pixelSize is the physical edge length
// of a pixel; zero leaves ScaledArea in pixel units.
func Region(r segment.Region, pixelSize float64) (Stats, error) {
	if math.IsNaN(pixelSize) || math.IsInf(pixelSize, 0) || pixelSize < 0 {
		return Stats{}, fmt.Errorf("%w: %v", ErrPixelSize, pixelSize)
	}
	n := len(r.Pixels)
	if n == 0 {
		return Stats{}, fmt.Errorf("%w: label %d", ErrEmptyRegion, r.Label)
	}

	rows := make([]float64, n)
	cols := make([]float64, n)
	for i, px := range r.Pixels {
		rows[i] = float64(px.Row)
		cols[i] = float64(px.Col)
	}

	scale := 1.0
	if pixelSize > 0 {
		scale = pixelSize * pixelSize
	}

	s := Stats{
		Label:         r.Label,
		Area:          n,
		ScaledArea:    float64(n) * scale,
		Centroid:      models.Point{Row: stat.Mean(rows, nil), Col: stat.Mean(cols, nil)},
		BBox:          r.BBox,
		TouchesBorder: r.TouchesBorder,
	}
	s.Moments = moments(rows, cols, s.Centroid)
	return s, nil
}

// All measures every region of l in label order.
func All(l *segment.Labeling, pixelSize float64) ([]Stats, error) {
	out := make([]Stats, 0, len(l.Regions))
	for _, r := range l.Regions {
		s, err := Region(r, pixelSize)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// moments computes the equivalent ellipse from the population covariance of
// pixel positions.
func moments(rows, cols []float64, c models.Point) Moments {
	var muRR, muCC, muRC float64
	for i := range rows {
		dr := rows[i] - c.Row
		dc := cols[i] - c.Col
		muRR += dr * dr
		muCC += dc * dc
		muRC += dr * dc
	}
	inv := 1 / float64(len(rows))
	muRR = muRR*inv + pixelVariance
	muCC = muCC*inv + pixelVariance
	muRC *= inv

	cov := mat.NewSymDense(2, []float64{muCC, muRC, muRC, muRR})
	var eig mat.EigenSym
	if ok := eig.Factorize(cov, false); !ok {
		return Moments{Elongation: 1}
	}
	// Values are in ascending order
	vals := eig.Values(nil)
	minor := 4 * math.Sqrt(math.Max(vals[0], 0))
	major := 4 * math.Sqrt(math.Max(vals[1], 0))

	m := Moments{
		MajorAxis:   major,
		MinorAxis:   minor,
		Elongation:  1,
		Orientation: 0.5 * math.Atan2(2*muRC, muCC-muRR),
	}
	if minor > 0 {
		m.Elongation = major / minor
	}
	return m
}

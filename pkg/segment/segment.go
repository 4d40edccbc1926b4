// Package segment labels the connected foreground regions of a binary mask.
package segment

import (
	"errors"
	"fmt"

	"plaquequant/internal/models"
	"plaquequant/pkg/raster"
)

// ErrConnectivity is returned for an adjacency rule other than Four or Eight.
var ErrConnectivity = errors.New("segment: unsupported connectivity")

// Connectivity is the pixel adjacency rule used to grow regions.
type Connectivity int

const (
	// Eight joins pixels that share an edge or a corner.
	Eight Connectivity = 8
	// Four joins pixels that share an edge.
	Four Connectivity = 4
)

var (
	offsets4 = []models.Pixel{{Row: -1}, {Col: -1}, {Col: 1}, {Row: 1}}
	offsets8 = []models.Pixel{
		{Row: -1, Col: -1}, {Row: -1}, {Row: -1, Col: 1},
		{Col: -1}, {Col: 1},
		{Row: 1, Col: -1}, {Row: 1}, {Row: 1, Col: 1},
	}
)

// Resolve maps the zero value to Eight and rejects unknown rules.
func (c Connectivity) Resolve() (Connectivity, error) {
	switch c {
	case 0:
		return Eight, nil
	case Four, Eight:
		return c, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrConnectivity, int(c))
	}
}

func (c Connectivity) offsets() []models.Pixel {
	if c == Four {
		return offsets4
	}
	return offsets8
}

// Region is one connected component.
type Region struct {
	// Label is the 1-based identifier assigned in raster-scan order
	Label int

	// Pixels lists the member pixels in the order they were reached
	Pixels []models.Pixel

	// BBox is the tight bounding box of Pixels
	BBox models.BBox

	// TouchesBorder is set when any member lies on the first or last row or column
	TouchesBorder bool
}

// Area returns the number of pixels in the region.
func (r Region) Area() int { return len(r.Pixels) }

// Labeling is the result of one segmentation pass.
type Labeling struct {
	Height int
	Width  int

	// Labels holds the region label of every pixel, 0 for background
	Labels []int

	// Regions are ordered by label; Regions[i].Label == i+1
	Regions []Region
}

// Label segments m into connected regions. Labels are assigned in the order
// their first pixel is met in a row-major scan, so identical masks always
// produce identical labelings.
func Label(m *raster.Mask, conn Connectivity) (*Labeling, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	conn, err := conn.Resolve()
	if err != nil {
		return nil, err
	}

	height, width := m.Shape()
	l := &Labeling{
		Height: height,
		Width:  width,
		Labels: make([]int, height*width),
	}
	offsets := conn.offsets()

	// Breadth-first flood fill from every unlabelled foreground pixel
	queue := make([]models.Pixel, 0, 64)
	for r := 0; r < height; r++ {
		for c := 0; c < width; c++ {
			if !m.At(r, c) || l.Labels[r*width+c] != 0 {
				continue
			}

			label := len(l.Regions) + 1
			region := Region{Label: label}
			l.Labels[r*width+c] = label
			queue = append(queue[:0], models.Pixel{Row: r, Col: c})

			for head := 0; head < len(queue); head++ {
				px := queue[head]
				region.Pixels = append(region.Pixels, px)
				region.BBox = region.BBox.Extend(px)
				if px.Row == 0 || px.Col == 0 || px.Row == height-1 || px.Col == width-1 {
					region.TouchesBorder = true
				}

				for _, off := range offsets {
					nr, nc := px.Row+off.Row, px.Col+off.Col
					if !m.At(nr, nc) || l.Labels[nr*width+nc] != 0 {
						continue
					}
					l.Labels[nr*width+nc] = label
					queue = append(queue, models.Pixel{Row: nr, Col: nc})
				}
			}

			l.Regions = append(l.Regions, region)
		}
	}

	return l, nil
}

// LabelAt returns the label at (r, c), or 0 for background and out of range pixels.
func (l *Labeling) LabelAt(r, c int) int {
	if r < 0 || c < 0 || r >= l.Height || c >= l.Width {
		return 0
	}
	return l.Labels[r*l.Width+c]
}

// Mask reconstructs the binary form of the labeling.
func (l *Labeling) Mask() (*raster.Mask, error) {
	bits := make([]bool, len(l.Labels))
	for i, v := range l.Labels {
		bits[i] = v != 0
	}
	return raster.NewMask(l.Height, l.Width, bits)
}

// Keep returns a new mask holding only the regions for which keep returns true.
func (l *Labeling) Keep(keep func(Region) bool) (*raster.Mask, error) {
	bits := make([]bool, len(l.Labels))
	for _, region := range l.Regions {
		if !keep(region) {
			continue
		}
		for _, px := range region.Pixels {
			bits[px.Row*l.Width+px.Col] = true
		}
	}
	return raster.NewMask(l.Height, l.Width, bits)
}

package plate

import (
	"fmt"
	"math"
	"sort"

	"plaquequant/internal/models"
	"plaquequant/pkg/raster"
)

// Position is a well slot in a rectangular plate layout.
type Position struct {
	ID     string
	Row    int
	Col    int
	Offset models.Point
}

// WellName returns the conventional plate name of a slot: rows are letters
// (A..Z, then AA..) and columns are 1-based numbers.
func WellName(row, col int) string {
	name := ""
	for r := row; r >= 0; r = r/26 - 1 {
		name = string(rune('A'+r%26)) + name
	}
	return fmt.Sprintf("%s%d", name, col+1)
}

// GridLayout returns the slots of a rows x cols plate in row-major order.
// pitchRow and pitchCol are the distances between neighbouring well origins.
func GridLayout(rows, cols int, pitchRow, pitchCol float64) ([]Position, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: layout %dx%d must be positive", ErrWell, rows, cols)
	}
	if math.IsNaN(pitchRow) || math.IsNaN(pitchCol) || pitchRow < 0 || pitchCol < 0 {
		return nil, fmt.Errorf("%w: negative pitch", ErrWell)
	}
	out := make([]Position, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out = append(out, Position{
				ID:     WellName(r, c),
				Row:    r,
				Col:    c,
				Offset: models.Point{Row: float64(r) * pitchRow, Col: float64(c) * pitchCol},
			})
		}
	}
	return out, nil
}

// StitchMasks composes the wells' masks into one plate mask of the given
// extent. Offsets must be whole pixels and every well must fit inside the
// plate. Overlapping foreground is combined.
func StitchMasks(wells []Well, height, width int) (*raster.Mask, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: plate extent %dx%d", raster.ErrShape, height, width)
	}
	if err := validateWells(wells); err != nil {
		return nil, err
	}

	bits := make([]bool, height*width)
	for _, w := range wells {
		m := w.Specimen.Mask()
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("well %s: %w", w.ID, err)
		}
		if w.Offset.Row != math.Trunc(w.Offset.Row) || w.Offset.Col != math.Trunc(w.Offset.Col) {
			return nil, fmt.Errorf("%w: well %s offset %+v is not a whole pixel", ErrWell, w.ID, w.Offset)
		}
		r0, c0 := int(w.Offset.Row), int(w.Offset.Col)
		mh, mw := m.Shape()
		if r0 < 0 || c0 < 0 || r0+mh > height || c0+mw > width {
			return nil, fmt.Errorf("%w: well %s at %d,%d (%dx%d) exceeds plate %dx%d", ErrWell, w.ID, r0, c0, mh, mw, height, width)
		}
		for r := 0; r < mh; r++ {
			for c := 0; c < mw; c++ {
				if m.At(r, c) {
					bits[(r0+r)*width+c0+c] = true
				}
			}
		}
	}
	return raster.NewMask(height, width, bits)
}

func sortByDistance(plaques []Plaque, pt models.Point) {
	dist := func(p Plaque) float64 {
		d := p.PlateCentroid.Sub(pt)
		return d.Row*d.Row + d.Col*d.Col
	}
	sort.SliceStable(plaques, func(i, j int) bool {
		return dist(plaques[i]) < dist(plaques[j])
	})
}

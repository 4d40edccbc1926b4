package plate

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/stat"

	"plaquequant/internal/models"
)

// platePoint is a plate centroid with the index of its plaque
type platePoint struct {
	Row, Col float64
	idx      int
}

// Compare implements the kdtree.Comparable interface
func (p platePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(platePoint)
	switch d {
	case 0:
		return p.Row - q.Row
	case 1:
		return p.Col - q.Col
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p platePoint) Dims() int { return 2 }

// Distance returns the squared Euclidean distance between two points
func (p platePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(platePoint)
	dr := p.Row - q.Row
	dc := p.Col - q.Col
	return dr*dr + dc*dc
}

// platePoints is a collection of platePoint that satisfies kdtree.Interface
type platePoints []platePoint

func (p platePoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p platePoints) Len() int                              { return len(p) }
func (p platePoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p platePoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(pointPlane{platePoints: p, Dim: d}, kdtree.MedianOfMedians(pointPlane{platePoints: p, Dim: d}))
}

// pointPlane implements sort.Interface and kdtree.SortSlicer for platePoints
type pointPlane struct {
	platePoints
	kdtree.Dim
}

func (p pointPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.platePoints[i].Row < p.platePoints[j].Row
	case 1:
		return p.platePoints[i].Col < p.platePoints[j].Col
	default:
		panic("illegal dimension")
	}
}

func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	return pointPlane{platePoints: p.platePoints[start:end], Dim: p.Dim}
}

func (p pointPlane) Swap(i, j int) {
	p.platePoints[i], p.platePoints[j] = p.platePoints[j], p.platePoints[i]
}

// index answers nearest-plaque queries over plate centroids
type index struct {
	tree *kdtree.Tree
}

func newIndex(plaques []Plaque) *index {
	if len(plaques) == 0 {
		return &index{}
	}
	pts := make(platePoints, len(plaques))
	for i, pl := range plaques {
		pts[i] = platePoint{Row: pl.PlateCentroid.Row, Col: pl.PlateCentroid.Col, idx: i}
	}
	return &index{tree: kdtree.New(pts, false)}
}

// Nearest returns the plaque whose plate centroid is closest to pt and the
// Euclidean distance to it. ok is false for a plate without plaques.
func (p *Plate) Nearest(pt models.Point) (pl Plaque, dist float64, ok bool) {
	if p.index == nil || p.index.tree == nil {
		return Plaque{}, 0, false
	}
	c, d := p.index.tree.Nearest(platePoint{Row: pt.Row, Col: pt.Col})
	if c == nil {
		return Plaque{}, 0, false
	}
	return p.Plaques[c.(platePoint).idx], math.Sqrt(d), true
}

// Within returns the plaques whose plate centroids lie within radius of pt,
// nearest first.
func (p *Plate) Within(pt models.Point, radius float64) []Plaque {
	if p.index == nil || p.index.tree == nil {
		return nil
	}
	keeper := kdtree.NewDistKeeper(radius * radius)
	p.index.tree.NearestSet(keeper, platePoint{Row: pt.Row, Col: pt.Col})

	out := make([]Plaque, 0, keeper.Len())
	for _, item := range keeper.Heap {
		// Skip the sentinel value
		if item.Comparable == nil {
			continue
		}
		out = append(out, p.Plaques[item.Comparable.(platePoint).idx])
	}
	sortByDistance(out, pt)
	return out
}

// Spacing summarises the distance from each plaque to its nearest neighbour
// on the plate.
type Spacing struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// NearestNeighbourDistances returns, for every plaque, the distance to the
// nearest other plaque, together with summary statistics. Plates with fewer
// than two plaques yield no distances.
func (p *Plate) NearestNeighbourDistances() ([]float64, Spacing) {
	if len(p.Plaques) < 2 {
		return nil, Spacing{}
	}
	dists := make([]float64, len(p.Plaques))
	for i, pl := range p.Plaques {
		keeper := kdtree.NewNKeeper(2)
		p.index.tree.NearestSet(keeper, platePoint{Row: pl.PlateCentroid.Row, Col: pl.PlateCentroid.Col})

		best := math.Inf(1)
		for _, item := range keeper.Heap {
			if item.Comparable == nil || item.Comparable.(platePoint).idx == i {
				continue
			}
			best = math.Min(best, math.Sqrt(item.Dist))
		}
		dists[i] = best
	}

	mean, std := stat.MeanStdDev(dists, nil)
	s := Spacing{Mean: mean, StdDev: std, Min: dists[0], Max: dists[0]}
	for _, d := range dists {
		s.Min = math.Min(s.Min, d)
		s.Max = math.Max(s.Max, d)
	}
	return dists, s
}

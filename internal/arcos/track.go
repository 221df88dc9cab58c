package arcos

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/banshee-data/collev/internal/schema"
	"github.com/banshee-data/collev/internal/table"
)

// linkPoint is an already labelled point of a preceding frame.
type linkPoint struct {
	coords []float64
	row    int
	event  int
}

func (p linkPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.coords[d] - c.(linkPoint).coords[d]
}

func (p linkPoint) Dims() int { return len(p.coords) }

// Distance is the squared Euclidean distance, as kdtree expects.
func (p linkPoint) Distance(c kdtree.Comparable) float64 {
	return sqDist(p.coords, c.(linkPoint).coords)
}

type linkPoints []linkPoint

func (p linkPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p linkPoints) Len() int                              { return len(p) }
func (p linkPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot uses median of medians so the tree, and with it tie breaking
// between equidistant neighbours, does not depend on random sampling.
func (p linkPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(linkPlane{points: p, dim: d}, kdtree.MedianOfMedians(linkPlane{points: p, dim: d}))
}

type linkPlane struct {
	points linkPoints
	dim    kdtree.Dim
}

func (p linkPlane) Len() int { return len(p.points) }
func (p linkPlane) Less(i, j int) bool {
	return p.points[i].coords[p.dim] < p.points[j].coords[p.dim]
}
func (p linkPlane) Swap(i, j int) { p.points[i], p.points[j] = p.points[j], p.points[i] }
func (p linkPlane) Slice(start, end int) kdtree.SortSlicer {
	return linkPlane{points: p.points[start:end], dim: p.dim}
}

// Tracker detects collective events: it clusters the active rows of each
// frame and links clusters to events seen in frames f-NPrev up to f-1.
type Tracker struct {
	Clusterer  Clusterer
	LinkRadius float64
	NPrev      int
}

// Track returns the clustered active rows of a binarized table, in their
// original order, with an event id column cols.EventID. A cluster takes the
// event id held by most of its points' nearest linked neighbours within
// LinkRadius (the smallest id on ties); a cluster with no such neighbour
// starts a new event. Event ids start at 1.
func (tr *Tracker) Track(t *table.Table, cols schema.Columns) *table.Table {
	bin := t.Floats(cols.BinColumn())
	frames := t.Floats(cols.Frame)
	coordCols := cols.CoordinateColumns()
	coordVals := make([][]float64, len(coordCols))
	for i, c := range coordCols {
		coordVals[i] = t.Floats(c)
	}

	byFrame := make(map[float64][]int)
	for r := 0; r < t.Len(); r++ {
		if bin == nil || bin[r] <= 0 || math.IsNaN(frames[r]) {
			continue
		}
		skip := false
		for _, cv := range coordVals {
			if cv == nil || math.IsNaN(cv[r]) {
				skip = true
				break
			}
		}
		if !skip {
			byFrame[frames[r]] = append(byFrame[frames[r]], r)
		}
	}
	order := make([]float64, 0, len(byFrame))
	for f := range byFrame {
		order = append(order, f)
	}
	sort.Float64s(order)

	nPrev := tr.NPrev
	if nPrev < 1 {
		nPrev = 1
	}
	link2 := tr.LinkRadius * tr.LinkRadius

	eventOf := make(map[int]int)
	labelled := make([][]linkPoint, len(order))
	nextEvent := 1

	for fi, f := range order {
		rows := byFrame[f]
		points := make([][]float64, len(rows))
		for i, r := range rows {
			p := make([]float64, len(coordVals))
			for d, cv := range coordVals {
				p[d] = cv[r]
			}
			points[i] = p
		}
		labels := tr.Clusterer.Cluster(points)

		var history linkPoints
		for back := 1; fi-back >= 0 && order[fi-back] >= f-float64(nPrev); back++ {
			history = append(history, labelled[fi-back]...)
		}
		var tree *kdtree.Tree
		if len(history) > 0 {
			tree = kdtree.New(history, false)
		}

		clusters := make(map[int][]int)
		var clusterOrder []int
		for i, l := range labels {
			if l < 0 {
				continue
			}
			if _, ok := clusters[l]; !ok {
				clusterOrder = append(clusterOrder, l)
			}
			clusters[l] = append(clusters[l], i)
		}

		for _, l := range clusterOrder {
			members := clusters[l]
			votes := make(map[int]int)
			if tree != nil {
				for _, i := range members {
					q := linkPoint{coords: points[i]}
					keep := kdtree.NewDistKeeper(link2)
					tree.NearestSet(keep, q)
					if ev, ok := nearestEvent(keep.Heap); ok {
						votes[ev]++
					}
				}
			}
			event := majority(votes)
			if event == 0 {
				event = nextEvent
				nextEvent++
			}
			for _, i := range members {
				eventOf[rows[i]] = event
				labelled[fi] = append(labelled[fi], linkPoint{coords: points[i], row: rows[i], event: event})
			}
		}
	}

	keep := make([]int, 0, len(eventOf))
	for r := 0; r < t.Len(); r++ {
		if _, ok := eventOf[r]; ok {
			keep = append(keep, r)
		}
	}
	out := t.Take(keep)
	ids := make([]float64, len(keep))
	for i, r := range keep {
		ids[i] = float64(eventOf[r])
	}
	return out.WithFloats(cols.EventID, ids)
}

// nearestEvent picks the closest kept neighbour, breaking distance ties by
// the lower source row.
func nearestEvent(h kdtree.Heap) (int, bool) {
	best := -1
	for i, c := range h {
		if c.Comparable == nil {
			continue
		}
		if best < 0 || c.Dist < h[best].Dist ||
			(c.Dist == h[best].Dist && c.Comparable.(linkPoint).row < h[best].Comparable.(linkPoint).row) {
			best = i
		}
	}
	if best < 0 {
		return 0, false
	}
	return h[best].Comparable.(linkPoint).event, true
}

// majority returns the most voted event, the smallest on ties, or 0.
func majority(votes map[int]int) int {
	best, count := 0, 0
	for ev, n := range votes {
		if n > count || (n == count && ev < best) {
			best, count = ev, n
		}
	}
	return best
}

package arcos

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/collev/internal/config"
	"github.com/banshee-data/collev/internal/schema"
	"github.com/banshee-data/collev/internal/table"
)

// meanEpsMultiplier scales the mean k-distance for the "mean" method.
const meanEpsMultiplier = 1.5

// ErrNoNeighbourDistances is returned when no frame holds enough points to
// measure a k-nearest-neighbour distance.
var ErrNoNeighbourDistances = errors.New("not enough points per frame to estimate eps")

// EstimateEps returns the neighbourhood radius for method, rounded to two
// decimals. Manual returns current. Kneepoint uses the active rows of a
// binarized table and mean uses all rows; both measure, within each frame,
// the distance from every point to its k-th nearest neighbour with
// k = minClusterSize.
func EstimateEps(t *table.Table, cols schema.Columns, method config.EpsMethod, minClusterSize int, current float64) (float64, error) {
	switch method {
	case config.EpsManual, "":
		return round2(current), nil
	case config.EpsKneepoint:
		bin := t.Floats(cols.BinColumn())
		active := t.Filter(func(r int) bool { return bin != nil && bin[r] > 0 })
		d := kDistances(active, cols, minClusterSize)
		if len(d) == 0 {
			return 0, ErrNoNeighbourDistances
		}
		return round2(kneepoint(d)), nil
	case config.EpsMean:
		d := kDistances(t, cols, minClusterSize)
		if len(d) == 0 {
			return 0, ErrNoNeighbourDistances
		}
		return round2(stat.Mean(d, nil) * meanEpsMultiplier), nil
	}
	return 0, fmt.Errorf("unknown eps method %q", method)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// kDistances collects per-frame k-th nearest neighbour distances.
func kDistances(t *table.Table, cols schema.Columns, k int) []float64 {
	if k < 1 {
		k = 1
	}
	frames := t.Floats(cols.Frame)
	coordCols := cols.CoordinateColumns()
	coords := make([][]float64, len(coordCols))
	for d, c := range coordCols {
		coords[d] = t.Floats(c)
		if coords[d] == nil {
			return nil
		}
	}

	byFrame := make(map[float64]kdtree.Points)
	for r := 0; r < t.Len(); r++ {
		p := make(kdtree.Point, len(coords))
		ok := !math.IsNaN(frames[r])
		for d := range coords {
			p[d] = coords[d][r]
			ok = ok && !math.IsNaN(p[d])
		}
		if ok {
			byFrame[frames[r]] = append(byFrame[frames[r]], p)
		}
	}
	keys := make([]float64, 0, len(byFrame))
	for f := range byFrame {
		keys = append(keys, f)
	}
	sort.Float64s(keys)

	var out []float64
	for _, f := range keys {
		pts := byFrame[f]
		if len(pts) <= k {
			continue
		}
		queries := make([]kdtree.Point, len(pts))
		copy(queries, pts)
		tree := kdtree.New(pts, false)
		for _, q := range queries {
			keep := kdtree.NewNKeeper(k + 1)
			tree.NearestSet(keep, q)
			var far float64
			for _, c := range keep.Heap {
				if c.Comparable != nil {
					far = math.Max(far, c.Dist)
				}
			}
			out = append(out, math.Sqrt(far))
		}
	}
	return out
}

// kneepoint returns the sorted distance at the point of maximum curvature,
// taken as the point farthest below the chord from the first to the last
// sorted distance.
func kneepoint(distances []float64) float64 {
	d := append([]float64(nil), distances...)
	sort.Float64s(d)
	n := len(d)
	if n < 3 || d[n-1] == d[0] {
		return d[n-1]
	}
	best, bestGap := n-1, 0.0
	for i := range d {
		x := float64(i) / float64(n-1)
		chord := d[0] + x*(d[n-1]-d[0])
		if gap := chord - d[i]; gap > bestGap {
			best, bestGap = i, gap
		}
	}
	return d[best]
}

package arcos

import (
	"math"
	"sort"

	"github.com/banshee-data/collev/internal/table"
)

// series returns the row indices of each object, ordered by frame. Objects
// are returned in ascending id order. Without an object column the whole
// table is one series.
func series(t *table.Table, objectCol, frameCol string) [][]int {
	frames := t.Floats(frameCol)
	ids := t.Floats(objectCol)

	byID := make(map[float64][]int)
	var order []float64
	for r := 0; r < t.Len(); r++ {
		id := 0.0
		if ids != nil {
			id = ids[r]
		}
		if math.IsNaN(id) {
			continue
		}
		if _, ok := byID[id]; !ok {
			order = append(order, id)
		}
		byID[id] = append(byID[id], r)
	}
	sort.Float64s(order)

	out := make([][]int, 0, len(order))
	for _, id := range order {
		rows := byID[id]
		if frames != nil {
			sort.SliceStable(rows, func(a, b int) bool { return frames[rows[a]] < frames[rows[b]] })
		}
		out = append(out, rows)
	}
	return out
}

func gather(values []float64, rows []int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = values[r]
	}
	return out
}

func scatter(dst []float64, rows []int, values []float64) {
	for i, r := range rows {
		dst[r] = values[i]
	}
}

func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// median of the non-NaN values; NaN if there are none.
func median(values []float64) float64 {
	vals := finite(values)
	if len(vals) == 0 {
		return math.NaN()
	}
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid]
	}
	return (vals[mid-1] + vals[mid]) / 2
}

// runningMedian smooths x with a centred window of k samples. Even k is
// widened to k+1. The window shrinks symmetrically at the ends.
func runningMedian(x []float64, k int) []float64 {
	out := make([]float64, len(x))
	if k <= 1 {
		copy(out, x)
		return out
	}
	if k%2 == 0 {
		k++
	}
	half := k / 2
	for i := range x {
		h := half
		if i < h {
			h = i
		}
		if len(x)-1-i < h {
			h = len(x) - 1 - i
		}
		out[i] = median(x[i-h : i+h+1])
	}
	return out
}

// interpolateLinear fills NaN gaps of y (ordered by x) by linear
// interpolation and extends the first and last known values to the ends.
func interpolateLinear(x, y []float64) []float64 {
	out := make([]float64, len(y))
	copy(out, y)

	var known []int
	for i, v := range y {
		if !math.IsNaN(v) && !math.IsNaN(x[i]) {
			known = append(known, i)
		}
	}
	if len(known) == 0 {
		return out
	}
	for i := range out {
		if !math.IsNaN(out[i]) {
			continue
		}
		j := sort.Search(len(known), func(k int) bool { return known[k] > i })
		switch {
		case j == 0:
			out[i] = y[known[0]]
		case j == len(known):
			out[i] = y[known[len(known)-1]]
		default:
			lo, hi := known[j-1], known[j]
			if x[hi] == x[lo] || math.IsNaN(x[i]) {
				out[i] = y[lo]
				continue
			}
			frac := (x[i] - x[lo]) / (x[hi] - x[lo])
			out[i] = y[lo] + frac*(y[hi]-y[lo])
		}
	}
	return out
}

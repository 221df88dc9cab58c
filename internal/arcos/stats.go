package arcos

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/collev/internal/schema"
	"github.com/banshee-data/collev/internal/table"
)

// Stats column names.
const (
	StatDuration      = "duration"
	StatTotalSize     = "total_size"
	StatMinSize       = "min_size"
	StatMaxSize       = "max_size"
	StatStartFrame    = "start_frame"
	StatEndFrame      = "end_frame"
	StatSpatialExtent = "spatial_extent"
)

// Stats returns one row per event id of a filtered event table, in
// ascending id order. Sizes count distinct objects: total over the event,
// min and max over its frames. The spatial extent is the largest distance
// between two points of the same frame. Centroid columns are named
// first_frame_centroid_<coord> and last_frame_centroid_<coord>.
func Stats(t *table.Table, cols schema.Columns) *table.Table {
	coordCols := cols.CoordinateColumns()
	events := summarize(t, cols)
	n := len(events)

	ids := make([]float64, n)
	duration := make([]float64, n)
	total := make([]float64, n)
	minSize := make([]float64, n)
	maxSize := make([]float64, n)
	start := make([]float64, n)
	end := make([]float64, n)
	extent := make([]float64, n)
	firstCentroid := make([][]float64, len(coordCols))
	lastCentroid := make([][]float64, len(coordCols))
	for d := range coordCols {
		firstCentroid[d] = make([]float64, n)
		lastCentroid[d] = make([]float64, n)
	}

	frames := t.Floats(cols.Frame)
	objects := t.Floats(cols.ObjectID)
	coords := make([][]float64, len(coordCols))
	for d, c := range coordCols {
		coords[d] = t.Floats(c)
	}

	for i, e := range events {
		ids[i] = e.id
		duration[i] = e.duration()
		total[i] = float64(len(e.objects))
		start[i] = e.minFrame
		end[i] = e.maxFrame

		perFrame := make(map[float64][]int)
		for _, r := range e.rows {
			perFrame[frames[r]] = append(perFrame[frames[r]], r)
		}
		lo, hi := math.Inf(1), 0.0
		for _, rows := range perFrame {
			size := float64(countDistinct(objects, rows))
			lo = math.Min(lo, size)
			hi = math.Max(hi, size)
			extent[i] = math.Max(extent[i], maxPairDistance(coords, rows))
		}
		minSize[i], maxSize[i] = lo, hi

		for d := range coordCols {
			firstCentroid[d][i] = stat.Mean(gather(coords[d], perFrame[e.minFrame]), nil)
			lastCentroid[d][i] = stat.Mean(gather(coords[d], perFrame[e.maxFrame]), nil)
		}
	}

	out := []table.Column{
		table.NumericColumn(cols.EventID, ids),
		table.NumericColumn(StatDuration, duration),
		table.NumericColumn(StatStartFrame, start),
		table.NumericColumn(StatEndFrame, end),
		table.NumericColumn(StatTotalSize, total),
		table.NumericColumn(StatMinSize, minSize),
		table.NumericColumn(StatMaxSize, maxSize),
	}
	for d, c := range coordCols {
		out = append(out, table.NumericColumn("first_frame_centroid_"+c, firstCentroid[d]))
	}
	for d, c := range coordCols {
		out = append(out, table.NumericColumn("last_frame_centroid_"+c, lastCentroid[d]))
	}
	out = append(out, table.NumericColumn(StatSpatialExtent, extent))
	return table.MustNew(out...)
}

func countDistinct(objects []float64, rows []int) int {
	if objects == nil {
		return len(rows)
	}
	seen := make(map[float64]struct{}, len(rows))
	for _, r := range rows {
		seen[objects[r]] = struct{}{}
	}
	return len(seen)
}

func maxPairDistance(coords [][]float64, rows []int) float64 {
	var best float64
	for a := 0; a < len(rows); a++ {
		for b := a + 1; b < len(rows); b++ {
			var sum float64
			for _, c := range coords {
				diff := c[rows[a]] - c[rows[b]]
				sum += diff * diff
			}
			best = math.Max(best, math.Sqrt(sum))
		}
	}
	return best
}

package arcos

import (
	"math"
	"sort"

	"github.com/banshee-data/collev/internal/schema"
	"github.com/banshee-data/collev/internal/table"
)

// eventSummary is the per-event aggregate used by filtering and stats.
type eventSummary struct {
	id       float64
	rows     []int
	minFrame float64
	maxFrame float64
	objects  map[float64]struct{}
}

func (e *eventSummary) duration() float64 { return e.maxFrame - e.minFrame + 1 }

// summarize groups rows by event id in ascending id order.
func summarize(t *table.Table, cols schema.Columns) []*eventSummary {
	ids := t.Floats(cols.EventID)
	frames := t.Floats(cols.Frame)
	objects := t.Floats(cols.ObjectID)

	byID := make(map[float64]*eventSummary)
	for r := 0; r < t.Len(); r++ {
		id := ids[r]
		if math.IsNaN(id) {
			continue
		}
		e, ok := byID[id]
		if !ok {
			e = &eventSummary{
				id:       id,
				minFrame: math.Inf(1),
				maxFrame: math.Inf(-1),
				objects:  make(map[float64]struct{}),
			}
			byID[id] = e
		}
		e.rows = append(e.rows, r)
		if f := frames[r]; !math.IsNaN(f) {
			e.minFrame = math.Min(e.minFrame, f)
			e.maxFrame = math.Max(e.maxFrame, f)
		}
		if objects != nil {
			e.objects[objects[r]] = struct{}{}
		} else {
			e.objects[float64(r)] = struct{}{}
		}
	}

	out := make([]*eventSummary, 0, len(byID))
	for _, e := range byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// FilterEvents drops events lasting fewer than minDuration frames or
// involving fewer than minTotalSize distinct objects, then renumbers the
// surviving ids densely from 1. Row order is preserved.
func FilterEvents(t *table.Table, cols schema.Columns, minDuration, minTotalSize int) *table.Table {
	if t.Empty() {
		return t
	}
	keepEvent := make(map[float64]bool)
	for _, e := range summarize(t, cols) {
		if e.duration() >= float64(minDuration) && len(e.objects) >= minTotalSize {
			keepEvent[e.id] = true
		}
	}
	ids := t.Floats(cols.EventID)
	kept := t.Filter(func(r int) bool { return keepEvent[ids[r]] })
	if kept.Empty() {
		return kept
	}
	return kept.WithFloats(cols.EventID, Renumber(kept.Floats(cols.EventID)))
}

// Renumber maps ids onto 1..k. Rows are stably sorted by id, split into
// groups of equal id, each group is labelled by its position in sorted
// order, and the labels are permuted back into the original row order.
// Grouping is by id equality only.
func Renumber(ids []float64) []float64 {
	order := make([]int, len(ids))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return ids[order[a]] < ids[order[b]] })

	out := make([]float64, len(ids))
	label := 0.0
	for i, r := range order {
		if i == 0 || ids[r] != ids[order[i-1]] {
			label++
		}
		out[r] = label
	}
	return out
}

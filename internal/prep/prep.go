// Package prep turns the loaded table into the filtered table the pipeline
// runs on: derived measurement, field-of-view and additional-column
// selection, track-length range, frame interval and time offset.
package prep

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/collev/internal/monitoring"
	"github.com/banshee-data/collev/internal/pipeline"
	"github.com/banshee-data/collev/internal/schema"
	"github.com/banshee-data/collev/internal/store"
	"github.com/banshee-data/collev/internal/table"
)

// OldSuffix is appended to an input column that clashes with the event id
// column written by tracking.
const OldSuffix = "_old"

var (
	// ErrNoData is returned when nothing has been loaded.
	ErrNoData = errors.New("no data loaded")
	// ErrEmptySelection is returned when the filters leave no rows.
	ErrEmptySelection = errors.New("no rows left after filtering")
)

// Selection holds the user's filter choices. Nil values and a zero
// MaxTrackLength select everything.
type Selection struct {
	// FieldOfView is compared with the string form of the field-of-view
	// cells. It only applies when the column holds more than one value.
	FieldOfView *string
	// AdditionalFilter is compared with the additional filter column.
	AdditionalFilter *string

	// Track lengths are counted in rows per object id, bounds inclusive.
	MinTrackLength int
	MaxTrackLength int

	// FrameInterval divides the frame column when greater than one.
	FrameInterval float64
}

// Invalidator is told which pipeline stages a new filtered table
// invalidates.
type Invalidator interface {
	MarkDirty(stage pipeline.Stage)
}

// Apply filters the session's original data with sel and publishes the
// result as the filtered data, together with the measurement range used for
// colouring. Binarization is scheduled on inv when it is not nil. The
// session is not modified on error.
func Apply(s *store.Session, sel Selection, inv Invalidator) error {
	original := s.OriginalData.Get()
	if original.Empty() {
		return ErrNoData
	}
	cols := s.Columns.Get()
	if err := cols.Validate(); err != nil {
		return fmt.Errorf("prep: %w", err)
	}
	if err := cols.ValidateTable(original); err != nil {
		return fmt.Errorf("prep: %w", err)
	}

	filtered, err := Filter(original, cols, sel)
	if err != nil {
		return fmt.Errorf("prep: %w", err)
	}
	if filtered.Empty() {
		return fmt.Errorf("prep: %w", ErrEmptySelection)
	}
	lo, hi, ok := MinMax(filtered.Floats(cols.Measurement()))
	if !ok {
		return fmt.Errorf("prep: measurement %q has no values: %w", cols.Measurement(), ErrEmptySelection)
	}

	s.MinMaxMeasurement.Set([2]float64{lo, hi})
	s.FilteredData.Set(filtered)
	if inv != nil {
		inv.MarkDirty(pipeline.StageBinarization)
	}
	monitoring.Logf("prep: %d of %d rows selected, measurement range [%g, %g]", filtered.Len(), original.Len(), lo, hi)
	return nil
}

// Filter runs every preparation step on t without touching a session.
func Filter(t *table.Table, cols schema.Columns, sel Selection) (*table.Table, error) {
	t, err := RenameClashing(t, cols.EventID)
	if err != nil {
		return nil, err
	}
	if t, err = CalculateMeasurement(t, cols); err != nil {
		return nil, err
	}
	if cols.FieldOfView != "" && sel.FieldOfView != nil && len(distinct(t, cols.FieldOfView)) > 1 {
		t = SelectValue(t, cols.FieldOfView, *sel.FieldOfView)
	}
	if cols.AdditionalFilter != "" && sel.AdditionalFilter != nil {
		t = SelectValue(t, cols.AdditionalFilter, *sel.AdditionalFilter)
	}
	if cols.ObjectID != "" && sel.MaxTrackLength > 0 {
		t = FilterTrackLength(t, cols.ObjectID, sel.MinTrackLength, sel.MaxTrackLength)
	}
	t = ScaleFrames(t, cols.Frame, sel.FrameInterval)
	return SubtractTimeOffset(t, cols.Frame), nil
}

// RenameClashing renames an input column named like the event id column to
// name+OldSuffix.
func RenameClashing(t *table.Table, eventCol string) (*table.Table, error) {
	if eventCol == "" || !t.Has(eventCol) {
		return t, nil
	}
	return t.Rename(eventCol, eventCol+OldSuffix)
}

// CalculateMeasurement adds the derived measurement column when an
// operation is configured.
func CalculateMeasurement(t *table.Table, cols schema.Columns) (*table.Table, error) {
	name := cols.Operation.ResultColumn()
	if name == "" {
		return t, nil
	}
	a, b := t.Floats(cols.Measurement1), t.Floats(cols.Measurement2)
	if a == nil {
		return nil, &schema.ColumnError{Role: "measurement", Column: cols.Measurement1, Err: schema.ErrNonNumericColumn}
	}
	if b == nil {
		return nil, &schema.ColumnError{Role: "second measurement", Column: cols.Measurement2, Err: schema.ErrNonNumericColumn}
	}
	out := make([]float64, len(a))
	for i := range a {
		out[i] = cols.Operation.Apply(a[i], b[i])
	}
	return t.WithFloats(name, out), nil
}

// SelectValue keeps the rows whose cell in col renders as value.
func SelectValue(t *table.Table, col, value string) *table.Table {
	return t.Filter(func(r int) bool { return t.Cell(col, r) == value })
}

// TrackLengths returns the shortest and longest track, counting rows per
// object id within each field of view and additional filter value. Both are
// zero for an empty table or when no object id is bound.
func TrackLengths(t *table.Table, cols schema.Columns) (lo, hi int) {
	if t.Empty() || cols.ObjectID == "" || !t.Has(cols.ObjectID) {
		return 0, 0
	}
	type key struct{ fov, filter, id string }
	counts := make(map[key]int)
	for r := 0; r < t.Len(); r++ {
		k := key{id: t.Cell(cols.ObjectID, r)}
		if cols.FieldOfView != "" {
			k.fov = t.Cell(cols.FieldOfView, r)
		}
		if cols.AdditionalFilter != "" {
			k.filter = t.Cell(cols.AdditionalFilter, r)
		}
		counts[k]++
	}
	lo = math.MaxInt
	for _, n := range counts {
		lo = min(lo, n)
		hi = max(hi, n)
	}
	return lo, hi
}

// FilterTrackLength keeps the objects with between lo and hi rows.
func FilterTrackLength(t *table.Table, idCol string, lo, hi int) *table.Table {
	counts := make(map[string]int)
	for r := 0; r < t.Len(); r++ {
		counts[t.Cell(idCol, r)]++
	}
	return t.Filter(func(r int) bool {
		n := counts[t.Cell(idCol, r)]
		return n >= lo && n <= hi
	})
}

// ScaleFrames divides the frame column by interval when interval > 1.
func ScaleFrames(t *table.Table, frameCol string, interval float64) *table.Table {
	frames := t.Floats(frameCol)
	if interval <= 1 || frames == nil {
		return t
	}
	out := make([]float64, len(frames))
	for i, f := range frames {
		out[i] = f / interval
	}
	return t.WithFloats(frameCol, out)
}

// SubtractTimeOffset shifts the frame column so that it starts at zero.
func SubtractTimeOffset(t *table.Table, frameCol string) *table.Table {
	frames := t.Floats(frameCol)
	first, _, ok := MinMax(frames)
	if !ok || first == 0 {
		return t
	}
	out := make([]float64, len(frames))
	for i, f := range frames {
		out[i] = f - first
	}
	return t.WithFloats(frameCol, out)
}

// MinMax returns the smallest and largest non-NaN value.
func MinMax(v []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, x := range v {
		if math.IsNaN(x) {
			continue
		}
		ok = true
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}

func distinct(t *table.Table, col string) map[string]struct{} {
	seen := make(map[string]struct{})
	for r := 0; r < t.Len(); r++ {
		seen[t.Cell(col, r)] = struct{}{}
	}
	return seen
}

package prep

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/collev/internal/pipeline"
	"github.com/banshee-data/collev/internal/schema"
	"github.com/banshee-data/collev/internal/store"
	"github.com/banshee-data/collev/internal/table"
	"github.com/banshee-data/collev/internal/testutil"
)

func strPtr(s string) *string { return &s }

// wells returns two fields of view. Object 1 has three rows in well A,
// object 2 one row in well A and object 3 two rows in well B. Frames start
// at 10.
func wells() *table.Table {
	return table.MustNew(
		table.TextColumn("well", []string{"A", "A", "A", "A", "B", "B"}),
		table.NumericColumn("t", []float64{10, 12, 14, 10, 10, 12}),
		table.NumericColumn("id", []float64{1, 1, 1, 2, 3, 3}),
		table.NumericColumn("x", []float64{0, 1, 2, 3, 4, 5}),
		table.NumericColumn("y", []float64{0, 0, 0, 0, 0, 0}),
		table.NumericColumn("m", []float64{1, 2, 3, 4, 5, 6}),
		table.NumericColumn("m2", []float64{2, 2, 2, 2, 2, 2}),
		table.NumericColumn("collid", []float64{9, 9, 9, 9, 9, 9}),
	)
}

func wellColumns() schema.Columns {
	cols := testutil.FixtureColumns()
	cols.FieldOfView = "well"
	return cols
}

func TestFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		sel    Selection
		frames []float64
		ids    []float64
	}{
		{"everything", Selection{}, []float64{0, 2, 4, 0, 0, 2}, []float64{1, 1, 1, 2, 3, 3}},
		{"well A", Selection{FieldOfView: strPtr("A")}, []float64{0, 2, 4, 0}, []float64{1, 1, 1, 2}},
		{"well B", Selection{FieldOfView: strPtr("B")}, []float64{0, 2}, []float64{3, 3}},
		{"track length 2..3", Selection{MinTrackLength: 2, MaxTrackLength: 3}, []float64{0, 2, 4, 0, 2}, []float64{1, 1, 1, 3, 3}},
		{"frame interval", Selection{FieldOfView: strPtr("A"), FrameInterval: 2}, []float64{0, 1, 2, 0}, []float64{1, 1, 1, 2}},
		{"interval of one is ignored", Selection{FieldOfView: strPtr("B"), FrameInterval: 1}, []float64{0, 2}, []float64{3, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Filter(wells(), wellColumns(), tt.sel)
			require.NoError(t, err)
			assert.Equal(t, tt.frames, got.Floats("t"))
			assert.Equal(t, tt.ids, got.Floats("id"))
			assert.False(t, got.Has("collid"))
			assert.Equal(t, 9.0, got.Floats("collid_old")[0])
		})
	}
}

func TestFilter_SingleFieldOfViewIsNotFiltered(t *testing.T) {
	t.Parallel()

	one := wells().Filter(func(r int) bool { return r < 4 })
	got, err := Filter(one, wellColumns(), Selection{FieldOfView: strPtr("B")})
	require.NoError(t, err)
	assert.Equal(t, 4, got.Len())
}

func TestFilter_AdditionalColumn(t *testing.T) {
	t.Parallel()

	cols := testutil.FixtureColumns()
	cols.AdditionalFilter = "id"
	got, err := Filter(wells(), cols, Selection{AdditionalFilter: strPtr("3")})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 3}, got.Floats("id"))
}

func TestCalculateMeasurement(t *testing.T) {
	t.Parallel()

	cols := testutil.FixtureColumns()
	cols.Measurement2 = "m2"
	tests := []struct {
		op   schema.Operation
		want float64
	}{
		{schema.OpDivide, 0.5},
		{schema.OpMultiply, 2},
		{schema.OpAdd, 3},
		{schema.OpSubtract, -1},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			cols := cols
			cols.Operation = tt.op
			got, err := CalculateMeasurement(wells(), cols)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Floats(cols.Measurement())[0])
		})
	}

	same, err := CalculateMeasurement(wells(), testutil.FixtureColumns())
	require.NoError(t, err)
	assert.Equal(t, wells().Names(), same.Names())

	cols.Operation = schema.OpAdd
	cols.Measurement2 = "well"
	_, err = CalculateMeasurement(wells(), cols)
	assert.ErrorIs(t, err, schema.ErrNonNumericColumn)
}

func TestTrackLengths(t *testing.T) {
	t.Parallel()

	lo, hi := TrackLengths(wells(), wellColumns())
	assert.Equal(t, 1, lo)
	assert.Equal(t, 3, hi)

	cols := wellColumns()
	cols.ObjectID = ""
	lo, hi = TrackLengths(wells(), cols)
	assert.Zero(t, lo)
	assert.Zero(t, hi)

	lo, hi = TrackLengths(nil, wellColumns())
	assert.Zero(t, lo+hi)
}

func TestMinMax(t *testing.T) {
	t.Parallel()

	lo, hi, ok := MinMax([]float64{math.NaN(), 3, -1, 2})
	assert.True(t, ok)
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 3.0, hi)

	_, _, ok = MinMax([]float64{math.NaN()})
	assert.False(t, ok)
}

type recordingInvalidator struct{ stages []pipeline.Stage }

func (r *recordingInvalidator) MarkDirty(s pipeline.Stage) { r.stages = append(r.stages, s) }

func TestApply(t *testing.T) {
	t.Parallel()

	s := store.NewSession()
	s.Columns.Set(wellColumns())
	inv := &recordingInvalidator{}

	assert.ErrorIs(t, Apply(s, Selection{}, inv), ErrNoData)

	s.OriginalData.Set(wells())
	require.NoError(t, Apply(s, Selection{FieldOfView: strPtr("A")}, inv))
	assert.Equal(t, 4, s.FilteredData.Get().Len())
	assert.Equal(t, [2]float64{1, 4}, s.MinMaxMeasurement.Get())
	assert.Equal(t, []pipeline.Stage{pipeline.StageBinarization}, inv.stages)

	err := Apply(s, Selection{FieldOfView: strPtr("C")}, inv)
	assert.True(t, errors.Is(err, ErrEmptySelection))
	assert.Equal(t, 4, s.FilteredData.Get().Len(), "a failed apply keeps the previous selection")
	assert.Len(t, inv.stages, 1)

	cols := wellColumns()
	cols.X = "missing"
	s.Columns.Set(cols)
	err = Apply(s, Selection{}, nil)
	var colErr *schema.ColumnError
	require.ErrorAs(t, err, &colErr)
	assert.Equal(t, "missing", colErr.Column)
}

func TestApply_Pulse(t *testing.T) {
	t.Parallel()

	s := store.NewSession()
	s.Columns.Set(testutil.FixtureColumns())
	s.OriginalData.Set(testutil.Pulse(10, 3))
	require.NoError(t, Apply(s, Selection{}, nil))
	assert.Equal(t, 30, s.FilteredData.Get().Len())
	assert.Equal(t, [2]float64{0, 1}, s.MinMaxMeasurement.Get())
}

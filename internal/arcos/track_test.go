package arcos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/collev/internal/schema"
	"github.com/banshee-data/collev/internal/table"
	"github.com/banshee-data/collev/internal/testutil"
)

func binarized(t *testing.T, in *table.Table) (*table.Table, schema.Columns) {
	t.Helper()
	cols := testutil.FixtureColumns()
	out, err := (&Binarizer{SmoothK: 1, Threshold: 0.5}).Binarize(in, cols)
	require.NoError(t, err)
	return out, cols
}

// activeAsGiven marks rows active exactly where m > 0, bypassing
// rescaling, so linking can be tested on all-active inputs.
func activeAsGiven(in *table.Table) (*table.Table, schema.Columns) {
	cols := testutil.FixtureColumns()
	return in.WithFloats(cols.BinColumn(), in.Floats("m")), cols
}

func newTracker(eps float64, minPts, nPrev int) *Tracker {
	return &Tracker{Clusterer: NewDBSCANClusterer(eps, minPts), LinkRadius: eps, NPrev: nPrev}
}

func TestTracker_TwoGroups(t *testing.T) {
	t.Parallel()

	bin, cols := binarized(t, testutil.TwoGroups())
	events := newTracker(20, 1, 1).Track(bin, cols)

	require.Equal(t, 3*3+3*4+1, events.Len())
	ids := events.Floats(cols.EventID)
	objects := events.Floats("id")
	for i := range ids {
		switch {
		case objects[i] <= 3:
			assert.Equal(t, 1.0, ids[i])
		case objects[i] <= 6:
			assert.Equal(t, 2.0, ids[i])
		default:
			assert.Equal(t, 3.0, ids[i])
		}
	}

	frames := events.Floats("t")
	for i := 1; i < len(frames); i++ {
		assert.LessOrEqual(t, frames[i-1], frames[i], "original row order is kept")
	}
}

func TestTracker_MinClusterSizeDropsNoise(t *testing.T) {
	t.Parallel()

	bin, cols := binarized(t, testutil.TwoGroups())
	events := newTracker(20, 2, 1).Track(bin, cols)

	assert.NotContains(t, events.Floats("id"), 7.0)
	assert.Equal(t, []float64{1, 2}, events.Unique(cols.EventID))
}

func TestTracker_LookBackBridgesGaps(t *testing.T) {
	t.Parallel()

	in := testutil.Table([]testutil.Observation{
		{T: 1, ID: 1, M: 1},
		{T: 2, ID: 1, M: 0},
		{T: 3, ID: 1, M: 1},
	})
	bin, cols := binarized(t, in)

	events := newTracker(5, 1, 1).Track(bin, cols)
	assert.Equal(t, []float64{1, 2}, events.Floats(cols.EventID))

	events = newTracker(5, 1, 2).Track(bin, cols)
	assert.Equal(t, []float64{1, 1}, events.Floats(cols.EventID))
}

func TestTracker_LinkRadius(t *testing.T) {
	t.Parallel()

	in := testutil.Table([]testutil.Observation{
		{T: 0, ID: 1, X: 0, M: 1},
		{T: 1, ID: 1, X: 8, M: 1},
	})
	bin, cols := activeAsGiven(in)

	tr := newTracker(5, 1, 1)
	assert.Equal(t, []float64{1, 2}, tr.Track(bin, cols).Floats(cols.EventID))

	tr.LinkRadius = 10
	assert.Equal(t, []float64{1, 1}, tr.Track(bin, cols).Floats(cols.EventID))
}

func TestTracker_MergeTakesMajority(t *testing.T) {
	t.Parallel()

	// Two events in frame 0 merge into one cluster in frame 1. One point
	// links to event 1 and two link to event 2, so the cluster keeps id 2.
	in := testutil.Table([]testutil.Observation{
		{T: 0, ID: 1, X: 0, M: 1},
		{T: 0, ID: 2, X: 30, M: 1},
		{T: 1, ID: 1, X: 8, M: 1},
		{T: 1, ID: 2, X: 16, M: 1},
		{T: 1, ID: 3, X: 24, M: 1},
		{T: 1, ID: 4, X: 28, M: 1},
	})
	bin, cols := activeAsGiven(in)
	events := newTracker(10, 1, 1).Track(bin, cols)

	assert.Equal(t, []float64{1, 2, 2, 2, 2, 2}, events.Floats(cols.EventID))
}

func TestTracker_Deterministic(t *testing.T) {
	t.Parallel()

	bin, cols := binarized(t, testutil.TwoGroups())
	tr := newTracker(20, 1, 2)
	first := tr.Track(bin, cols)
	for i := 0; i < 5; i++ {
		assert.True(t, table.Equal(first, tr.Track(bin, cols)))
	}
}

func TestTracker_NoActiveRows(t *testing.T) {
	t.Parallel()

	bin, cols := binarized(t, testutil.Table([]testutil.Observation{{T: 0, ID: 1, M: 0}, {T: 1, ID: 1, M: 0}}))
	events := newTracker(5, 1, 1).Track(bin, cols)
	assert.True(t, events.Empty())
	assert.True(t, events.Has(cols.EventID))
}

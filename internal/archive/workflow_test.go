package archive_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/collev/internal/archive"
	"github.com/banshee-data/collev/internal/export"
	"github.com/banshee-data/collev/internal/fsutil"
	"github.com/banshee-data/collev/internal/ingest"
	"github.com/banshee-data/collev/internal/monitoring"
	"github.com/banshee-data/collev/internal/pipeline"
	"github.com/banshee-data/collev/internal/prep"
	"github.com/banshee-data/collev/internal/store"
	"github.com/banshee-data/collev/internal/table"
	"github.com/banshee-data/collev/internal/testutil"
	"github.com/banshee-data/collev/internal/timeutil"
)

// TestWorkflow loads a file, detects events, exports and archives them.
func TestWorkflow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	mfs := fsutil.NewMemoryFileSystem()
	var csv bytes.Buffer
	require.NoError(t, export.WriteCSV(&csv, testutil.Pulse(10, 3)))
	mfs.WriteFile("/data/pulse.csv", csv.Bytes())

	clock := timeutil.NewMockClock(time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC))
	clock.AutoAdvance(time.Millisecond)
	s := store.NewSession()
	rec := &monitoring.Recorder{}
	o := pipeline.New(s, pipeline.Config{Sink: rec, Clock: clock})

	// Step 1: load and publish.
	loader := ingest.NewLoader(mfs, 7)
	require.NoError(t, loader.LoadInto(ctx, "/data/pulse.csv", s, testutil.FixtureColumns(), o))
	assert.Equal(t, 30, s.OriginalData.Get().Len())

	// Step 2: select and run.
	require.NoError(t, prep.Apply(s, prep.Selection{}, o))
	p := s.Params.Get()
	p.MinClusterSize = 1
	p.TotalEventSize = 1
	_, err := o.UpdateParams(p)
	require.NoError(t, err)
	report, err := o.Run(ctx)
	require.NoError(t, err)
	require.True(t, report.Completed(), rec.Messages())
	assert.Equal(t, 18, s.Events.Get().Len())

	// Step 3: export.
	paths, err := export.NewExporter(mfs, clock).ExportSession(s, "/out", export.Suffix{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/out", export.RootDir, "20261017", "arcos_stats", "pulse.csv"), paths[export.KindStats])

	// Step 4: archive.
	a, err := archive.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer a.Close()
	id, err := a.SaveRun(ctx, s, report)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, id)

	run, err := a.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "/data/pulse.csv", run.SourceFile)
	assert.Equal(t, 1, run.Params.MinClusterSize)
	assert.Equal(t, pipeline.AllStages, run.Report.Ran)

	events, err := a.Table(ctx, id, archive.TableEvents)
	require.NoError(t, err)
	assert.True(t, table.Equal(s.Events.Get(), events))
}

func TestWorkflow_NothingArchivedBeforeLoad(t *testing.T) {
	t.Parallel()

	s := store.NewSession()
	_, err := export.NewExporter(fsutil.NewMemoryFileSystem(), nil).ExportSession(s, "/out", export.Suffix{})
	assert.ErrorIs(t, err, export.ErrNothingToExport)
	assert.ErrorIs(t, prep.Apply(s, prep.Selection{}, nil), prep.ErrNoData)
}

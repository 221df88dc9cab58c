// Package export writes pipeline results as CSV files into dated output
// folders.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/banshee-data/collev/internal/fsutil"
	"github.com/banshee-data/collev/internal/monitoring"
	"github.com/banshee-data/collev/internal/security"
	"github.com/banshee-data/collev/internal/store"
	"github.com/banshee-data/collev/internal/table"
	"github.com/banshee-data/collev/internal/timeutil"
)

// RootDir is the folder created under the export base directory.
const RootDir = "arcos_output"

// Kind names one exported table. It is both the sub-folder and the file
// name suffix.
type Kind string

const (
	KindEvents Kind = "arcos_output"
	KindStats  Kind = "arcos_stats"
	KindParams Kind = "arcos_params"
)

// Kinds lists every exported table in export order.
var Kinds = []Kind{KindEvents, KindStats, KindParams}

// ErrNothingToExport is returned when no events have been detected.
var ErrNothingToExport = errors.New("no data to export, run the pipeline first")

// Suffix carries the selection that produced the results. A pair is
// appended to file names as _<name><value> when both parts are set.
type Suffix struct {
	FieldOfViewName string
	FieldOfView     string
	FilterName      string
	Filter          string
}

func (s Suffix) String() string {
	var b strings.Builder
	if s.FieldOfViewName != "" && s.FieldOfView != "" {
		b.WriteString("_" + s.FieldOfViewName + s.FieldOfView)
	}
	if s.FilterName != "" && s.Filter != "" {
		b.WriteString("_" + s.FilterName + s.Filter)
	}
	return b.String()
}

// Exporter creates output folders and writes tables through a FileSystem.
type Exporter struct {
	fs    fsutil.FileSystem
	clock timeutil.Clock
}

// NewExporter returns an exporter. A nil fsys or clock selects the real
// filesystem and clock.
func NewExporter(fsys fsutil.FileSystem, clock timeutil.Clock) *Exporter {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Exporter{fs: fsys, clock: clock}
}

// CreateOutputFolder creates base/arcos_output/<YYYYMMDD> with one
// sub-folder per kind. When that folder exists _1, _2, ... are tried in
// turn. The created folder is returned.
func (e *Exporter) CreateOutputFolder(base string, kinds []Kind) (string, error) {
	date := e.clock.Now().Format("20060102")
	dir := filepath.Join(base, RootDir, date)
	for n := 1; e.fs.Exists(dir); n++ {
		dir = filepath.Join(base, RootDir, fmt.Sprintf("%s_%d", date, n))
	}
	for _, k := range kinds {
		if err := e.fs.MkdirAll(filepath.Join(dir, string(k)), 0o755); err != nil {
			return "", fmt.Errorf("create output folder: %w", err)
		}
	}
	return dir, nil
}

// FileNames returns dir/<kind>/<name><suffix>.csv for every kind. name is
// sanitized.
func FileNames(dir, name string, kinds []Kind, suffix Suffix) map[Kind]string {
	name = security.SanitizeFilename(name + suffix.String())
	out := make(map[Kind]string, len(kinds))
	for _, k := range kinds {
		out[k] = filepath.Join(dir, string(k), name+".csv")
	}
	return out
}

// BaseName returns the file name of path without directory and extensions.
func BaseName(path string) string {
	name := filepath.Base(path)
	for ext := filepath.Ext(name); ext != ""; ext = filepath.Ext(name) {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

// ExportSession writes the session's events, statistics and parameters
// into a new output folder under base, naming the files after the loaded
// file. It returns the written paths.
func (e *Exporter) ExportSession(s *store.Session, base string, suffix Suffix) (map[Kind]string, error) {
	events := s.Events.Get()
	if events.Empty() {
		return nil, ErrNothingToExport
	}
	tables := map[Kind]*table.Table{
		KindEvents: events,
		KindStats:  s.Stats.Get(),
		KindParams: s.Params.Get().ToTable(),
	}

	dir, err := e.CreateOutputFolder(base, Kinds)
	if err != nil {
		return nil, err
	}
	paths := FileNames(dir, BaseName(s.FileName.Get()), Kinds, suffix)
	for _, k := range Kinds {
		if err := e.WriteFile(paths[k], dir, tables[k]); err != nil {
			return nil, err
		}
		monitoring.Logf("export: wrote %s", paths[k])
	}
	return paths, nil
}

// WriteFile writes t as CSV to path, which must lie inside dir.
func (e *Exporter) WriteFile(path, dir string, t *table.Table) (err error) {
	if err := security.ValidatePathWithinDirectory(path, dir); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	w, err := e.fs.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer func() {
		if cerr := w.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("export: close %s: %w", path, cerr)
		}
	}()
	return WriteCSV(w, t)
}

// WriteCSV writes a header row and one row per table row. Numbers are
// formatted with table.FormatFloat, so missing values are empty cells.
func WriteCSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	names := t.Names()
	if err := cw.Write(names); err != nil {
		return err
	}
	rec := make([]string, len(names))
	for r := 0; r < t.Len(); r++ {
		for i, n := range names {
			rec[i] = t.Cell(n, r)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

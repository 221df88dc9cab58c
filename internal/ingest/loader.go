// Package ingest reads observation tables from delimited text files and
// publishes them into a session.
package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/collev/internal/fsutil"
	"github.com/banshee-data/collev/internal/monitoring"
	"github.com/banshee-data/collev/internal/pipeline"
	"github.com/banshee-data/collev/internal/schema"
	"github.com/banshee-data/collev/internal/store"
	"github.com/banshee-data/collev/internal/table"
)

// DefaultChunkRows is the number of records read between abort checks.
const DefaultChunkRows = 10000

var (
	// ErrUnsupportedExtension is returned for files that are neither .csv
	// nor .csv.gz.
	ErrUnsupportedExtension = errors.New("unsupported file extension, expected .csv or .csv.gz")
	// ErrAborted is returned when Abort is called during a load.
	ErrAborted = errors.New("loading aborted")
	// ErrNoHeader is returned for empty files.
	ErrNoHeader = errors.New("file has no header row")
)

// Loader reads one file. Abort may be called from any goroutine; once
// aborted a Loader stays aborted, so use a new one per load.
type Loader struct {
	fs        fsutil.FileSystem
	chunkRows int
	aborted   atomic.Bool
}

// NewLoader returns a loader reading through fsys, OSFileSystem when nil.
// chunkRows defaults to DefaultChunkRows.
func NewLoader(fsys fsutil.FileSystem, chunkRows int) *Loader {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	if chunkRows <= 0 {
		chunkRows = DefaultChunkRows
	}
	return &Loader{fs: fsys, chunkRows: chunkRows}
}

// Abort stops the load at the next chunk boundary.
func (l *Loader) Abort() { l.aborted.Store(true) }

// ReadHeader returns the column names of path and its delimiter.
func (l *Loader) ReadHeader(path string) ([]string, rune, error) {
	rc, err := openData(l.fs, path)
	if err != nil {
		return nil, 0, err
	}
	defer rc.Close()
	cr, delim, err := newReader(rc)
	if err != nil {
		return nil, 0, err
	}
	header, err := readHeader(cr)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return header, delim, nil
}

// Load reads the whole of path into a table. Records are read in chunks
// on one goroutine and collected into columns on another; the context and
// the abort flag are checked between chunks. Columns whose every cell is a
// number or missing become numeric.
func (l *Loader) Load(ctx context.Context, path string) (*table.Table, error) {
	rc, err := openData(l.fs, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	cr, delim, err := newReader(rc)
	if err != nil {
		return nil, err
	}
	header, err := readHeader(cr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	chunks := make(chan [][]string, 2)
	cells := make([][]string, len(header))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(chunks)
		for {
			if l.aborted.Load() {
				return ErrAborted
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			chunk, readErr := readChunk(cr, l.chunkRows)
			if len(chunk) > 0 {
				select {
				case chunks <- chunk:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			if readErr == io.EOF {
				return nil
			}
			if readErr != nil {
				return fmt.Errorf("%s: %w", path, readErr)
			}
		}
	})
	g.Go(func() error {
		for chunk := range chunks {
			for _, rec := range chunk {
				for i := range cells {
					cells[i] = append(cells[i], rec[i])
				}
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cols := make([]table.Column, len(header))
	for i, name := range header {
		cols[i] = table.ColumnFromStrings(name, cells[i])
	}
	t, err := table.New(cols...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	monitoring.Logf("ingest: loaded %d rows x %d columns from %s (delimiter %q)", t.Len(), len(header), path, delim)
	return t, nil
}

// Invalidator is told which pipeline stages new data invalidates.
type Invalidator interface {
	MarkDirty(stage pipeline.Stage)
}

// Publish validates t against cols and replaces the session's data with it.
// Previous results and the selection are cleared and binarization is
// scheduled on inv when it is not nil. Nothing is changed when validation
// fails.
func Publish(s *store.Session, path string, t *table.Table, cols schema.Columns, inv Invalidator) error {
	cols, err := schema.New(cols)
	if err != nil {
		return fmt.Errorf("publish %s: %w", path, err)
	}
	if err := cols.ValidateTable(t); err != nil {
		return fmt.Errorf("publish %s: %w", path, err)
	}
	s.ResetRelevant(true)
	s.Columns.Set(cols)
	s.FileName.Set(path)
	s.OriginalData.Set(t)
	if inv != nil {
		inv.MarkDirty(pipeline.StageBinarization)
	}
	return nil
}

// LoadInto loads path and publishes it. The session is untouched unless the
// whole load and the validation succeed.
func (l *Loader) LoadInto(ctx context.Context, path string, s *store.Session, cols schema.Columns, inv Invalidator) error {
	t, err := l.Load(ctx, path)
	if err != nil {
		return err
	}
	return Publish(s, path, t, cols, inv)
}

type readCloser struct {
	io.Reader
	closers []io.Closer
}

func (r readCloser) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i].Close())
	}
	return errors.Join(errs...)
}

func openData(fsys fsutil.FileSystem, path string) (io.ReadCloser, error) {
	lower := strings.ToLower(path)
	gz := strings.HasSuffix(lower, ".csv.gz")
	if !gz && !strings.HasSuffix(lower, ".csv") {
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedExtension)
	}
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	if !gz {
		return readCloser{Reader: f, closers: []io.Closer{f}}, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return readCloser{Reader: zr, closers: []io.Closer{f, zr}}, nil
}

func newReader(r io.Reader) (*csv.Reader, rune, error) {
	br := bufio.NewReaderSize(r, SniffBytes)
	prefix, err := br.Peek(SniffBytes)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, 0, fmt.Errorf("read data: %w", err)
	}
	delim := Sniff(prefix)
	cr := csv.NewReader(br)
	cr.Comma = delim
	// A tab delimiter counts as leading space and would swallow empty cells.
	cr.TrimLeadingSpace = delim != '\t'
	return cr, delim, nil
}

func readHeader(cr *csv.Reader) ([]string, error) {
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, err
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return header, nil
}

// readChunk reads up to n records. The error is io.EOF at the end of input.
func readChunk(cr *csv.Reader, n int) ([][]string, error) {
	chunk := make([][]string, 0, n)
	for len(chunk) < n {
		rec, err := cr.Read()
		if err != nil {
			return chunk, err
		}
		chunk = append(chunk, rec)
	}
	return chunk, nil
}

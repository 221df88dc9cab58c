// Package archive keeps a SQLite record of pipeline runs: the parameters
// used, the run report and the statistics and event tables produced.
package archive

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/collev/internal/config"
	"github.com/banshee-data/collev/internal/pipeline"
	"github.com/banshee-data/collev/internal/store"
	"github.com/banshee-data/collev/internal/table"
	"github.com/banshee-data/collev/internal/version"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrRunNotFound is returned for unknown run ids.
var ErrRunNotFound = errors.New("archive: run not found")

// TableKind names a table stored with a run.
type TableKind string

const (
	TableEvents TableKind = "events"
	TableStats  TableKind = "stats"
)

// Run is one archived pipeline run.
type Run struct {
	ID         string
	SessionID  string
	SourceFile string
	Version    string
	GitSHA     string
	Params     config.Params
	Report     pipeline.Report
}

// Archive is an open run archive.
type Archive struct {
	db *sql.DB
}

// Open opens or creates the archive at path and applies pending migrations.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("archive: %s: %w", pragma, err)
		}
	}

	a := &Archive{db: db}
	if err := a.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("archive: load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(a.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("archive: create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("archive: create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateUp applies every pending migration. m is not closed because that
// would close the shared connection.
func (a *Archive) migrateUp() error {
	m, err := a.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("archive: migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version and dirty flag.
func (a *Archive) SchemaVersion() (uint, bool, error) {
	m, err := a.newMigrate()
	if err != nil {
		return 0, false, err
	}
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// SaveRun records rep together with the session's parameters, statistics
// and events. The report's RunID is used as the run id when set, otherwise
// a new one is generated. The run id is returned.
func (a *Archive) SaveRun(ctx context.Context, s *store.Session, rep pipeline.Report) (string, error) {
	id := rep.RunID
	if id == "" {
		id = uuid.New().String()
	}
	params, err := json.Marshal(config.FileFromParams(s.Params.Get()))
	if err != nil {
		return "", fmt.Errorf("archive: encode params: %w", err)
	}
	tables := map[TableKind]*table.Table{
		TableEvents: s.Events.Get(),
		TableStats:  s.Stats.Get(),
	}

	err = retryOnBusy(func() error {
		tx, err := a.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		_, err = tx.ExecContext(ctx, `
			INSERT INTO runs (
				run_id, session_id, source_file, version, git_sha, params_json,
				started_ns, finished_ns, requested, ran, aborted, diagnostic,
				eps, active_rows, raw_events, events
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, s.ID, s.FileName.Get(), version.Version, version.GitSHA, string(params),
			rep.Started.UnixNano(), rep.Finished.UnixNano(),
			int64(rep.Requested), int64(rep.Ran), int64(rep.Aborted), rep.Diagnostic,
			rep.Eps, rep.ActiveRows, rep.RawEvents, rep.Events,
		)
		if err != nil {
			return err
		}
		for _, kind := range []TableKind{TableEvents, TableStats} {
			if err := insertTable(ctx, tx, id, kind, tables[kind]); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return "", fmt.Errorf("archive: save run %s: %w", id, err)
	}
	return id, nil
}

// insertTable stores t column by column. Numeric cells are written with
// table.FormatFloat, which round-trips exactly.
func insertTable(ctx context.Context, tx *sql.Tx, runID string, kind TableKind, t *table.Table) error {
	for pos, name := range t.Names() {
		cells := make([]string, t.Len())
		for r := range cells {
			cells[r] = t.Cell(name, r)
		}
		data, err := json.Marshal(cells)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_columns (run_id, kind, position, name, is_numeric, cells_json)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, string(kind), pos, name, t.IsNumeric(name), string(data),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

const runColumns = `run_id, session_id, source_file, version, git_sha, params_json,
	started_ns, finished_ns, requested, ran, aborted, diagnostic,
	eps, active_rows, raw_events, events`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc rowScanner) (Run, error) {
	var (
		r                     Run
		params                string
		started, finished     int64
		requested, ran, abort int64
		eps                   sql.NullFloat64
		active, rawEvts, evts int64
	)
	err := sc.Scan(&r.ID, &r.SessionID, &r.SourceFile, &r.Version, &r.GitSHA, &params,
		&started, &finished, &requested, &ran, &abort, &r.Report.Diagnostic,
		&eps, &active, &rawEvts, &evts)
	if err != nil {
		return Run{}, err
	}

	var f config.ParamsFile
	if err := json.Unmarshal([]byte(params), &f); err != nil {
		return Run{}, fmt.Errorf("decode params of run %s: %w", r.ID, err)
	}
	r.Params = f.Apply(config.DefaultParams())

	r.Report.RunID = r.ID
	r.Report.Started = time.Unix(0, started).UTC()
	r.Report.Finished = time.Unix(0, finished).UTC()
	r.Report.Requested = pipeline.StageSet(requested)
	r.Report.Ran = pipeline.StageSet(ran)
	r.Report.Aborted = pipeline.Stage(abort)
	r.Report.Eps = eps.Float64
	r.Report.ActiveRows = int(active)
	r.Report.RawEvents = int(rawEvts)
	r.Report.Events = int(evts)
	return r, nil
}

// GetRun returns the run with the given id.
func (a *Archive) GetRun(ctx context.Context, id string) (Run, error) {
	row := a.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("archive: get run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns the runs of sessionID, newest first. An empty sessionID
// lists every run.
func (a *Archive) ListRuns(ctx context.Context, sessionID string) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY started_ns DESC, run_id`

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("archive: list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("archive: list runs: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: list runs: %w", err)
	}
	return runs, nil
}

// Table returns a table stored with run id. A run without rows of that kind
// yields an empty table.
func (a *Archive) Table(ctx context.Context, id string, kind TableKind) (*table.Table, error) {
	if _, err := a.GetRun(ctx, id); err != nil {
		return nil, err
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT name, is_numeric, cells_json FROM run_columns
		WHERE run_id = ? AND kind = ?
		ORDER BY position`, id, string(kind))
	if err != nil {
		return nil, fmt.Errorf("archive: read %s of run %s: %w", kind, id, err)
	}
	defer rows.Close()

	var cols []table.Column
	for rows.Next() {
		var (
			name    string
			numeric bool
			data    string
		)
		if err := rows.Scan(&name, &numeric, &data); err != nil {
			return nil, fmt.Errorf("archive: read %s of run %s: %w", kind, id, err)
		}
		var cells []string
		if err := json.Unmarshal([]byte(data), &cells); err != nil {
			return nil, fmt.Errorf("archive: decode column %s: %w", name, err)
		}
		if !numeric {
			cols = append(cols, table.TextColumn(name, cells))
			continue
		}
		floats := make([]float64, len(cells))
		for i, c := range cells {
			v, ok := table.ParseFloat(c)
			if !ok {
				return nil, fmt.Errorf("archive: column %s row %d: bad number %q", name, i, c)
			}
			floats[i] = v
		}
		cols = append(cols, table.NumericColumn(name, floats))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: read %s of run %s: %w", kind, id, err)
	}
	return table.New(cols...)
}

// DeleteRun removes a run and its tables.
func (a *Archive) DeleteRun(ctx context.Context, id string) error {
	return retryOnBusy(func() error {
		res, err := a.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil
	})
}

const maxBusyRetries = 5

// retryOnBusy runs fn up to maxBusyRetries times while it fails with
// SQLITE_BUSY, doubling the pause from 10ms between attempts.
func retryOnBusy(fn func() error) error {
	delay := 10 * time.Millisecond
	var err error
	for attempt := 1; attempt <= maxBusyRetries; attempt++ {
		err = fn()
		if !isSQLiteBusy(err) {
			return err
		}
		if attempt < maxBusyRetries {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return fmt.Errorf("still busy after %d attempts: %w", maxBusyRetries, err)
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

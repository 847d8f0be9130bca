// Package ledger records pipeline runs and their state-year rows in SQLite
// or Postgres.
package ledger

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"cessation-pipeline/internal/aggregate"
)

// Driver selects the ledger backend
type Driver string

const (
	DriverNone     Driver = "none"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// timeLayout has a fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrNoRuns is returned by Latest when nothing has been recorded.
var ErrNoRuns = eris.New("ledger: no runs recorded")

// Config selects and configures the ledger
type Config struct {
	Driver Driver `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// Run is one pipeline execution
type Run struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Respondents int       `json:"respondents"`
	StateYears  int       `json:"state_years"`
}

// Ledger is a write-mostly record of runs
type Ledger interface {
	Record(ctx context.Context, run Run, rows []aggregate.StateYear) error
	Latest(ctx context.Context) (Run, error)
	Close() error
}

// Open builds the ledger named by cfg.Driver (none when empty)
func Open(ctx context.Context, cfg Config) (Ledger, error) {
	switch cfg.Driver {
	case "", DriverNone:
		return Nop{}, nil
	case DriverSQLite:
		return OpenSQLite(ctx, cfg.Path)
	case DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN)
	}
	return nil, eris.Errorf("ledger: unknown driver %q", cfg.Driver)
}

// Nop discards everything
type Nop struct{}

func (Nop) Record(context.Context, Run, []aggregate.StateYear) error { return nil }
func (Nop) Latest(context.Context) (Run, error)                       { return Run{}, ErrNoRuns }
func (Nop) Close() error                                              { return nil }

// SQL is a ledger over database/sql. Queries are written with ? placeholders
// and rebound for Postgres.
type SQL struct {
	db       *sql.DB
	numbered bool
}

// OpenSQLite opens (creating if needed) a ledger database file
func OpenSQLite(ctx context.Context, path string) (*SQL, error) {
	if path == "" {
		path = "cessation-ledger.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, eris.Wrap(err, "ledger: create dirs")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: open sqlite")
	}
	db.SetMaxOpenConns(1)
	l := &SQL{db: db}
	if err := l.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// OpenPostgres connects to dsn through pgx and ensures the tables exist
func OpenPostgres(ctx context.Context, dsn string) (*SQL, error) {
	if dsn == "" {
		return nil, eris.New("ledger: postgres dsn required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: open postgres")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "ledger: ping postgres")
	}
	l := &SQL{db: db, numbered: true}
	if err := l.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// Close implements Ledger
func (l *SQL) Close() error { return l.db.Close() }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT NOT NULL,
		respondents INTEGER NOT NULL,
		state_years INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS state_years (
		run_id TEXT NOT NULL,
		state INTEGER NOT NULL,
		year INTEGER NOT NULL,
		state_name TEXT NOT NULL,
		treatment_group INTEGER NOT NULL,
		current_smoker_prev DOUBLE PRECISION NOT NULL,
		quit_attempt_prev DOUBLE PRECISION NOT NULL,
		weighted_pop DOUBLE PRECISION NOT NULL,
		sample_size INTEGER NOT NULL,
		PRIMARY KEY (run_id, state, year)
	)`,
}

func (l *SQL) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrap(err, "ledger: create tables")
		}
	}
	return nil
}

// rebind turns ? placeholders into $1, $2, ... for Postgres
func (l *SQL) rebind(q string) string {
	if !l.numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Record inserts the run and its state-year rows in one transaction
func (l *SQL) Record(ctx context.Context, run Run, rows []aggregate.StateYear) (retErr error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "ledger: begin")
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, l.rebind(`INSERT INTO runs (id, started_at, finished_at, status, error, respondents, state_years)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		run.ID, run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout),
		run.Status, run.Error, run.Respondents, run.StateYears)
	if err != nil {
		return eris.Wrapf(err, "ledger: insert run %s", run.ID)
	}

	stmt, err := tx.PrepareContext(ctx, l.rebind(`INSERT INTO state_years
		(run_id, state, year, state_name, treatment_group, current_smoker_prev, quit_attempt_prev, weighted_pop, sample_size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return eris.Wrap(err, "ledger: prepare state_years insert")
	}
	defer func() { _ = stmt.Close() }()
	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, run.ID, r.State, r.Year, r.StateName, int(r.Group),
			r.CurrentSmokerPrev, r.PastYearQuitAttemptPrev, r.WeightedPop, r.SampleSize); err != nil {
			return eris.Wrapf(err, "ledger: insert state-year %d/%d", r.State, r.Year)
		}
	}
	return eris.Wrap(tx.Commit(), "ledger: commit")
}

// Latest returns the most recently started run
func (l *SQL) Latest(ctx context.Context) (Run, error) {
	row := l.db.QueryRowContext(ctx, `SELECT id, started_at, finished_at, status, error, respondents, state_years
		FROM runs ORDER BY started_at DESC LIMIT 1`)
	var run Run
	var started, finished string
	err := row.Scan(&run.ID, &started, &finished, &run.Status, &run.Error, &run.Respondents, &run.StateYears)
	if eris.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	if err != nil {
		return Run{}, eris.Wrap(err, "ledger: select latest run")
	}
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Run{}, eris.Wrap(err, "ledger: parse started_at")
	}
	if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
		return Run{}, eris.Wrap(err, "ledger: parse finished_at")
	}
	return run, nil
}

// Package history keeps finished runs in a SQLite database so later runs can
// be compared against them: the last outcome of a suite drives recovery
// notifications, and repeated attempts across runs expose flaky tests.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/core/runner"
	"github.com/abdul-hamid-achik/bankspec/packages/report"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	suite       TEXT NOT NULL,
	environment TEXT NOT NULL DEFAULT '',
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	total       INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	pass_rate   REAL NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_suite ON runs (suite, id);

CREATE TABLE IF NOT EXISTS records (
	run_id     TEXT NOT NULL REFERENCES runs (id) ON DELETE CASCADE,
	test_id    TEXT NOT NULL,
	name       TEXT NOT NULL,
	status     TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	ended_at   INTEGER NOT NULL,
	attempt    INTEGER NOT NULL,
	platform   TEXT NOT NULL DEFAULT '',
	worker     TEXT NOT NULL DEFAULT '',
	error      TEXT NOT NULL DEFAULT '',
	artifact   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS records_run ON records (run_id);
CREATE INDEX IF NOT EXISTS records_test ON records (test_id);
`

// Run is one stored run without its records.
type Run struct {
	ID          ulid.ULID
	Suite       string
	Environment string
	Summary     report.Summary
}

// FlakyTest counts how a test behaved over a window of recent runs.
type FlakyTest struct {
	TestID  string
	Runs    int
	Failed  int
	Retried int
}

// Store is a run history backed by SQLite.
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// Open opens or creates the database. Accepted forms are sqlite://path,
// sqlite:path and a bare file path.
func Open(connectionString string) (*Store, error) {
	dsn, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}

	if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	// One writer at a time; sqlite serializes anyway.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate history: %w", err)
	}

	return &Store{db: db, queryTimeout: 30 * time.Second}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveRun stores a finished run and its final records in one transaction.
func (s *Store) SaveRun(ctx context.Context, res *runner.RunResult, environment string) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sum := res.Summary
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, suite, environment, started_at, finished_at, total, passed, failed, skipped, pass_rate, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID.String(), res.Suite, environment,
		sum.StartedAt.UnixMilli(), sum.FinishedAt.UnixMilli(),
		sum.Total, sum.Passed, sum.Failed, sum.Skipped, sum.PassRate, sum.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", res.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (run_id, test_id, name, status, started_at, ended_at, attempt, platform, worker, error, artifact)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, rec := range res.Records {
		_, err := stmt.ExecContext(ctx,
			res.RunID.String(), rec.TestID, rec.Name, rec.Status.String(),
			rec.Start.UnixMilli(), rec.End.UnixMilli(), rec.Attempt,
			rec.Platform, rec.Worker, rec.Err, rec.Artifact,
		)
		if err != nil {
			return fmt.Errorf("insert record %s: %w", rec.TestID, err)
		}
	}

	return tx.Commit()
}

// Runs lists stored runs newest first. An empty suite lists every suite;
// limit <= 0 means no limit.
func (s *Store) Runs(ctx context.Context, suite string, limit int) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `SELECT id, suite, environment, started_at, finished_at, total, passed, failed, skipped, pass_rate, duration_ms FROM runs`
	var args []any
	if suite != "" {
		query += ` WHERE suite = ?`
		args = append(args, suite)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// LastRun returns the newest run of suite, or nil if there is none.
func (s *Store) LastRun(ctx context.Context, suite string) (*Run, error) {
	runs, err := s.Runs(ctx, suite, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

// Records returns the stored records of a run in the order they completed.
func (s *Store) Records(ctx context.Context, runID ulid.ULID) ([]report.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT test_id, name, status, started_at, ended_at, attempt, platform, worker, error, artifact
		 FROM records WHERE run_id = ? ORDER BY rowid`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var records []report.Record
	for rows.Next() {
		var (
			rec        report.Record
			status     string
			start, end int64
		)
		if err := rows.Scan(&rec.TestID, &rec.Name, &status, &start, &end, &rec.Attempt,
			&rec.Platform, &rec.Worker, &rec.Err, &rec.Artifact); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if rec.Status, err = report.ParseStatus(status); err != nil {
			return nil, err
		}
		rec.Start = time.UnixMilli(start).UTC()
		rec.End = time.UnixMilli(end).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// Flaky reports tests of suite that failed or needed retries in any of the
// last n runs, worst first.
func (s *Store) Flaky(ctx context.Context, suite string, n int) ([]FlakyTest, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.test_id,
		       COUNT(*),
		       SUM(CASE WHEN r.status = 'failed' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN r.attempt > 1 THEN 1 ELSE 0 END)
		FROM records r
		JOIN (SELECT id FROM runs WHERE suite = ? ORDER BY id DESC LIMIT ?) recent ON recent.id = r.run_id
		WHERE r.status != 'skipped'
		GROUP BY r.test_id
		HAVING SUM(CASE WHEN r.status = 'failed' OR r.attempt > 1 THEN 1 ELSE 0 END) > 0
		ORDER BY 3 DESC, 4 DESC, r.test_id`, suite, n)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []FlakyTest
	for rows.Next() {
		var f FlakyTest
		if err := rows.Scan(&f.TestID, &f.Runs, &f.Failed, &f.Retried); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// Prune keeps the newest keep runs of suite and deletes the rest.
func (s *Store) Prune(ctx context.Context, suite string, keep int) (int64, error) {
	if keep < 0 {
		return 0, errors.New("keep must not be negative")
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs WHERE suite = ? AND id NOT IN (
			SELECT id FROM runs WHERE suite = ? ORDER BY id DESC LIMIT ?
		)`, suite, suite, keep)
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run               Run
		id                string
		started, finished int64
		durationMillis    int64
	)
	err := row.Scan(&id, &run.Suite, &run.Environment, &started, &finished,
		&run.Summary.Total, &run.Summary.Passed, &run.Summary.Failed, &run.Summary.Skipped,
		&run.Summary.PassRate, &durationMillis)
	if err != nil {
		return run, fmt.Errorf("failed to scan row: %w", err)
	}
	if run.ID, err = ulid.ParseStrict(id); err != nil {
		return run, fmt.Errorf("run id %q: %w", id, err)
	}
	run.Summary.Suite = run.Suite
	run.Summary.StartedAt = time.UnixMilli(started).UTC()
	run.Summary.FinishedAt = time.UnixMilli(finished).UTC()
	run.Summary.Duration = time.Duration(durationMillis) * time.Millisecond
	return run, nil
}

// parseConnectionString turns sqlite://path and sqlite:path into a file path.
func parseConnectionString(connStr string) (string, error) {
	connStr = strings.TrimSpace(connStr)
	if connStr == "" {
		return "", errors.New("empty history path")
	}

	switch {
	case strings.HasPrefix(connStr, "sqlite://"):
		connStr = strings.TrimPrefix(connStr, "sqlite://")
	case strings.HasPrefix(connStr, "sqlite:"):
		connStr = strings.TrimPrefix(connStr, "sqlite:")
	case strings.Contains(connStr, "://"):
		return "", fmt.Errorf("unsupported history database: %s", connStr)
	}
	if connStr == "" {
		return "", errors.New("empty history path")
	}
	return connStr, nil
}

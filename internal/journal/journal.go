// Package journal persists job execution history in a SQLite database.
// It uses modernc.org/sqlite (pure Go, no CGO) with WAL mode and a single
// writer connection.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const busyTimeout = 5000 // milliseconds

// Status classifies the outcome of one job execution.
type Status string

const (
	// StatusRunning marks a run between Begin and Finish. Runs still in
	// this state after a daemon crash are closed out as errors on the
	// next Open.
	StatusRunning Status = "running"

	StatusOK      Status = "ok"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// Run is one recorded job execution.
type Run struct {
	ID       int64
	Job      string
	Pattern  string
	Started  time.Time
	Duration time.Duration
	Status   Status
	Error    string
}

// Journal records job executions. It is safe for concurrent use.
type Journal struct {
	db *sql.DB
}

// Open opens the journal database at path, creating the file and its
// parent directory as needed. The database uses WAL mode, a 5 s busy
// timeout, and a single connection (SQLite serialises writes). The
// schema is migrated automatically, and runs left unfinished by an
// earlier process are marked as interrupted.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("journal: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}

	// SQLite handles one writer at a time; limit pool to 1 connection
	// so PRAGMAs apply consistently.
	db.SetMaxOpenConns(1)

	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: enable WAL: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: set busy_timeout: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx,
		"UPDATE runs SET status = ?, error = 'interrupted' WHERE status = ?",
		string(StatusError), string(StatusRunning),
	); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: recover interrupted runs: %w", err)
	}

	return &Journal{db: db}, nil
}

// Begin records the start of one job execution and returns its row id.
func (j *Journal) Begin(ctx context.Context, job, pattern string, at time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		"INSERT INTO runs (job, pattern, started, status) VALUES (?, ?, ?, ?)",
		job, pattern, at.UnixNano(), string(StatusRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("journal: begin run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("journal: begin run id: %w", err)
	}
	return id, nil
}

// Finish completes the run with the given id.
func (j *Journal) Finish(ctx context.Context, id int64, status Status, errText string, d time.Duration) error {
	_, err := j.db.ExecContext(ctx,
		"UPDATE runs SET status = ?, error = ?, duration = ? WHERE id = ?",
		string(status), errText, d.Nanoseconds(), id,
	)
	if err != nil {
		return fmt.Errorf("journal: finish run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first. A job of "" selects all
// jobs. Started times are reported in UTC.
func (j *Journal) Recent(ctx context.Context, job string, limit int) ([]Run, error) {
	if limit <= 0 {
		return nil, nil
	}

	var (
		rows *sql.Rows
		err  error
	)
	if job == "" {
		rows, err = j.db.QueryContext(ctx, `
			SELECT id, job, pattern, started, duration, status, error
			FROM runs
			ORDER BY started DESC, id DESC
			LIMIT ?`, limit)
	} else {
		rows, err = j.db.QueryContext(ctx, `
			SELECT id, job, pattern, started, duration, status, error
			FROM runs
			WHERE job = ?
			ORDER BY started DESC, id DESC
			LIMIT ?`, job, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("journal: recent runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var (
			run      Run
			started  int64
			duration int64
			status   string
		)
		if err := rows.Scan(&run.ID, &run.Job, &run.Pattern, &started, &duration, &status, &run.Error); err != nil {
			return nil, fmt.Errorf("journal: scan run: %w", err)
		}
		run.Started = time.Unix(0, started).UTC()
		run.Duration = time.Duration(duration)
		run.Status = Status(status)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: recent rows: %w", err)
	}

	return runs, nil
}

// Prune deletes finished runs that started more than keep ago and
// returns the number of rows removed. keep <= 0 is a no-op.
func (j *Journal) Prune(ctx context.Context, keep time.Duration) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}

	cutoff := time.Now().Add(-keep).UnixNano()
	res, err := j.db.ExecContext(ctx,
		"DELETE FROM runs WHERE started < ? AND status != ?",
		cutoff, string(StatusRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("journal: prune count: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

package journal

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application. Times are stored
// as unix nanoseconds, durations as nanoseconds.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		job      TEXT    NOT NULL,
		pattern  TEXT    NOT NULL,
		started  INTEGER NOT NULL,
		duration INTEGER NOT NULL DEFAULT 0,
		status   TEXT    NOT NULL DEFAULT 'running',
		error    TEXT    NOT NULL DEFAULT ''
	)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_job_started ON runs(job, started)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started)`,
}

// migrate brings the schema up to schemaVersion, tracked in the
// database's user_version pragma.
func migrate(ctx context.Context, db *sql.DB) error {
	var current int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("journal: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("journal: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("journal: record schema version: %w", err)
	}

	return nil
}

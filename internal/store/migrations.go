package store

import (
	"context"
	"database/sql"
)

// schema contains the DDL for all gosweep tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sweeps (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		model_path   TEXT NOT NULL,
		definition   TEXT NOT NULL DEFAULT '',
		phase        TEXT NOT NULL DEFAULT 'PENDING',
		max_parallel INTEGER NOT NULL DEFAULT 4,
		replicates   INTEGER NOT NULL DEFAULT 1,
		total_runs   INTEGER NOT NULL DEFAULT 0,
		tags         TEXT NOT NULL DEFAULT '[]',
		created_at   TEXT NOT NULL,
		completed_at TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS runs (
		id              TEXT PRIMARY KEY,
		sweep_id        TEXT NOT NULL,
		parameters      TEXT NOT NULL DEFAULT '{}',
		replicate_index INTEGER NOT NULL DEFAULT 0,
		status          TEXT NOT NULL DEFAULT 'QUEUED',
		env_id          TEXT NOT NULL DEFAULT '',
		error           TEXT NOT NULL DEFAULT '',
		created_at      TEXT NOT NULL,
		started_at      TEXT,
		completed_at    TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS results (
		run_id      TEXT PRIMARY KEY,
		sweep_id    TEXT NOT NULL,
		payload     TEXT NOT NULL,
		duration_ns INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS history (
		key        TEXT NOT NULL,
		sweep_id   TEXT NOT NULL DEFAULT '',
		model_path TEXT NOT NULL,
		parameters TEXT NOT NULL DEFAULT '{}',
		tags       TEXT NOT NULL DEFAULT '[]',
		payload    TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_sweeps_phase ON sweeps(phase)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_sweep_id ON runs(sweep_id)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,
	// Compound index for listing a sweep's retired runs
	`CREATE INDEX IF NOT EXISTS idx_runs_sweep_status ON runs(sweep_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_results_sweep_id ON results(sweep_id)`,
	`CREATE INDEX IF NOT EXISTS idx_history_model_path ON history(model_path)`,
	`CREATE INDEX IF NOT EXISTS idx_history_created_at ON history(created_at)`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

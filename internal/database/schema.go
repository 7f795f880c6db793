package database

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS rank_runs (
		id UUID PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'running',
		keywords INTEGER NOT NULL DEFAULT 0,
		records INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		output_path TEXT,
		error_detail TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS rank_records (
		id BIGSERIAL PRIMARY KEY,
		run_id UUID NOT NULL REFERENCES rank_runs(id) ON DELETE CASCADE,
		recorded_at TIMESTAMPTZ NOT NULL,
		keyword TEXT NOT NULL,
		asin TEXT NOT NULL,
		placement TEXT,
		page INTEGER,
		position INTEGER,
		overall_rank INTEGER,
		organic_rank INTEGER,
		status TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rank_records_run ON rank_records(run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_rank_records_asin ON rank_records(asin, keyword)`,
}

// Migrate creates the tables and indexes if they do not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

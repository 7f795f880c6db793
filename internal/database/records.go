package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/amazon-rank-tracker/internal/rank"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one tracking batch: every keyword scanned in one invocation.
type Run struct {
	ID          uuid.UUID    `db:"id"`
	Status      RunStatus    `db:"status"`
	Keywords    int          `db:"keywords"`
	Records     int          `db:"records"`
	StartedAt   time.Time    `db:"started_at"`
	FinishedAt  sql.NullTime `db:"finished_at"`
	OutputPath  string       `db:"output_path"`
	ErrorDetail string       `db:"error_detail"`
}

// InsertRun registers a freshly started run.
func (db *DB) InsertRun(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	query := `
		INSERT INTO rank_runs (id, status, keywords, started_at)
		VALUES ($1, $2, $3, $4)`

	if _, err := db.pool.Exec(ctx, query,
		run.ID, run.Status, run.Keywords, run.StartedAt,
	); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinishRun closes out a run with its final status.
func (db *DB) FinishRun(ctx context.Context, id uuid.UUID, status RunStatus, records int, outputPath, errorDetail string) error {
	query := `
		UPDATE rank_runs SET
			status = $2,
			records = $3,
			output_path = $4,
			error_detail = $5,
			finished_at = CURRENT_TIMESTAMP
		WHERE id = $1`

	if _, err := db.pool.Exec(ctx, query, id, status, records, outputPath, errorDetail); err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// GetRun loads one run row.
func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	query := `
		SELECT id, status, keywords, records, started_at, finished_at,
			COALESCE(output_path, ''), COALESCE(error_detail, '')
		FROM rank_runs
		WHERE id = $1`

	run := &Run{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.Status, &run.Keywords, &run.Records,
		&run.StartedAt, &run.FinishedAt, &run.OutputPath, &run.ErrorDetail,
	)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return run, nil
}

// InsertRecords persists one keyword's records under a run, in a single
// transaction so a keyword's rows are all-or-nothing.
func (db *DB) InsertRecords(ctx context.Context, runID uuid.UUID, records []rank.RankRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO rank_records (
			run_id, recorded_at, keyword, asin, placement,
			page, position, overall_rank, organic_rank, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	return db.Transaction(ctx, func(tx pgx.Tx) error {
		for _, rec := range records {
			if _, err := tx.Exec(ctx, query,
				runID, rec.Timestamp, rec.Keyword, rec.ASIN,
				nullString(string(rec.Placement)),
				nullInt(rec.Page), nullInt(rec.PositionOnPage),
				nullInt(rec.OverallRank), nullInt(rec.OrganicRank),
				rec.Status,
			); err != nil {
				return fmt.Errorf("failed to insert record for %s: %w", rec.ASIN, err)
			}
		}
		return nil
	})
}

// ListRecords returns a run's records in insertion order.
func (db *DB) ListRecords(ctx context.Context, runID uuid.UUID) ([]rank.RankRecord, error) {
	query := `
		SELECT recorded_at, keyword, asin,
			COALESCE(placement, ''), COALESCE(page, 0), COALESCE(position, 0),
			COALESCE(overall_rank, 0), COALESCE(organic_rank, 0), status
		FROM rank_records
		WHERE run_id = $1
		ORDER BY id`

	rows, err := db.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []rank.RankRecord
	for rows.Next() {
		var rec rank.RankRecord
		var placement string
		if err := rows.Scan(
			&rec.Timestamp, &rec.Keyword, &rec.ASIN, &placement,
			&rec.Page, &rec.PositionOnPage, &rec.OverallRank, &rec.OrganicRank,
			&rec.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.Placement = rank.Placement(placement)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return records, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(i int) sql.NullInt32 {
	return sql.NullInt32{Int32: int32(i), Valid: i != 0}
}

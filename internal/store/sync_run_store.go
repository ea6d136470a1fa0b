package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redbirdapp/redbird/internal/model"
)

// SyncRunStore handles database operations for sync run records
type SyncRunStore struct {
	db *sql.DB
}

// NewSyncRunStore creates a new SyncRunStore
func NewSyncRunStore(db *sql.DB) *SyncRunStore {
	return &SyncRunStore{db: db}
}

// Insert records the start of a sync run
func (s *SyncRunStore) Insert(ctx context.Context, run *model.SyncRun) error {
	query := `
		INSERT INTO sync_runs (id, selector, triggered_by, started_at, processed, created, updated, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Selector, run.Trigger, run.StartedAt,
		run.Processed, run.Created, run.Updated, run.Errors)
	if err != nil {
		return fmt.Errorf("failed to insert sync run %s: %w", run.ID, err)
	}
	return nil
}

// Complete stamps a run as finished and writes its final counters
func (s *SyncRunStore) Complete(ctx context.Context, run *model.SyncRun) error {
	now := time.Now().UTC()
	run.FinishedAt = &now

	query := `
		UPDATE sync_runs SET finished_at = $2, processed = $3, created = $4, updated = $5, errors = $6
		WHERE id = $1`

	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.FinishedAt, run.Processed, run.Created, run.Updated, run.Errors)
	if err != nil {
		return fmt.Errorf("failed to complete sync run %s: %w", run.ID, err)
	}
	return nil
}

// ListRecent retrieves the most recently started sync runs
func (s *SyncRunStore) ListRecent(ctx context.Context, limit int) ([]model.SyncRun, error) {
	query := `
		SELECT id, selector, triggered_by, started_at, finished_at, processed, created, updated, errors
		FROM sync_runs ORDER BY started_at DESC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	runs := []model.SyncRun{}
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run row: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sync run rows: %w", err)
	}
	return runs, nil
}

// Latest retrieves the most recently started sync run, returning nil when none exist
func (s *SyncRunStore) Latest(ctx context.Context) (*model.SyncRun, error) {
	query := `
		SELECT id, selector, triggered_by, started_at, finished_at, processed, created, updated, errors
		FROM sync_runs ORDER BY started_at DESC LIMIT 1`

	run, err := scanSyncRun(s.db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest sync run: %w", err)
	}
	return run, nil
}

func scanSyncRun(row rowScanner) (*model.SyncRun, error) {
	var run model.SyncRun
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.Selector, &run.Trigger, &run.StartedAt, &finished,
		&run.Processed, &run.Created, &run.Updated, &run.Errors)
	if err != nil {
		return nil, err
	}
	run.FinishedAt = nullableTime(finished)
	return &run, nil
}

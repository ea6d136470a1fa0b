package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redbirdapp/redbird/internal/model"
)

// CacheStore handles database operations for raw source payloads
type CacheStore struct {
	db *sql.DB
}

// NewCacheStore creates a new CacheStore
func NewCacheStore(db *sql.DB) *CacheStore {
	return &CacheStore{db: db}
}

// Put stores the raw payload for a bill, overwriting any existing entry.
// At most one cache row exists per bill_id.
func (s *CacheStore) Put(ctx context.Context, billID string, data []byte) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO bill_cache (bill_id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (bill_id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`

	if _, err := s.db.ExecContext(ctx, query, billID, string(data), now); err != nil {
		return fmt.Errorf("failed to cache bill %s: %w", billID, err)
	}
	return nil
}

// Get retrieves a cache entry by bill_id, returning nil when absent.
// Expiry is not evaluated here; callers check Expired on the entry.
func (s *CacheStore) Get(ctx context.Context, billID string) (*model.CacheEntry, error) {
	query := `SELECT id, bill_id, data, created_at, updated_at FROM bill_cache WHERE bill_id = $1`

	entry, err := scanCacheEntry(s.db.QueryRowContext(ctx, query, billID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached bill %s: %w", billID, err)
	}
	return entry, nil
}

// ListRecent retrieves the most recently written cache entries
func (s *CacheStore) ListRecent(ctx context.Context, limit int) ([]model.CacheEntry, error) {
	query := `SELECT id, bill_id, data, created_at, updated_at FROM bill_cache ORDER BY created_at DESC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer rows.Close()

	entries := []model.CacheEntry{}
	for rows.Next() {
		entry, err := scanCacheEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cache row: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cache rows: %w", err)
	}
	return entries, nil
}

func scanCacheEntry(row rowScanner) (*model.CacheEntry, error) {
	var entry model.CacheEntry
	var data string
	var updated sql.NullTime
	if err := row.Scan(&entry.ID, &entry.BillID, &data, &entry.CreatedAt, &updated); err != nil {
		return nil, err
	}
	entry.Data = []byte(data)
	if updated.Valid {
		entry.UpdatedAt = updated.Time
	}
	return &entry, nil
}

// Delete removes the cache entry for one bill and returns the number removed
func (s *CacheStore) Delete(ctx context.Context, billID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bill_cache WHERE bill_id = $1`, billID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cached bill %s: %w", billID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete cached bill %s: %w", billID, err)
	}
	return int(rows), nil
}

// DeleteExpired removes entries older than the freshness window and returns
// the number removed. Entries that were never stamped count as expired.
func (s *CacheStore) DeleteExpired(ctx context.Context, window time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-window)
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM bill_cache WHERE updated_at IS NULL OR updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}
	return int(rows), nil
}

// DeleteAll removes every cache entry and returns the number removed
func (s *CacheStore) DeleteAll(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bill_cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache entries: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache entries: %w", err)
	}
	return int(rows), nil
}

// Count returns the total number of cache entries
func (s *CacheStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bill_cache`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return count, nil
}

// Stats partitions cache entries around the fixed 24-hour boundary.
// Entries without an updated_at stamp fall into the older bucket.
func (s *CacheStore) Stats(ctx context.Context) (*model.CacheStats, error) {
	boundary := time.Now().UTC().Add(-24 * time.Hour)
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE updated_at >= $1),
			COUNT(*) FILTER (WHERE updated_at IS NULL OR updated_at < $1)
		FROM bill_cache`

	var stats model.CacheStats
	err := s.db.QueryRowContext(ctx, query, boundary).Scan(&stats.Total, &stats.Recent24, &stats.Older24)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache stats: %w", err)
	}
	return &stats, nil
}

package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// MetricsService calculates and stores system-wide corpus metrics
type MetricsService struct {
	db *sql.DB
}

// NewMetricsService creates a new MetricsService
func NewMetricsService(db *sql.DB) *MetricsService {
	return &MetricsService{db: db}
}

// SystemMetrics represents calculated system-wide metrics
type SystemMetrics struct {
	TotalBills          int     `json:"total_bills"`
	EnrichedBills       int     `json:"enriched_bills"`
	PendingBills        int     `json:"pending_bills"`
	EnrichedShare       float64 `json:"enriched_share"`
	TotalSessions       int     `json:"total_sessions"`
	LargestSession      string  `json:"largest_session"`
	LargestSessionBills int     `json:"largest_session_bills"`
	CachedPayloads      int     `json:"cached_payloads"`
}

// CalculateAndStore calculates corpus metrics and stores them
func (m *MetricsService) CalculateAndStore(ctx context.Context) (*SystemMetrics, error) {
	metrics := &SystemMetrics{}

	// Calculate bill metrics
	billQuery := `
		SELECT
			COUNT(*) as total_bills,
			COUNT(*) FILTER (WHERE summary <> '') as enriched_bills,
			COUNT(DISTINCT session) FILTER (WHERE session <> '') as total_sessions
		FROM bills
	`
	err := m.db.QueryRowContext(ctx, billQuery).Scan(
		&metrics.TotalBills,
		&metrics.EnrichedBills,
		&metrics.TotalSessions,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate bill metrics: %w", err)
	}

	metrics.PendingBills = metrics.TotalBills - metrics.EnrichedBills
	if metrics.TotalBills > 0 {
		metrics.EnrichedShare = float64(metrics.EnrichedBills) / float64(metrics.TotalBills)
	}

	// Find the session with the most tracked bills
	largestQuery := `
		SELECT session, COUNT(*)
		FROM bills
		WHERE session <> ''
		GROUP BY session
		ORDER BY COUNT(*) DESC
		LIMIT 1
	`
	err = m.db.QueryRowContext(ctx, largestQuery).Scan(
		&metrics.LargestSession,
		&metrics.LargestSessionBills,
	)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to find largest session: %w", err)
	}

	// Count cached payloads
	cacheCountQuery := `SELECT COUNT(*) FROM bill_cache`
	err = m.db.QueryRowContext(ctx, cacheCountQuery).Scan(&metrics.CachedPayloads)
	if err != nil {
		return nil, fmt.Errorf("failed to count cached payloads: %w", err)
	}

	// Store metrics
	if err := m.storeMetric(ctx, "total_bills", fmt.Sprintf("%d", metrics.TotalBills)); err != nil {
		return nil, err
	}
	if err := m.storeMetric(ctx, "enriched_bills", fmt.Sprintf("%d", metrics.EnrichedBills)); err != nil {
		return nil, err
	}
	if err := m.storeMetric(ctx, "pending_bills", fmt.Sprintf("%d", metrics.PendingBills)); err != nil {
		return nil, err
	}
	if err := m.storeMetric(ctx, "enriched_share", fmt.Sprintf("%.2f", metrics.EnrichedShare)); err != nil {
		return nil, err
	}
	if err := m.storeMetric(ctx, "total_sessions", fmt.Sprintf("%d", metrics.TotalSessions)); err != nil {
		return nil, err
	}
	if err := m.storeMetric(ctx, "largest_session", metrics.LargestSession); err != nil {
		return nil, err
	}
	if err := m.storeMetric(ctx, "cached_payloads", fmt.Sprintf("%d", metrics.CachedPayloads)); err != nil {
		return nil, err
	}

	return metrics, nil
}

// storeMetric stores a single metric value
func (m *MetricsService) storeMetric(ctx context.Context, name, value string) error {
	query := `
		INSERT INTO metrics (metric_name, metric_value, calculated_at)
		VALUES ($1, $2, $3)
	`

	_, err := m.db.ExecContext(ctx, query, name, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store metric %s: %w", name, err)
	}

	return nil
}

// GetLatestMetrics retrieves the most recent value of each stored metric
func (m *MetricsService) GetLatestMetrics(ctx context.Context) (map[string]string, error) {
	query := `
		SELECT DISTINCT ON (metric_name) metric_name, metric_value
		FROM metrics
		ORDER BY metric_name, calculated_at DESC
	`

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics: %w", err)
	}
	defer rows.Close()

	metrics := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		metrics[name] = value
	}

	return metrics, rows.Err()
}

package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrDuplicate is returned by inserts that violate a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate record")

const schema = `
CREATE TABLE IF NOT EXISTS bills (
	id SERIAL PRIMARY KEY,
	bill_id TEXT NOT NULL UNIQUE,
	identifier TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	chamber TEXT NOT NULL DEFAULT '',
	session TEXT NOT NULL DEFAULT '',
	jurisdiction TEXT NOT NULL DEFAULT '',
	classification TEXT NOT NULL DEFAULT '[]',
	subject TEXT NOT NULL DEFAULT '[]',
	sponsors TEXT NOT NULL DEFAULT '[]',
	action_history TEXT NOT NULL DEFAULT '[]',
	sources TEXT NOT NULL DEFAULT '[]',
	tags TEXT NOT NULL DEFAULT '[]',
	first_action_date TIMESTAMPTZ,
	latest_action_date TIMESTAMPTZ,
	latest_action_description TEXT NOT NULL DEFAULT '',
	latest_passage_date TIMESTAMPTZ,
	openstates_url TEXT NOT NULL DEFAULT '',
	impact_clause TEXT NOT NULL DEFAULT '',
	key_provisions TEXT NOT NULL DEFAULT '[]',
	impact TEXT NOT NULL DEFAULT '',
	ai_analysis TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bills_status ON bills (status);
CREATE INDEX IF NOT EXISTS idx_bills_session ON bills (session);

CREATE TABLE IF NOT EXISTS bill_cache (
	id SERIAL PRIMARY KEY,
	bill_id TEXT NOT NULL UNIQUE,
	data TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id UUID PRIMARY KEY,
	selector TEXT NOT NULL DEFAULT '',
	triggered_by TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	processed INTEGER NOT NULL DEFAULT 0,
	created INTEGER NOT NULL DEFAULT 0,
	updated INTEGER NOT NULL DEFAULT 0,
	errors INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs (started_at);

CREATE TABLE IF NOT EXISTS metrics (
	id SERIAL PRIMARY KEY,
	metric_name TEXT NOT NULL,
	metric_value TEXT NOT NULL DEFAULT '',
	calculated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_metrics_name_time ON metrics (metric_name, calculated_at DESC);
`

// NewDB opens a Postgres connection pool and ensures the schema exists
func NewDB(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint error
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

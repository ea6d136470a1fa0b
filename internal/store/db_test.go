package store

import (
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/redbirdapp/redbird/internal/model"
)

// newTestDB opens the database named by TEST_DATABASE_URL, skipping the
// test when it is not set. Tables are emptied before and after each test.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping database tests")
	}

	db, err := NewDB(dsn)
	require.NoError(t, err)

	truncate := func() {
		for _, table := range []string{"bills", "bill_cache", "sync_runs", "metrics"} {
			_, err := db.Exec("DELETE FROM " + table)
			require.NoError(t, err)
		}
	}
	truncate()
	t.Cleanup(func() {
		truncate()
		db.Close()
	})

	return db
}

// testStoredBill builds a bill record ready for insertion
func testStoredBill(billID, identifier string) *model.Bill {
	first := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	latest := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	return &model.Bill{
		BillID:         billID,
		Identifier:     identifier,
		Title:          "An act relating to water quality",
		Status:         "Introduced",
		Chamber:        "Assembly",
		Session:        "20252026",
		Jurisdiction:   "California",
		Classification: []string{"bill"},
		Subject:        []string{"Water"},
		Sponsors: []model.Sponsor{
			{Name: "Garcia", Classification: "primary", Primary: true},
		},
		ActionHistory: []model.Action{
			{Date: "2025-01-10", Description: "Introduced", Organization: "Assembly", Classification: []string{"introduction"}},
		},
		Sources:                 []model.Source{{URL: "https://example.org/bill"}},
		Tags:                    []string{},
		FirstActionDate:         &first,
		LatestActionDate:        &latest,
		LatestActionDescription: "Referred to committee",
		OpenStatesURL:           "https://openstates.org/ca/bills/20252026/" + identifier,
		ImpactClause:            "An act to amend Section 1",
		KeyProvisions:           []string{},
	}
}

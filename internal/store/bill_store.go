package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redbirdapp/redbird/internal/model"
)

// BillStore handles database operations for bill records
type BillStore struct {
	db *sql.DB
}

// NewBillStore creates a new BillStore
func NewBillStore(db *sql.DB) *BillStore {
	return &BillStore{db: db}
}

const billColumns = `id, bill_id, identifier, title, summary, status, chamber, session, jurisdiction,
	classification, subject, sponsors, action_history, sources, tags,
	first_action_date, latest_action_date, latest_action_description, latest_passage_date,
	openstates_url, impact_clause, key_provisions, impact, ai_analysis, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner) (*model.Bill, error) {
	var b model.Bill
	var classification, subject, sponsors, actions, sources, tags, provisions string
	var analysis sql.NullString
	var firstAction, latestAction, latestPassage sql.NullTime

	err := row.Scan(
		&b.ID, &b.BillID, &b.Identifier, &b.Title, &b.Summary, &b.Status, &b.Chamber, &b.Session, &b.Jurisdiction,
		&classification, &subject, &sponsors, &actions, &sources, &tags,
		&firstAction, &latestAction, &b.LatestActionDescription, &latestPassage,
		&b.OpenStatesURL, &b.ImpactClause, &provisions, &b.Impact, &analysis, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	decodeJSON(classification, &b.Classification)
	decodeJSON(subject, &b.Subject)
	decodeJSON(sponsors, &b.Sponsors)
	decodeJSON(actions, &b.ActionHistory)
	decodeJSON(sources, &b.Sources)
	decodeJSON(tags, &b.Tags)
	decodeJSON(provisions, &b.KeyProvisions)
	if analysis.Valid && analysis.String != "" {
		var a model.AIAnalysis
		if err := json.Unmarshal([]byte(analysis.String), &a); err == nil {
			b.AIAnalysis = &a
		}
	}

	b.FirstActionDate = nullableTime(firstAction)
	b.LatestActionDate = nullableTime(latestAction)
	b.LatestPassageDate = nullableTime(latestPassage)

	return &b, nil
}

// decodeJSON fills dst from a JSON text column, leaving the zero value on
// empty or corrupt input
func decodeJSON(src string, dst any) {
	if src == "" {
		return
	}
	_ = json.Unmarshal([]byte(src), dst)
}

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode json column: %w", err)
	}
	return string(data), nil
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

type billColumnValues struct {
	classification, subject, sponsors, actions, sources, tags, provisions string
	analysis                                                              sql.NullString
}

func encodeBillColumns(bill *model.Bill) (*billColumnValues, error) {
	var vals billColumnValues
	var err error
	if vals.classification, err = encodeJSON(bill.Classification); err != nil {
		return nil, err
	}
	if vals.subject, err = encodeJSON(bill.Subject); err != nil {
		return nil, err
	}
	if vals.sponsors, err = encodeJSON(bill.Sponsors); err != nil {
		return nil, err
	}
	if vals.actions, err = encodeJSON(bill.ActionHistory); err != nil {
		return nil, err
	}
	if vals.sources, err = encodeJSON(bill.Sources); err != nil {
		return nil, err
	}
	if vals.tags, err = encodeJSON(bill.Tags); err != nil {
		return nil, err
	}
	if vals.provisions, err = encodeJSON(bill.KeyProvisions); err != nil {
		return nil, err
	}
	if bill.AIAnalysis != nil {
		encoded, err := encodeJSON(bill.AIAnalysis)
		if err != nil {
			return nil, err
		}
		vals.analysis = sql.NullString{String: encoded, Valid: true}
	}
	return &vals, nil
}

// GetByBillID retrieves a bill by its source identifier, returning nil when absent
func (s *BillStore) GetByBillID(ctx context.Context, billID string) (*model.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE bill_id = $1`

	bill, err := scanBill(s.db.QueryRowContext(ctx, query, billID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill %s: %w", billID, err)
	}
	return bill, nil
}

// GetByID retrieves a bill by its numeric primary key, returning nil when absent
func (s *BillStore) GetByID(ctx context.Context, id int) (*model.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE id = $1`

	bill, err := scanBill(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill %d: %w", id, err)
	}
	return bill, nil
}

// Insert stores a new bill record and stamps its bookkeeping timestamps.
// Returns ErrDuplicate when a record with the same bill_id already exists.
func (s *BillStore) Insert(ctx context.Context, bill *model.Bill) error {
	vals, err := encodeBillColumns(bill)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	bill.CreatedAt = now
	bill.UpdatedAt = now

	query := `
		INSERT INTO bills (
			bill_id, identifier, title, summary, status, chamber, session, jurisdiction,
			classification, subject, sponsors, action_history, sources, tags,
			first_action_date, latest_action_date, latest_action_description, latest_passage_date,
			openstates_url, impact_clause, key_provisions, impact, ai_analysis, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25
		) RETURNING id`

	err = s.db.QueryRowContext(ctx, query,
		bill.BillID, bill.Identifier, bill.Title, bill.Summary, bill.Status, bill.Chamber, bill.Session, bill.Jurisdiction,
		vals.classification, vals.subject, vals.sponsors, vals.actions, vals.sources, vals.tags,
		toNullTime(bill.FirstActionDate), toNullTime(bill.LatestActionDate), bill.LatestActionDescription, toNullTime(bill.LatestPassageDate),
		bill.OpenStatesURL, bill.ImpactClause, vals.provisions, bill.Impact, vals.analysis, bill.CreatedAt, bill.UpdatedAt,
	).Scan(&bill.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("bill %s already exists: %w", bill.BillID, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert bill %s: %w", bill.BillID, err)
	}
	return nil
}

// Update replaces all content fields of an existing bill and refreshes updated_at.
// The created_at stamp is left untouched.
func (s *BillStore) Update(ctx context.Context, bill *model.Bill) error {
	vals, err := encodeBillColumns(bill)
	if err != nil {
		return err
	}

	bill.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE bills SET
			identifier = $2, title = $3, summary = $4, status = $5, chamber = $6, session = $7, jurisdiction = $8,
			classification = $9, subject = $10, sponsors = $11, action_history = $12, sources = $13, tags = $14,
			first_action_date = $15, latest_action_date = $16, latest_action_description = $17, latest_passage_date = $18,
			openstates_url = $19, impact_clause = $20, key_provisions = $21, impact = $22, ai_analysis = $23, updated_at = $24
		WHERE bill_id = $1`

	result, err := s.db.ExecContext(ctx, query,
		bill.BillID, bill.Identifier, bill.Title, bill.Summary, bill.Status, bill.Chamber, bill.Session, bill.Jurisdiction,
		vals.classification, vals.subject, vals.sponsors, vals.actions, vals.sources, vals.tags,
		toNullTime(bill.FirstActionDate), toNullTime(bill.LatestActionDate), bill.LatestActionDescription, toNullTime(bill.LatestPassageDate),
		bill.OpenStatesURL, bill.ImpactClause, vals.provisions, bill.Impact, vals.analysis, bill.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update bill %s: %w", bill.BillID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update bill %s: %w", bill.BillID, err)
	}
	if rows == 0 {
		return fmt.Errorf("bill %s not found", bill.BillID)
	}
	return nil
}

// List retrieves stored bills ordered newest-first, with optional status and
// free-text filters. The search term matches title, summary, or bill_id.
func (s *BillStore) List(ctx context.Context, skip, limit int, status, search string) ([]model.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills`
	var conditions []string
	var args []any

	if status != "" {
		args = append(args, status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR summary ILIKE $%d OR bill_id ILIKE $%d)", n, n, n))
	}
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	args = append(args, limit, skip)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	return collectBills(rows)
}

// ListRecent retrieves the most recently created bills
func (s *BillStore) ListRecent(ctx context.Context, limit int) ([]model.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills ORDER BY created_at DESC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent bills: %w", err)
	}
	defer rows.Close()

	return collectBills(rows)
}

// ListMissingSummary retrieves bills that have no summary yet, oldest first
func (s *BillStore) ListMissingSummary(ctx context.Context, limit int) ([]model.Bill, error) {
	query := `SELECT ` + billColumns + ` FROM bills WHERE summary = '' ORDER BY id ASC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills missing summaries: %w", err)
	}
	defer rows.Close()

	return collectBills(rows)
}

func collectBills(rows *sql.Rows) ([]model.Bill, error) {
	bills := []model.Bill{}
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bill row: %w", err)
		}
		bills = append(bills, *bill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bill rows: %w", err)
	}
	return bills, nil
}

// Count returns the total number of stored bills
func (s *BillStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bills`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bills: %w", err)
	}
	return count, nil
}

// CountMatching returns the number of bills matching the List filters
func (s *BillStore) CountMatching(ctx context.Context, status, search string) (int, error) {
	query := `SELECT COUNT(*) FROM bills`
	var conditions []string
	var args []any

	if status != "" {
		args = append(args, status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR summary ILIKE $%d OR bill_id ILIKE $%d)", n, n, n))
	}
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count matching bills: %w", err)
	}
	return count, nil
}

// CountMissingSummary returns the number of bills that have no summary yet
func (s *BillStore) CountMissingSummary(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bills WHERE summary = ''`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bills missing summaries: %w", err)
	}
	return count, nil
}

// DeleteByBillID removes a bill by its source identifier, reporting whether a row was removed
func (s *BillStore) DeleteByBillID(ctx context.Context, billID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bills WHERE bill_id = $1`, billID)
	if err != nil {
		return false, fmt.Errorf("failed to delete bill %s: %w", billID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete bill %s: %w", billID, err)
	}
	return rows > 0, nil
}

// DeleteByID removes a bill by its numeric primary key, reporting whether a row was removed
func (s *BillStore) DeleteByID(ctx context.Context, id int) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bills WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete bill %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete bill %d: %w", id, err)
	}
	return rows > 0, nil
}

// DeleteAll removes every stored bill and returns the number removed
func (s *BillStore) DeleteAll(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bills`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete bills: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete bills: %w", err)
	}
	return int(rows), nil
}

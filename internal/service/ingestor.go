package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redbirdapp/redbird/internal/model"
	"github.com/redbirdapp/redbird/internal/store"
)

const (
	defaultSession   = "20252026"
	firstSessionYear = 2011
	lastSessionYear  = 2025
	pageSize         = 20
	maxSessionPages  = 1000

	// defaultCacheWindow is how long a cached payload stays fresh
	defaultCacheWindow = 24 * time.Hour

	// ocdBillPrefix is the namespace OpenStates bill ids carry
	ocdBillPrefix = "ocd-bill/"
)

// Outcomes recorded for each bill processed in a batch
const (
	OutcomeCreated = "created"
	OutcomeUpdated = "updated"
	OutcomeError   = "error"
)

// SourceClient fetches bill payloads from the legislative data source
type SourceClient interface {
	FetchBillsPage(ctx context.Context, session string, page, perPage int) (*model.BillPage, error)
	FetchBill(ctx context.Context, billID string) (*model.RawBill, error)
	Delay() time.Duration
}

// Summarizer produces AI analyses of bill text
type Summarizer interface {
	Summarize(ctx context.Context, title, billText, billID string) (*model.AIAnalysis, error)
	Categorize(ctx context.Context, title, abstract string) (string, error)
}

// BillStorage is the slice of the bill store the ingestor needs
type BillStorage interface {
	GetByBillID(ctx context.Context, billID string) (*model.Bill, error)
	Insert(ctx context.Context, bill *model.Bill) error
	Update(ctx context.Context, bill *model.Bill) error
	ListMissingSummary(ctx context.Context, limit int) ([]model.Bill, error)
	DeleteAll(ctx context.Context) (int, error)
}

// CacheStorage persists raw source payloads
type CacheStorage interface {
	Get(ctx context.Context, billID string) (*model.CacheEntry, error)
	Put(ctx context.Context, billID string, data []byte) error
}

// RunRecorder persists sync run bookkeeping
type RunRecorder interface {
	Insert(ctx context.Context, run *model.SyncRun) error
	Complete(ctx context.Context, run *model.SyncRun) error
}

// BillResult tags the outcome of one bill within a batch
type BillResult struct {
	BillID  string `json:"bill_id"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// SyncStats tracks batch ingestion statistics
type SyncStats struct {
	Sessions  []string     `json:"sessions"`
	Processed int          `json:"processed"`
	Created   int          `json:"created"`
	Updated   int          `json:"updated"`
	Errors    int          `json:"errors"`
	Results   []BillResult `json:"results"`
}

// storageError marks failures that abort a whole batch rather than a single bill
type storageError struct {
	err error
}

func (e *storageError) Error() string { return e.err.Error() }
func (e *storageError) Unwrap() error { return e.err }

// Ingestor orchestrates fetching, enrichment, and persistence of bills
type Ingestor struct {
	client     SourceClient
	summarizer Summarizer
	normalizer *Normalizer
	bills      BillStorage
	cache      CacheStorage
	runs       RunRecorder
	logger     *log.Logger
	errLogger  *log.Logger
}

// NewIngestor creates a new Ingestor. The cache and run recorder are
// optional; nil disables that bookkeeping.
func NewIngestor(client SourceClient, summarizer Summarizer, normalizer *Normalizer, bills BillStorage, cache CacheStorage, runs RunRecorder) *Ingestor {
	return &Ingestor{
		client:     client,
		summarizer: summarizer,
		normalizer: normalizer,
		bills:      bills,
		cache:      cache,
		runs:       runs,
		logger:     log.New(os.Stdout, "", log.LstdFlags),
		errLogger:  log.New(os.Stderr, "ERROR: ", log.LstdFlags),
	}
}

// Ingest reconciles one raw payload against storage. New bills and bills
// that never received a summary are enriched before persisting; bills that
// already carry one keep their existing analysis untouched.
func (i *Ingestor) Ingest(ctx context.Context, raw *model.RawBill) (string, error) {
	bill, analysisText, err := i.normalizer.Normalize(raw)
	if err != nil {
		return "", err
	}

	existing, err := i.bills.GetByBillID(ctx, bill.BillID)
	if err != nil {
		return "", &storageError{fmt.Errorf("failed to look up bill %s: %w", bill.BillID, err)}
	}

	if existing == nil || !existing.Enriched() {
		i.enrich(ctx, bill, analysisText)
	} else {
		bill.Summary = existing.Summary
		bill.KeyProvisions = existing.KeyProvisions
		bill.Impact = existing.Impact
		bill.AIAnalysis = existing.AIAnalysis
	}

	if existing != nil {
		if err := i.bills.Update(ctx, bill); err != nil {
			return "", err
		}
		return OutcomeUpdated, nil
	}

	if err := i.bills.Insert(ctx, bill); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// A concurrent writer beat us to the insert
			if err := i.bills.Update(ctx, bill); err != nil {
				return "", err
			}
			return OutcomeUpdated, nil
		}
		return "", err
	}
	return OutcomeCreated, nil
}

// enrich generates and attaches an AI analysis. Failures are logged and
// leave the bill unenriched; they never block persistence.
func (i *Ingestor) enrich(ctx context.Context, bill *model.Bill, analysisText string) {
	analysis, err := i.summarizer.Summarize(ctx, bill.Title, analysisText, bill.Identifier)
	if err != nil {
		i.errLogger.Printf("Failed to generate summary for %s: %v", bill.Identifier, err)
		return
	}
	if analysis == nil {
		i.logger.Printf("No usable summary for %s", bill.Identifier)
		return
	}

	i.applyAnalysis(ctx, bill, analysis)
}

// applyAnalysis merges a generated analysis into the bill record and folds
// the AI category into its tags
func (i *Ingestor) applyAnalysis(ctx context.Context, bill *model.Bill, analysis *model.AIAnalysis) {
	analysis.GeneratedAt = time.Now().UTC()
	bill.Summary = analysis.Summary
	bill.KeyProvisions = analysis.KeyProvisions
	bill.Impact = analysis.Impact
	bill.AIAnalysis = analysis

	category, err := i.summarizer.Categorize(ctx, bill.Title, analysis.Summary)
	if err != nil {
		i.errLogger.Printf("Failed to categorize %s: %v", bill.Identifier, err)
		return
	}
	if category != "" && category != defaultCategory && !containsString(bill.Tags, category) {
		bill.Tags = append(bill.Tags, category)
	}
}

// IngestSession fetches and reconciles every bill in the sessions named by
// the selector, recording a sync run when a recorder is configured. Failures
// local to one bill are tallied and skipped; storage outages abort the run.
func (i *Ingestor) IngestSession(ctx context.Context, selector, trigger string) (*SyncStats, error) {
	sessions := resolveSessions(selector)
	stats := &SyncStats{Sessions: sessions, Results: []BillResult{}}

	run := i.recordRunStart(ctx, selector, trigger)
	defer i.recordRunEnd(run, stats)

	for _, session := range sessions {
		if err := i.ingestSessionPages(ctx, session, stats); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

// ingestSessionPages walks a session page by page until the source runs out
// of results. A failed page fetch ends the session without failing the run.
func (i *Ingestor) ingestSessionPages(ctx context.Context, session string, stats *SyncStats) error {
	i.logger.Printf("Syncing session %s...", session)

	for page := 1; page <= maxSessionPages; page++ {
		billPage, err := i.client.FetchBillsPage(ctx, session, page, pageSize)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			i.errLogger.Printf("Failed to fetch session %s page %d: %v", session, page, err)
			return nil
		}
		if len(billPage.Results) == 0 {
			i.logger.Printf("Session %s complete after %d pages", session, page-1)
			return nil
		}

		if err := i.ingestPage(ctx, billPage.Results, stats); err != nil {
			return err
		}

		time.Sleep(i.client.Delay())
	}

	i.logger.Printf("Stopping session %s at page limit", session)
	return nil
}

// ingestPage reconciles one page of results into stats. Only storage
// outages and cancellation produce an error.
func (i *Ingestor) ingestPage(ctx context.Context, results []model.RawBill, stats *SyncStats) error {
	for idx := range results {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		raw := &results[idx]
		outcome, err := i.Ingest(ctx, raw)
		if err != nil {
			var se *storageError
			if errors.As(err, &se) {
				return err
			}
			i.errLogger.Printf("Failed to process bill %s: %v", raw.ID, err)
			stats.Errors++
			stats.Results = append(stats.Results, BillResult{BillID: raw.ID, Outcome: OutcomeError, Error: err.Error()})
			continue
		}

		stats.Processed++
		switch outcome {
		case OutcomeCreated:
			stats.Created++
		case OutcomeUpdated:
			stats.Updated++
		}
		stats.Results = append(stats.Results, BillResult{BillID: raw.ID, Outcome: outcome})
	}
	return nil
}

// resolveSessions expands a session selector into OpenStates session ids.
// "all" covers every two-year session back to 2011; a year maps onto the
// session containing it; anything else falls back to the current session.
func resolveSessions(selector string) []string {
	if selector == "all" {
		var sessions []string
		for year := firstSessionYear; year <= lastSessionYear; year += 2 {
			sessions = append(sessions, fmt.Sprintf("%d%d", year, year+1))
		}
		return sessions
	}

	if year, err := strconv.Atoi(selector); err == nil && year > 0 {
		if year%2 == 0 {
			return []string{fmt.Sprintf("%d%d", year-1, year)}
		}
		return []string{fmt.Sprintf("%d%d", year, year+1)}
	}

	return []string{defaultSession}
}

// EnsureBill returns the stored record for a bill, fetching and ingesting it
// on a miss. Fresh cached payloads are used before the source is contacted.
// Returns nil when the bill exists nowhere.
func (i *Ingestor) EnsureBill(ctx context.Context, billID string) (*model.Bill, error) {
	for _, id := range candidateIDs(billID) {
		existing, err := i.bills.GetByBillID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to look up bill %s: %w", id, err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	raw, err := i.fetchRawBill(ctx, billID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	if _, err := i.Ingest(ctx, raw); err != nil {
		return nil, fmt.Errorf("failed to ingest bill %s: %w", raw.ID, err)
	}
	return i.bills.GetByBillID(ctx, raw.ID)
}

// candidateIDs returns the lookup keys for a bill id, adding the ocd-bill
// namespace when the caller passed a bare uuid
func candidateIDs(billID string) []string {
	if strings.HasPrefix(billID, ocdBillPrefix) {
		return []string{billID}
	}
	return []string{billID, ocdBillPrefix + billID}
}

// fetchRawBill resolves a raw payload from cache or source, refreshing the
// cache after a source fetch. Returns nil when the source has no such bill.
func (i *Ingestor) fetchRawBill(ctx context.Context, billID string) (*model.RawBill, error) {
	candidates := candidateIDs(billID)

	for _, id := range candidates {
		if raw := i.cachedRawBill(ctx, id); raw != nil {
			return raw, nil
		}
	}

	var raw *model.RawBill
	var err error
	for _, id := range candidates {
		raw, err = i.client.FetchBill(ctx, id)
		if err != nil {
			return nil, err
		}
		if raw != nil {
			break
		}
	}
	if raw == nil {
		return nil, nil
	}

	if i.cache != nil {
		if data, err := json.Marshal(raw); err == nil {
			if err := i.cache.Put(ctx, raw.ID, data); err != nil {
				i.errLogger.Printf("Failed to cache bill %s: %v", raw.ID, err)
			}
		}
	}
	return raw, nil
}

// cachedRawBill returns a fresh cached payload or nil
func (i *Ingestor) cachedRawBill(ctx context.Context, billID string) *model.RawBill {
	if i.cache == nil {
		return nil
	}
	entry, err := i.cache.Get(ctx, billID)
	if err != nil || entry == nil || entry.Expired(defaultCacheWindow) {
		return nil
	}
	var raw model.RawBill
	if err := json.Unmarshal(entry.Data, &raw); err != nil || raw.ID == "" {
		return nil
	}
	return &raw
}

// SeedCurrentSession ingests the first page of the current session. Used to
// populate an empty database on first request.
func (i *Ingestor) SeedCurrentSession(ctx context.Context) (*SyncStats, error) {
	stats := &SyncStats{Sessions: []string{defaultSession}, Results: []BillResult{}}

	billPage, err := i.client.FetchBillsPage(ctx, defaultSession, 1, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch current session: %w", err)
	}

	if err := i.ingestPage(ctx, billPage.Results, stats); err != nil {
		return stats, err
	}
	return stats, nil
}

// EnrichPending generates summaries for stored bills that have none,
// returning how many were enriched
func (i *Ingestor) EnrichPending(ctx context.Context, limit int) (int, error) {
	pending, err := i.bills.ListMissingSummary(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list bills missing summaries: %w", err)
	}

	enriched := 0
	for idx := range pending {
		select {
		case <-ctx.Done():
			return enriched, ctx.Err()
		default:
		}

		if err := i.EnrichBill(ctx, pending[idx].BillID); err != nil {
			i.errLogger.Printf("Failed to enrich bill %s: %v", pending[idx].BillID, err)
			continue
		}
		enriched++
	}
	return enriched, nil
}

// EnrichBill regenerates the AI analysis for one stored bill, replacing any
// existing analysis
func (i *Ingestor) EnrichBill(ctx context.Context, billID string) error {
	var bill *model.Bill
	for _, id := range candidateIDs(billID) {
		var err error
		bill, err = i.bills.GetByBillID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to look up bill %s: %w", id, err)
		}
		if bill != nil {
			break
		}
	}
	if bill == nil {
		return fmt.Errorf("bill %s not found", billID)
	}

	analysis, err := i.summarizer.Summarize(ctx, bill.Title, i.analysisTextFor(ctx, bill), bill.Identifier)
	if err != nil {
		return fmt.Errorf("failed to generate summary for %s: %w", bill.Identifier, err)
	}
	if analysis == nil {
		return fmt.Errorf("no usable summary for %s", bill.Identifier)
	}

	i.applyAnalysis(ctx, bill, analysis)
	return i.bills.Update(ctx, bill)
}

// analysisTextFor builds prompt text for a stored bill, preferring the full
// raw payload when the cache or source can supply one
func (i *Ingestor) analysisTextFor(ctx context.Context, bill *model.Bill) string {
	raw, err := i.fetchRawBill(ctx, bill.BillID)
	if err == nil && raw != nil {
		return buildAnalysisText(raw)
	}

	var parts []string
	if bill.Title != "" {
		parts = append(parts, "Title: "+bill.Title)
	}
	if bill.ImpactClause != "" {
		parts = append(parts, "Impact Clause: "+bill.ImpactClause)
	}
	if bill.LatestActionDescription != "" {
		parts = append(parts, "Latest Action: "+bill.LatestActionDescription)
	}
	return strings.Join(parts, "\n\n")
}

// ClearAll removes every stored bill and returns the number removed
func (i *Ingestor) ClearAll(ctx context.Context) (int, error) {
	return i.bills.DeleteAll(ctx)
}

// recordRunStart opens a sync run record when a recorder is configured
func (i *Ingestor) recordRunStart(ctx context.Context, selector, trigger string) *model.SyncRun {
	if i.runs == nil {
		return nil
	}

	run := &model.SyncRun{
		ID:        uuid.New().String(),
		Selector:  selector,
		Trigger:   trigger,
		StartedAt: time.Now().UTC(),
	}
	if err := i.runs.Insert(ctx, run); err != nil {
		i.errLogger.Printf("Failed to record sync run: %v", err)
		return nil
	}
	return run
}

// recordRunEnd writes final counters for a run. It uses a fresh context so
// the bookkeeping survives a canceled batch.
func (i *Ingestor) recordRunEnd(run *model.SyncRun, stats *SyncStats) {
	if run == nil {
		return
	}

	run.Processed = stats.Processed
	run.Created = stats.Created
	run.Updated = stats.Updated
	run.Errors = stats.Errors
	if err := i.runs.Complete(context.Background(), run); err != nil {
		i.errLogger.Printf("Failed to complete sync run record: %v", err)
	}
}

// PrintSummary prints the sync statistics
func (i *Ingestor) PrintSummary(stats *SyncStats) {
	i.logger.Println("")
	i.logger.Println("=== Sync Summary ===")
	i.logger.Printf("Sessions:   %d", len(stats.Sessions))
	i.logger.Printf("Processed:  %d", stats.Processed)
	i.logger.Printf("Created:    %d", stats.Created)
	i.logger.Printf("Updated:    %d", stats.Updated)
	i.logger.Printf("Errors:     %d", stats.Errors)
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

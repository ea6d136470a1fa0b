package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/redbirdapp/redbird/internal/model"
	"github.com/redbirdapp/redbird/internal/store"
)

// Mock implementations for testing

var (
	ErrMockSource  = errors.New("mock source error")
	ErrMockAI      = errors.New("mock ai error")
	ErrMockStorage = errors.New("mock storage error")
)

// MockSourceClient implements SourceClient for testing
type MockSourceClient struct {
	mu            sync.Mutex
	Pages         map[string][][]model.RawBill
	Bills         map[string]*model.RawBill
	FetchPageFunc func(ctx context.Context, session string, page, perPage int) (*model.BillPage, error)
	FetchBillFunc func(ctx context.Context, billID string) (*model.RawBill, error)
	PageCalls     int
	BillCalls     int
	SessionsSeen  []string
	FailPages     bool
	FailBills     bool
}

func NewMockSourceClient() *MockSourceClient {
	return &MockSourceClient{
		Pages: make(map[string][][]model.RawBill),
		Bills: make(map[string]*model.RawBill),
	}
}

func (m *MockSourceClient) FetchBillsPage(ctx context.Context, session string, page, perPage int) (*model.BillPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PageCalls++
	if page == 1 {
		m.SessionsSeen = append(m.SessionsSeen, session)
	}
	if m.FetchPageFunc != nil {
		return m.FetchPageFunc(ctx, session, page, perPage)
	}
	if m.FailPages {
		return nil, ErrMockSource
	}

	pages := m.Pages[session]
	if page > len(pages) {
		return &model.BillPage{Results: []model.RawBill{}}, nil
	}
	return &model.BillPage{Results: pages[page-1]}, nil
}

func (m *MockSourceClient) FetchBill(ctx context.Context, billID string) (*model.RawBill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.BillCalls++
	if m.FetchBillFunc != nil {
		return m.FetchBillFunc(ctx, billID)
	}
	if m.FailBills {
		return nil, ErrMockSource
	}
	return m.Bills[billID], nil
}

func (m *MockSourceClient) Delay() time.Duration { return 0 }

// MockSummarizer implements Summarizer for testing. Summarize hands out
// copies of Analysis so callers cannot mutate the template.
type MockSummarizer struct {
	mu              sync.Mutex
	Analysis        *model.AIAnalysis
	Category        string
	SummarizeFunc   func(ctx context.Context, title, billText, billID string) (*model.AIAnalysis, error)
	CallCount       int
	CategorizeCalls int
	LastBillID      string
	LastText        string
	FailOnCall      int
}

func NewMockSummarizer() *MockSummarizer {
	return &MockSummarizer{
		Analysis: &model.AIAnalysis{
			Title:         "Test Analysis",
			Summary:       "A plain language summary.",
			KeyProvisions: []string{"Provision one"},
			Impact:        "Broad impact on testing.",
		},
		Category: "Other",
	}
}

func (m *MockSummarizer) Summarize(ctx context.Context, title, billText, billID string) (*model.AIAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	m.LastBillID = billID
	m.LastText = billText
	if m.FailOnCall > 0 && m.CallCount >= m.FailOnCall {
		return nil, ErrMockAI
	}
	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, title, billText, billID)
	}
	if m.Analysis == nil {
		return nil, nil
	}

	analysis := *m.Analysis
	analysis.KeyProvisions = append([]string(nil), m.Analysis.KeyProvisions...)
	return &analysis, nil
}

func (m *MockSummarizer) Categorize(ctx context.Context, title, abstract string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CategorizeCalls++
	return m.Category, nil
}

// MockBillStorage implements BillStorage with an in-memory map. Reads and
// writes copy records so tests observe storage the way a database would.
type MockBillStorage struct {
	mu          sync.Mutex
	ByBillID    map[string]*model.Bill
	GetFunc     func(ctx context.Context, billID string) (*model.Bill, error)
	LookupCount int
	InsertCount int
	UpdateCount int
	FailLookup  bool
	nextID      int
}

func NewMockBillStorage() *MockBillStorage {
	return &MockBillStorage{ByBillID: make(map[string]*model.Bill)}
}

func (m *MockBillStorage) GetByBillID(ctx context.Context, billID string) (*model.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LookupCount++
	if m.GetFunc != nil {
		return m.GetFunc(ctx, billID)
	}
	if m.FailLookup {
		return nil, ErrMockStorage
	}

	bill, ok := m.ByBillID[billID]
	if !ok {
		return nil, nil
	}
	copied := *bill
	return &copied, nil
}

func (m *MockBillStorage) Insert(ctx context.Context, bill *model.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InsertCount++
	if _, exists := m.ByBillID[bill.BillID]; exists {
		return fmt.Errorf("bill %s already exists: %w", bill.BillID, store.ErrDuplicate)
	}

	m.nextID++
	bill.ID = m.nextID
	now := time.Now().UTC()
	bill.CreatedAt = now
	bill.UpdatedAt = now

	copied := *bill
	m.ByBillID[bill.BillID] = &copied
	return nil
}

func (m *MockBillStorage) Update(ctx context.Context, bill *model.Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateCount++
	existing, ok := m.ByBillID[bill.BillID]
	if !ok {
		return fmt.Errorf("bill %s not found", bill.BillID)
	}

	bill.UpdatedAt = time.Now().UTC()
	copied := *bill
	copied.ID = existing.ID
	copied.CreatedAt = existing.CreatedAt
	m.ByBillID[bill.BillID] = &copied
	return nil
}

func (m *MockBillStorage) ListMissingSummary(ctx context.Context, limit int) ([]model.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var missing []model.Bill
	for _, bill := range m.ByBillID {
		if bill.Summary == "" {
			missing = append(missing, *bill)
		}
	}
	sort.Slice(missing, func(a, b int) bool { return missing[a].ID < missing[b].ID })
	if limit > 0 && len(missing) > limit {
		missing = missing[:limit]
	}
	return missing, nil
}

func (m *MockBillStorage) DeleteAll(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := len(m.ByBillID)
	m.ByBillID = make(map[string]*model.Bill)
	return count, nil
}

// Seed stores a record directly, bypassing the ingestion path
func (m *MockBillStorage) Seed(bill *model.Bill) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	copied := *bill
	copied.ID = m.nextID
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now().UTC()
	}
	if copied.UpdatedAt.IsZero() {
		copied.UpdatedAt = copied.CreatedAt
	}
	m.ByBillID[copied.BillID] = &copied
}

// Stored returns the stored record for a bill id, or nil
func (m *MockBillStorage) Stored(billID string) *model.Bill {
	m.mu.Lock()
	defer m.mu.Unlock()

	bill, ok := m.ByBillID[billID]
	if !ok {
		return nil
	}
	copied := *bill
	return &copied
}

// MockCacheStorage implements CacheStorage with an in-memory map
type MockCacheStorage struct {
	mu       sync.Mutex
	Entries  map[string]*model.CacheEntry
	GetCount int
	PutCount int
	FailGet  bool
	FailPut  bool
}

func NewMockCacheStorage() *MockCacheStorage {
	return &MockCacheStorage{Entries: make(map[string]*model.CacheEntry)}
}

func (m *MockCacheStorage) Get(ctx context.Context, billID string) (*model.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCount++
	if m.FailGet {
		return nil, ErrMockStorage
	}

	entry, ok := m.Entries[billID]
	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

func (m *MockCacheStorage) Put(ctx context.Context, billID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PutCount++
	if m.FailPut {
		return ErrMockStorage
	}

	now := time.Now().UTC()
	entry := &model.CacheEntry{BillID: billID, Data: append([]byte(nil), data...), CreatedAt: now, UpdatedAt: now}
	if existing, ok := m.Entries[billID]; ok {
		entry.CreatedAt = existing.CreatedAt
	}
	m.Entries[billID] = entry
	return nil
}

// SeedEntry stores a cache entry with an explicit write time
func (m *MockCacheStorage) SeedEntry(billID string, data []byte, updatedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Entries[billID] = &model.CacheEntry{BillID: billID, Data: data, CreatedAt: updatedAt, UpdatedAt: updatedAt}
}

// MockRunRecorder implements RunRecorder, collecting run records in memory
type MockRunRecorder struct {
	mu       sync.Mutex
	Started  []model.SyncRun
	Finished []model.SyncRun
}

func NewMockRunRecorder() *MockRunRecorder {
	return &MockRunRecorder{}
}

func (m *MockRunRecorder) Insert(ctx context.Context, run *model.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Started = append(m.Started, *run)
	return nil
}

func (m *MockRunRecorder) Complete(ctx context.Context, run *model.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	run.FinishedAt = &now
	m.Finished = append(m.Finished, *run)
	return nil
}

// testDeps bundles the mocks behind one ingestor under test
type testDeps struct {
	source     *MockSourceClient
	summarizer *MockSummarizer
	bills      *MockBillStorage
	cache      *MockCacheStorage
	runs       *MockRunRecorder
}

func newTestIngestor() (*Ingestor, *testDeps) {
	deps := &testDeps{
		source:     NewMockSourceClient(),
		summarizer: NewMockSummarizer(),
		bills:      NewMockBillStorage(),
		cache:      NewMockCacheStorage(),
		runs:       NewMockRunRecorder(),
	}
	ing := NewIngestor(deps.source, deps.summarizer, NewNormalizer(), deps.bills, deps.cache, deps.runs)
	ing.logger = log.New(io.Discard, "", 0)
	ing.errLogger = log.New(io.Discard, "", 0)
	return ing, deps
}

// testRawBill builds a minimal source payload for ingestion tests
func testRawBill(id, identifier string) *model.RawBill {
	return &model.RawBill{
		ID:                      id,
		Identifier:              identifier,
		Title:                   "An act relating to water quality standards",
		Session:                 "20252026",
		Classification:          []string{"bill"},
		Subject:                 []string{"Water Resources"},
		Jurisdiction:            model.RawOrganization{Name: "California"},
		FromOrganization:        model.RawOrganization{Name: "Assembly"},
		FirstActionDate:         "2025-01-15",
		LatestActionDate:        "2025-03-05",
		LatestActionDescription: "Referred to committee",
		Sponsorships: []model.RawSponsorship{
			{Name: "Garcia", Classification: "primary", Primary: true},
		},
		Actions: []model.RawAction{
			{Date: "2025-01-15", Description: "Introduced", Organization: model.RawOrganization{Name: "Assembly"}},
		},
		OpenStatesURL: "https://openstates.org/ca/bills/20252026/" + identifier,
	}
}

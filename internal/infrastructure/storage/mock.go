package storage

import (
	"fmt"
	"sync"
	"time"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
type MockRepository struct {
	mu        sync.Mutex
	runs      map[int64]*ExportRun
	fetches   []PageFetch
	issues    []RowIssue
	nextRunID int64

	// Hooks for test assertions
	StartRunCalled    bool
	CompleteRunCalled bool
	FailRunCalled     bool
	LastSummary       *RunSummary

	// Error injection for testing error paths
	StartRunErr     error
	CompleteRunErr  error
	LogPageFetchErr error
	LogIssueErr     error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		runs:      make(map[int64]*ExportRun),
		nextRunID: 1,
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// StartRun stores a copy of run with a fresh ID
func (m *MockRepository) StartRun(run *ExportRun) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StartRunCalled = true
	if m.StartRunErr != nil {
		return 0, m.StartRunErr
	}

	id := m.nextRunID
	m.nextRunID++

	copied := *run
	copied.ID = id
	copied.Status = RunStatusRunning
	copied.StartedAt = now()
	m.runs[id] = &copied

	run.ID = id
	run.Status = RunStatusRunning
	return id, nil
}

// SetPlan updates the stored run
func (m *MockRepository) SetPlan(runID int64, orderCount, pages int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run %d: %w", runID, ErrNotFound)
	}
	run.OrderCount = orderCount
	run.PagesPlanned = pages
	return nil
}

// CompleteRun marks the stored run as completed
func (m *MockRepository) CompleteRun(runID int64, summary RunSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CompleteRunCalled = true
	m.LastSummary = &summary
	if m.CompleteRunErr != nil {
		return m.CompleteRunErr
	}

	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run %d: %w", runID, ErrNotFound)
	}
	run.Status = RunStatusCompleted
	if summary.HasErrors() {
		run.Status = RunStatusCompletedWithErrors
	}
	run.CompletedAt = now()
	run.PagesFailed = summary.PagesFailed
	run.OrdersFetched = summary.OrdersFetched
	run.OrdersMalformed = summary.OrdersMalformed
	run.RowsExported = summary.RowsExported
	run.Diagnostics = summary.Diagnostics
	run.Unreconciled = summary.Unreconciled
	run.OutputPath = summary.OutputPath
	return nil
}

// FailRun marks the stored run as failed or cancelled
func (m *MockRepository) FailRun(runID int64, status RunStatus, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FailRunCalled = true
	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run %d: %w", runID, ErrNotFound)
	}
	run.Status = status
	run.ErrorMessage = message
	run.CompletedAt = now()
	return nil
}

// GetRun returns a copy of the stored run
func (m *MockRepository) GetRun(runID int64) (*ExportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %d: %w", runID, ErrNotFound)
	}
	copied := *run
	return &copied, nil
}

// ListRuns returns stored runs, newest first
func (m *MockRepository) ListRuns(limit int) ([]ExportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	runs := make([]ExportRun, 0, len(m.runs))
	for id := m.nextRunID - 1; id >= 1 && len(runs) < limit; id-- {
		if run, ok := m.runs[id]; ok {
			runs = append(runs, *run)
		}
	}
	return runs, nil
}

// LogPageFetch appends the attempt
func (m *MockRepository) LogPageFetch(fetch *PageFetch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.LogPageFetchErr != nil {
		return m.LogPageFetchErr
	}
	fetch.ID = int64(len(m.fetches) + 1)
	copied := *fetch
	copied.FetchedAt = now()
	m.fetches = append(m.fetches, copied)
	return nil
}

// GetPageFetches returns the attempts of one run
func (m *MockRepository) GetPageFetches(runID int64) ([]PageFetch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fetches := make([]PageFetch, 0)
	for _, f := range m.fetches {
		if f.RunID == runID {
			fetches = append(fetches, f)
		}
	}
	return fetches, nil
}

// LogIssue appends the issue
func (m *MockRepository) LogIssue(issue *RowIssue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.LogIssueErr != nil {
		return m.LogIssueErr
	}
	issue.ID = int64(len(m.issues) + 1)
	copied := *issue
	copied.CreatedAt = now()
	m.issues = append(m.issues, copied)
	return nil
}

// GetIssues returns the issues of one run
func (m *MockRepository) GetIssues(runID int64) ([]RowIssue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	issues := make([]RowIssue, 0)
	for _, i := range m.issues {
		if i.RunID == runID {
			issues = append(issues, i)
		}
	}
	return issues, nil
}

package storage

// Repository defines the complete storage interface of the run ledger.
// The ledger is write-mostly: runs record what they did, the API reads it
// back. Nothing read from it changes how a later export behaves.
type Repository interface {
	RunRepository
	PageRepository
	IssueRepository
	Close() error
}

// RunRepository handles export run tracking
type RunRepository interface {
	// StartRun records the start of an export run and returns the run ID
	StartRun(run *ExportRun) (int64, error)

	// SetPlan records the order count and planned page count of a run
	SetPlan(runID int64, orderCount, pages int) error

	// CompleteRun records the counts of a finished run
	CompleteRun(runID int64, summary RunSummary) error

	// FailRun marks a run as failed or cancelled
	FailRun(runID int64, status RunStatus, message string) error

	// GetRun retrieves a run by ID
	GetRun(runID int64) (*ExportRun, error)

	// ListRuns returns recent runs, newest first
	ListRuns(limit int) ([]ExportRun, error)
}

// PageRepository handles page fetch attempt logging
type PageRepository interface {
	// LogPageFetch records one page attempt
	LogPageFetch(fetch *PageFetch) error

	// GetPageFetches returns every page attempt of a run in order
	GetPageFetches(runID int64) ([]PageFetch, error)
}

// IssueRepository handles per-order problems found during a run
type IssueRepository interface {
	// LogIssue records one dropped, partially derived or unreconciled order
	LogIssue(issue *RowIssue) error

	// GetIssues returns the issues of a run in order
	GetIssues(runID int64) ([]RowIssue, error)
}

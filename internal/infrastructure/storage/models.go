package storage

// RunStatus is the lifecycle state of an export run.
type RunStatus string

const (
	RunStatusRunning             RunStatus = "running"
	RunStatusCompleted           RunStatus = "completed"
	RunStatusCompletedWithErrors RunStatus = "completed_with_errors"
	RunStatusFailed              RunStatus = "failed"
	RunStatusCancelled           RunStatus = "cancelled"
)

// IssueKind classifies a RowIssue.
type IssueKind string

const (
	IssueMalformed    IssueKind = "malformed"
	IssueDiagnostic   IssueKind = "diagnostic"
	IssueUnreconciled IssueKind = "unreconciled"
	IssueCoercion     IssueKind = "coercion"
)

// ExportRun represents an export run record
type ExportRun struct {
	ID              int64     `json:"id"`
	JobID           string    `json:"job_id,omitempty"`
	Store           string    `json:"store"`
	WindowStart     string    `json:"window_start"`
	WindowEnd       string    `json:"window_end"`
	DateField       string    `json:"date_field"`
	StartedAt       string    `json:"started_at"`
	CompletedAt     string    `json:"completed_at,omitempty"`
	Status          RunStatus `json:"status"`
	OrderCount      int       `json:"order_count"`
	PagesPlanned    int       `json:"pages_planned"`
	PagesFailed     int       `json:"pages_failed"`
	OrdersFetched   int       `json:"orders_fetched"`
	OrdersMalformed int       `json:"orders_malformed"`
	RowsExported    int       `json:"rows_exported"`
	Diagnostics     int       `json:"diagnostics"`
	Unreconciled    int       `json:"unreconciled"`
	OutputPath      string    `json:"output_path,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
}

// RunSummary holds the counts written when a run completes.
type RunSummary struct {
	PagesFailed     int
	OrdersFetched   int
	OrdersMalformed int
	RowsExported    int
	Diagnostics     int
	Unreconciled    int
	OutputPath      string
}

// HasErrors reports whether anything was dropped or flagged.
func (s RunSummary) HasErrors() bool {
	return s.PagesFailed > 0 || s.OrdersMalformed > 0 || s.Diagnostics > 0
}

// PageFetch represents one page request attempt
type PageFetch struct {
	ID         int64  `json:"id"`
	RunID      int64  `json:"run_id"`
	Page       int    `json:"page"`
	Attempt    int    `json:"attempt"`
	Phase      string `json:"phase"`
	Orders     int    `json:"orders"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	FetchedAt  string `json:"fetched_at"`
}

// RowIssue represents a problem with one order during a run
type RowIssue struct {
	ID        int64     `json:"id"`
	RunID     int64     `json:"run_id"`
	OrderName string    `json:"order_name,omitempty"`
	OrderID   int64     `json:"order_id,omitempty"`
	Kind      IssueKind `json:"kind"`
	Stage     string    `json:"stage,omitempty"`
	Message   string    `json:"message"`
	CreatedAt string    `json:"created_at"`
}

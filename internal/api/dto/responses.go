package dto

import "time"

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// RunResponse represents a recorded export run in API responses.
type RunResponse struct {
	ID              int64  `json:"id"`
	JobID           string `json:"job_id,omitempty"`
	Store           string `json:"store"`
	WindowStart     string `json:"window_start"`
	WindowEnd       string `json:"window_end"`
	DateField       string `json:"date_field"`
	StartedAt       string `json:"started_at"`
	CompletedAt     string `json:"completed_at,omitempty"`
	Status          string `json:"status"`
	OrderCount      int    `json:"order_count"`
	PagesPlanned    int    `json:"pages_planned"`
	PagesFailed     int    `json:"pages_failed"`
	OrdersFetched   int    `json:"orders_fetched"`
	OrdersMalformed int    `json:"orders_malformed"`
	RowsExported    int    `json:"rows_exported"`
	Diagnostics     int    `json:"diagnostics"`
	Unreconciled    int    `json:"unreconciled"`
	OutputPath      string `json:"output_path,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
}

// RunListResponse is returned when listing export runs.
type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

// PageFetchResponse represents one page request of a run.
type PageFetchResponse struct {
	Page       int    `json:"page"`
	Attempt    int    `json:"attempt"`
	Phase      string `json:"phase"`
	Orders     int    `json:"orders"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	FetchedAt  string `json:"fetched_at"`
}

// PageFetchListResponse is returned when listing the page requests of a run.
type PageFetchListResponse struct {
	RunID   int64               `json:"run_id"`
	Fetches []PageFetchResponse `json:"fetches"`
	Count   int                 `json:"count"`
}

// IssueResponse represents a flagged order of a run.
type IssueResponse struct {
	OrderName string `json:"order_name,omitempty"`
	OrderID   int64  `json:"order_id,omitempty"`
	Kind      string `json:"kind"`
	Stage     string `json:"stage,omitempty"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
}

// IssueListResponse is returned when listing the issues of a run.
type IssueListResponse struct {
	RunID  int64           `json:"run_id"`
	Issues []IssueResponse `json:"issues"`
	Count  int             `json:"count"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

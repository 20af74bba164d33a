package dto

// StartExportResponse is returned when an export is started.
type StartExportResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// ExportJobResponse represents an export job's status.
type ExportJobResponse struct {
	JobID       string                 `json:"job_id"`
	Status      string                 `json:"status"`
	Start       string                 `json:"start"`
	End         string                 `json:"end"`
	DateField   string                 `json:"date_field"`
	StartedAt   string                 `json:"started_at"`
	CompletedAt *string                `json:"completed_at,omitempty"`
	Progress    ExportProgressResponse `json:"progress"`
	Result      *ExportResultResponse  `json:"result,omitempty"`
	Error       *string                `json:"error,omitempty"`
}

// ExportProgressResponse represents real-time progress.
type ExportProgressResponse struct {
	Stage       string `json:"stage"`
	PagesTotal  int    `json:"pages_total"`
	PagesDone   int    `json:"pages_done"`
	FailedPages int    `json:"failed_pages"`
	Orders      int    `json:"orders"`
	LastUpdate  string `json:"last_update"`
}

// ExportResultResponse represents the final result.
type ExportResultResponse struct {
	RunID           int64    `json:"run_id,omitempty"`
	OrderCount      int      `json:"order_count"`
	PagesPlanned    int      `json:"pages_planned"`
	FailedPages     []int    `json:"failed_pages"`
	OrdersFetched   int      `json:"orders_fetched"`
	OrdersMalformed int      `json:"orders_malformed"`
	Diagnostics     int      `json:"diagnostics"`
	Unreconciled    int      `json:"unreconciled"`
	RowsExported    int      `json:"rows_exported"`
	Columns         []string `json:"columns"`
	FileName        string   `json:"file_name"`
	DurationMs      int64    `json:"duration_ms"`
}

// ExportJobListResponse lists export jobs.
type ExportJobListResponse struct {
	Jobs  []ExportJobResponse `json:"jobs"`
	Count int                 `json:"count"`
}

// MessageResponse is a generic message response.
type MessageResponse struct {
	Message string `json:"message"`
}

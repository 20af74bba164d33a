package dto

// StartExportRequest is the request body for starting an export.
// Dates are YYYY-MM-DD; the window is [start, end).
type StartExportRequest struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	DateField string `json:"date_field,omitempty"` // "created_at" or "updated_at"
}

// RunListParams represents query parameters for listing export runs.
type RunListParams struct {
	Limit int `json:"limit"`
}

// DefaultRunListParams returns default values for run list params.
func DefaultRunListParams() RunListParams {
	return RunListParams{
		Limit: 20,
	}
}

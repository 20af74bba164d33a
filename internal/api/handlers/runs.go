package handlers

import (
	"errors"
	"net/http"

	"github.com/eshaffer321/shopify-compta/internal/api/dto"
	"github.com/eshaffer321/shopify-compta/internal/infrastructure/storage"
)

// RunsHandler serves the run ledger.
type RunsHandler struct {
	*Base
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo storage.Repository) *RunsHandler {
	return &RunsHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/runs - returns recorded export runs, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", dto.DefaultRunListParams().Limit)

	runs, err := h.repo.ListRuns(limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.RunListResponse{
		Runs:  make([]dto.RunResponse, 0, len(runs)),
		Count: len(runs),
	}
	for _, run := range runs {
		response.Runs = append(response.Runs, toRunResponse(run))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/runs/{id} - returns a single run.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid run ID"))
		return
	}

	run, ok := h.lookup(w, id)
	if !ok {
		return
	}

	h.WriteJSON(w, http.StatusOK, toRunResponse(*run))
}

// Pages handles GET /api/runs/{id}/pages - returns every page attempt of a run.
func (h *RunsHandler) Pages(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid run ID"))
		return
	}
	if _, ok := h.lookup(w, id); !ok {
		return
	}

	fetches, err := h.repo.GetPageFetches(id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.PageFetchListResponse{
		RunID:   id,
		Fetches: make([]dto.PageFetchResponse, 0, len(fetches)),
		Count:   len(fetches),
	}
	for _, f := range fetches {
		response.Fetches = append(response.Fetches, dto.PageFetchResponse{
			Page:       f.Page,
			Attempt:    f.Attempt,
			Phase:      f.Phase,
			Orders:     f.Orders,
			Error:      f.Error,
			DurationMs: f.DurationMs,
			FetchedAt:  f.FetchedAt,
		})
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Issues handles GET /api/runs/{id}/issues - returns the orders flagged in a run.
func (h *RunsHandler) Issues(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r, "id")
	if !ok {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid run ID"))
		return
	}
	if _, ok := h.lookup(w, id); !ok {
		return
	}

	issues, err := h.repo.GetIssues(id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.IssueListResponse{
		RunID:  id,
		Issues: make([]dto.IssueResponse, 0, len(issues)),
		Count:  len(issues),
	}
	for _, i := range issues {
		response.Issues = append(response.Issues, dto.IssueResponse{
			OrderName: i.OrderName,
			OrderID:   i.OrderID,
			Kind:      string(i.Kind),
			Stage:     i.Stage,
			Message:   i.Message,
			CreatedAt: i.CreatedAt,
		})
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// lookup loads a run, writing the error response when it cannot.
func (h *RunsHandler) lookup(w http.ResponseWriter, id int64) (*storage.ExportRun, bool) {
	run, err := h.repo.GetRun(id)
	if errors.Is(err, storage.ErrNotFound) {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("export run"))
		return nil, false
	}
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return nil, false
	}
	return run, true
}

// toRunResponse converts a storage ExportRun to an API response.
func toRunResponse(run storage.ExportRun) dto.RunResponse {
	return dto.RunResponse{
		ID:              run.ID,
		JobID:           run.JobID,
		Store:           run.Store,
		WindowStart:     run.WindowStart,
		WindowEnd:       run.WindowEnd,
		DateField:       run.DateField,
		StartedAt:       run.StartedAt,
		CompletedAt:     run.CompletedAt,
		Status:          string(run.Status),
		OrderCount:      run.OrderCount,
		PagesPlanned:    run.PagesPlanned,
		PagesFailed:     run.PagesFailed,
		OrdersFetched:   run.OrdersFetched,
		OrdersMalformed: run.OrdersMalformed,
		RowsExported:    run.RowsExported,
		Diagnostics:     run.Diagnostics,
		Unreconciled:    run.Unreconciled,
		OutputPath:      run.OutputPath,
		ErrorMessage:    run.ErrorMessage,
	}
}

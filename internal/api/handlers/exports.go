package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/shopify-compta/internal/api/dto"
	"github.com/eshaffer321/shopify-compta/internal/application/export"
	"github.com/eshaffer321/shopify-compta/internal/application/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportsHandler handles export job HTTP requests.
type ExportsHandler struct {
	*Base
	exportService *service.ExportService
}

// NewExportsHandler creates a new exports handler.
func NewExportsHandler(exportService *service.ExportService) *ExportsHandler {
	return &ExportsHandler{
		Base:          &Base{},
		exportService: exportService,
	}
}

// Start handles POST /api/exports - starts a new export job.
func (h *ExportsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req dto.StartExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	start, err := time.Parse(export.DateLayout, req.Start)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("start must be YYYY-MM-DD"))
		return
	}
	end, err := time.Parse(export.DateLayout, req.End)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("end must be YYYY-MM-DD"))
		return
	}

	jobID, err := h.exportService.StartExport(r.Context(), service.ExportRequest{
		Start:     start,
		End:       end,
		DateField: req.DateField,
	})
	switch {
	case errors.Is(err, export.ErrInvalidWindow):
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	case errors.Is(err, service.ErrExportRunning):
		h.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
		return
	case err != nil:
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusAccepted, dto.StartExportResponse{
		JobID:  jobID,
		Status: string(service.StatusPending),
	})
}

// Get handles GET /api/exports/{jobId} - gets export job status.
func (h *ExportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.WriteJSON(w, http.StatusOK, toExportJobResponse(job))
}

// ListActive handles GET /api/exports/active - lists running jobs.
func (h *ExportsHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	h.writeJobs(w, h.exportService.ListActiveExportJobs())
}

// List handles GET /api/exports - lists every job still in memory.
func (h *ExportsHandler) List(w http.ResponseWriter, r *http.Request) {
	h.writeJobs(w, h.exportService.ListAllExportJobs())
}

// Cancel handles DELETE /api/exports/{jobId} - cancels an export job.
func (h *ExportsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	err := h.exportService.CancelExport(jobID)
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("export job"))
		return
	case err != nil:
		h.WriteError(w, http.StatusConflict, dto.APIError{
			Code:    "cancel_failed",
			Message: err.Error(),
		})
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.MessageResponse{
		Message: "Export job cancelled successfully",
	})
}

// Download handles GET /api/exports/{jobId}/download - streams the spreadsheet
// of a completed job.
func (h *ExportsHandler) Download(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if job.Status != service.StatusCompleted || job.Result == nil || job.Result.OutputPath == "" {
		h.WriteError(w, http.StatusConflict, dto.NewAPIError(dto.ErrCodeNotReady,
			fmt.Sprintf("export job is %s", job.Status)))
		return
	}

	f, err := os.Open(job.Result.OutputPath)
	if errors.Is(err, os.ErrNotExist) {
		h.WriteError(w, http.StatusGone, dto.NewAPIError(dto.ErrCodeUnavailable, "export file no longer exists"))
		return
	}
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	name := filepath.Base(job.Result.OutputPath)
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (h *ExportsHandler) lookup(w http.ResponseWriter, r *http.Request) (*service.ExportJob, bool) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("job ID is required"))
		return nil, false
	}

	job, err := h.exportService.GetExportJob(jobID)
	if err != nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("export job"))
		return nil, false
	}
	return job, true
}

func (h *ExportsHandler) writeJobs(w http.ResponseWriter, jobs []*service.ExportJob) {
	response := dto.ExportJobListResponse{
		Jobs:  make([]dto.ExportJobResponse, 0, len(jobs)),
		Count: len(jobs),
	}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, toExportJobResponse(job))
	}
	h.WriteJSON(w, http.StatusOK, response)
}

// toExportJobResponse converts a service model to an API response.
func toExportJobResponse(job *service.ExportJob) dto.ExportJobResponse {
	response := dto.ExportJobResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		Start:     job.Request.Start.Format(export.DateLayout),
		End:       job.Request.End.Format(export.DateLayout),
		DateField: job.Request.DateField,
		StartedAt: job.StartedAt.Format(time.RFC3339),
		Progress: dto.ExportProgressResponse{
			Stage:       job.Progress.Stage,
			PagesTotal:  job.Progress.PagesTotal,
			PagesDone:   job.Progress.PagesDone,
			FailedPages: job.Progress.FailedPages,
			Orders:      job.Progress.Orders,
			LastUpdate:  job.Progress.LastUpdate.Format(time.RFC3339),
		},
	}

	if job.CompletedAt != nil {
		completedAt := job.CompletedAt.Format(time.RFC3339)
		response.CompletedAt = &completedAt
	}

	if res := job.Result; res != nil {
		failed := make([]int, 0, len(res.PageFailures))
		for _, f := range res.PageFailures {
			failed = append(failed, f.Page)
		}
		response.Result = &dto.ExportResultResponse{
			RunID:           res.RunID,
			OrderCount:      res.OrderCount,
			PagesPlanned:    res.PagesPlanned,
			FailedPages:     failed,
			OrdersFetched:   res.OrdersFetched,
			OrdersMalformed: res.OrdersMalformed,
			Diagnostics:     res.Diagnostics,
			Unreconciled:    res.Unreconciled,
			RowsExported:    res.RowsExported,
			Columns:         res.Columns,
			FileName:        filepath.Base(res.OutputPath),
			DurationMs:      res.Duration.Milliseconds(),
		}
	}

	if job.Error != nil {
		errMsg := job.Error.Error()
		response.Error = &errMsg
	}

	return response
}

package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/shopify-compta/internal/api/dto"
	"github.com/eshaffer321/shopify-compta/internal/api/handlers"
	"github.com/eshaffer321/shopify-compta/internal/infrastructure/storage"
)

func runsRouter(repo storage.Repository) http.Handler {
	h := handlers.NewRunsHandler(repo)
	r := chi.NewRouter()
	r.Get("/api/runs", h.List)
	r.Get("/api/runs/{id}", h.Get)
	r.Get("/api/runs/{id}/pages", h.Pages)
	r.Get("/api/runs/{id}/issues", h.Issues)
	return r
}

func seedRun(t *testing.T, repo *storage.MockRepository, start string) int64 {
	t.Helper()
	id, err := repo.StartRun(&storage.ExportRun{
		Store:       "shop.example.com",
		WindowStart: start,
		WindowEnd:   "2024-04-01",
		DateField:   "created_at",
	})
	require.NoError(t, err)
	return id
}

func TestRunsHandler_List(t *testing.T) {
	t.Run("returns empty list when no runs", func(t *testing.T) {
		repo := storage.NewMockRepository()

		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		rec := httptest.NewRecorder()

		runsRouter(repo).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RunListResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)

		assert.Empty(t, response.Runs)
		assert.Equal(t, 0, response.Count)
	})

	t.Run("returns runs newest first", func(t *testing.T) {
		repo := storage.NewMockRepository()

		first := seedRun(t, repo, "2024-02-01")
		require.NoError(t, repo.CompleteRun(first, storage.RunSummary{OrdersFetched: 10, RowsExported: 10}))

		second := seedRun(t, repo, "2024-03-01")
		require.NoError(t, repo.CompleteRun(second, storage.RunSummary{OrdersFetched: 5, OrdersMalformed: 1, RowsExported: 4}))

		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		rec := httptest.NewRecorder()

		runsRouter(repo).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RunListResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)

		require.Equal(t, 2, response.Count)
		assert.Equal(t, second, response.Runs[0].ID)
		assert.Equal(t, "completed_with_errors", response.Runs[0].Status)
		assert.Equal(t, "completed", response.Runs[1].Status)
	})

	t.Run("respects limit", func(t *testing.T) {
		repo := storage.NewMockRepository()
		for i := 0; i < 3; i++ {
			seedRun(t, repo, "2024-03-01")
		}

		req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=2", nil)
		rec := httptest.NewRecorder()

		runsRouter(repo).ServeHTTP(rec, req)

		var response dto.RunListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, 2, response.Count)
	})
}

func TestRunsHandler_Get(t *testing.T) {
	t.Run("returns run by ID", func(t *testing.T) {
		repo := storage.NewMockRepository()
		id := seedRun(t, repo, "2024-03-01")
		require.NoError(t, repo.SetPlan(id, 251, 2))

		req := httptest.NewRequest(http.MethodGet, "/api/runs/1", nil)
		rec := httptest.NewRecorder()

		runsRouter(repo).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RunResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, id, response.ID)
		assert.Equal(t, "running", response.Status)
		assert.Equal(t, 251, response.OrderCount)
		assert.Equal(t, 2, response.PagesPlanned)
		assert.Equal(t, "2024-03-01", response.WindowStart)
	})

	t.Run("returns 404 for unknown run", func(t *testing.T) {
		rec := httptest.NewRecorder()
		runsRouter(storage.NewMockRepository()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/99", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)

		var apiErr dto.APIError
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
		assert.Equal(t, dto.ErrCodeNotFound, apiErr.Code)
	})

	t.Run("returns 400 for invalid ID", func(t *testing.T) {
		rec := httptest.NewRecorder()
		runsRouter(storage.NewMockRepository()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/abc", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRunsHandler_PagesAndIssues(t *testing.T) {
	repo := storage.NewMockRepository()
	id := seedRun(t, repo, "2024-03-01")
	require.NoError(t, repo.LogPageFetch(&storage.PageFetch{RunID: id, Page: 1, Attempt: 1, Phase: "primary", Error: "timeout"}))
	require.NoError(t, repo.LogPageFetch(&storage.PageFetch{RunID: id, Page: 1, Attempt: 2, Phase: "retry", Orders: 250}))
	require.NoError(t, repo.LogIssue(&storage.RowIssue{RunID: id, OrderName: "#1003", Kind: storage.IssueDiagnostic, Stage: "summary", Message: "missing sku"}))

	t.Run("pages", func(t *testing.T) {
		rec := httptest.NewRecorder()
		runsRouter(repo).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/1/pages", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var response dto.PageFetchListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		require.Equal(t, 2, response.Count)
		assert.Equal(t, "timeout", response.Fetches[0].Error)
		assert.Equal(t, "retry", response.Fetches[1].Phase)
		assert.Equal(t, 250, response.Fetches[1].Orders)
	})

	t.Run("issues", func(t *testing.T) {
		rec := httptest.NewRecorder()
		runsRouter(repo).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/1/issues", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var response dto.IssueListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		require.Equal(t, 1, response.Count)
		assert.Equal(t, "#1003", response.Issues[0].OrderName)
		assert.Equal(t, "diagnostic", response.Issues[0].Kind)
	})

	t.Run("unknown run", func(t *testing.T) {
		rec := httptest.NewRecorder()
		runsRouter(repo).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/7/pages", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

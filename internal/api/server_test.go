package api_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/shopify-compta/internal/api"
	"github.com/eshaffer321/shopify-compta/internal/api/dto"
	"github.com/eshaffer321/shopify-compta/internal/infrastructure/metrics"
	"github.com/eshaffer321/shopify-compta/internal/infrastructure/storage"
)

func newTestServer(t *testing.T) (*api.Server, *storage.MockRepository, *metrics.Registry) {
	t.Helper()
	repo := storage.NewMockRepository()
	reg := metrics.NewRegistry()
	logger := slog.New(slog.DiscardHandler)
	server := api.NewServer(api.DefaultConfig(), repo, nil, reg, logger) // nil exportService for read-only tests
	return server, repo, reg
}

func TestServer_HealthEndpoint(t *testing.T) {
	server, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response dto.HealthResponse
	err := json.NewDecoder(rec.Body).Decode(&response)
	require.NoError(t, err)
	assert.Equal(t, "ok", response.Status)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	server, _, reg := newTestServer(t)
	reg.Malformed()

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "compta_orders_malformed_total 1")
}

func TestServer_RunsEndpoints(t *testing.T) {
	server, repo, _ := newTestServer(t)
	id, err := repo.StartRun(&storage.ExportRun{Store: "shop.example.com", WindowStart: "2024-03-01", WindowEnd: "2024-04-01"})
	require.NoError(t, err)
	require.NoError(t, repo.CompleteRun(id, storage.RunSummary{RowsExported: 12}))

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list dto.RunListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, 12, list.Runs[0].RowsExported)

	rec = httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/1/pages", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ExportRoutesAbsentWithoutService(t *testing.T) {
	server, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/exports", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CORS(t *testing.T) {
	server, _, _ := newTestServer(t)

	t.Run("allowed origin gets headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()

		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/runs", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		rec := httptest.NewRecorder()

		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
	})
}

func TestServer_ShutdownWithoutStart(t *testing.T) {
	server, _, _ := newTestServer(t)
	assert.NoError(t, server.Shutdown(t.Context()))
}

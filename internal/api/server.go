package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/eshaffer321/shopify-compta/internal/api/handlers"
	"github.com/eshaffer321/shopify-compta/internal/api/middleware"
	"github.com/eshaffer321/shopify-compta/internal/application/service"
	"github.com/eshaffer321/shopify-compta/internal/infrastructure/metrics"
	"github.com/eshaffer321/shopify-compta/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Server is the HTTP API server.
type Server struct {
	config        Config
	router        chi.Router
	httpServer    *http.Server
	logger        *slog.Logger
	repo          storage.Repository
	exportService *service.ExportService
	metrics       *metrics.Registry
}

// NewServer creates a new API server.
// A nil repo disables the run endpoints, a nil exportService the export
// endpoints and a nil registry the /metrics endpoint.
func NewServer(cfg Config, repo storage.Repository, exportService *service.ExportService, reg *metrics.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:        cfg,
		router:        chi.NewRouter(),
		logger:        logger,
		repo:          repo,
		exportService: exportService,
		metrics:       reg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.Recoverer)

	// CORS
	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = s.config.AllowedOrigins
	s.router.Use(middleware.CORS(corsConfig))

	// Request logging
	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	healthHandler := handlers.NewHealthHandler()
	s.router.Get("/health", healthHandler.ServeHTTP)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		// Recorded runs
		if s.repo != nil {
			runsHandler := handlers.NewRunsHandler(s.repo)
			r.Get("/runs", runsHandler.List)
			r.Get("/runs/{id}", runsHandler.Get)
			r.Get("/runs/{id}/pages", runsHandler.Pages)
			r.Get("/runs/{id}/issues", runsHandler.Issues)
		}

		// Export jobs
		if s.exportService != nil {
			exportsHandler := handlers.NewExportsHandler(s.exportService)
			r.Post("/exports", exportsHandler.Start)
			r.Get("/exports", exportsHandler.List)
			r.Get("/exports/active", exportsHandler.ListActive)
			r.Get("/exports/{jobId}", exportsHandler.Get)
			r.Delete("/exports/{jobId}", exportsHandler.Cancel)
			r.Get("/exports/{jobId}/download", exportsHandler.Download)
		}
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

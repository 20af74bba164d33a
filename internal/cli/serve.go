package cli

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eshaffer321/shopify-compta/internal/api"
	"github.com/eshaffer321/shopify-compta/internal/application/export"
	"github.com/eshaffer321/shopify-compta/internal/application/service"
	"github.com/eshaffer321/shopify-compta/internal/infrastructure/config"
	"github.com/eshaffer321/shopify-compta/internal/infrastructure/logging"
	"github.com/eshaffer321/shopify-compta/internal/infrastructure/metrics"
	"github.com/eshaffer321/shopify-compta/internal/infrastructure/storage"
)

// DefaultLedgerPath is the run ledger used by the API server when none is configured.
const DefaultLedgerPath = "compta_runs.db"

// ServeFlags holds the CLI flags for the serve command.
type ServeFlags struct {
	Port       int
	ConfigPath string
	Verbose    bool
}

// ParseServeFlags parses command line flags for the serve command.
func ParseServeFlags(args []string, output io.Writer) (*ServeFlags, error) {
	flags := &ServeFlags{}
	fs := flag.NewFlagSet("compta-api", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.IntVar(&flags.Port, "port", 0, "Port to listen on (default from config)")
	fs.StringVar(&flags.ConfigPath, "config", "", "Configuration file path")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}

// RunServe runs the API server until SIGINT or SIGTERM.
func RunServe(cfg *config.Config, flags *ServeFlags) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	loggingCfg := cfg.Observability.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithSystem(loggingCfg, "api")

	dbPath := cfg.Storage.DatabasePath
	if dbPath == "" {
		dbPath = DefaultLedgerPath
	}
	store, err := storage.NewStorage(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	client, err := NewShopifyClient(cfg, logger)
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry()
	exporter := export.NewExporter(client, store, reg, logging.NewLoggerWithSystem(loggingCfg, "export"))

	exportService, err := service.NewExportService(cfg, exporter, logger)
	if err != nil {
		return err
	}
	exportService.StartBackgroundCleanup(5 * time.Minute)
	defer exportService.StopBackgroundCleanup()

	apiCfg := api.Config{
		Port:           cfg.API.Port,
		AllowedOrigins: cfg.API.AllowedOrigins,
	}
	if flags.Port > 0 {
		apiCfg.Port = flags.Port
	}

	server := api.NewServer(apiCfg, store, exportService, reg, logger)

	// Handle graceful shutdown
	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	go func() {
		<-quit
		logger.Info("received shutdown signal")

		for _, job := range exportService.ListActiveExportJobs() {
			_ = exportService.CancelExport(job.ID)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(); err != nil {
		return err
	}

	<-done
	logger.Info("server stopped")
	return nil
}

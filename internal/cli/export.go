package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/eshaffer321/shopify-compta/internal/application/export"
	"github.com/eshaffer321/shopify-compta/internal/infrastructure/config"
	"github.com/eshaffer321/shopify-compta/internal/infrastructure/logging"
	"github.com/eshaffer321/shopify-compta/internal/infrastructure/metrics"
	"github.com/eshaffer321/shopify-compta/internal/infrastructure/storage"
)

// RunExport runs one export from the command line and prints its summary to out.
func RunExport(ctx context.Context, cfg *config.Config, flags *ExportFlags, out io.Writer) (*export.Result, error) {
	flags.ApplyTo(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	window, err := flags.Window(cfg.Export.DateField)
	if err != nil {
		return nil, err
	}
	backoff, err := cfg.Export.Backoff()
	if err != nil {
		return nil, err
	}

	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "export")

	var repo storage.Repository
	if cfg.Storage.DatabasePath != "" {
		store, err := storage.NewStorage(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("open run ledger: %w", err)
		}
		defer func() { _ = store.Close() }()
		repo = store
	}

	client, err := NewShopifyClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	PrintHeader(out, cfg.Shopify.Store, window)

	opts := export.Options{
		Window:       window,
		OutputDir:    cfg.Export.OutputDir,
		RetryBackoff: backoff,
		Store:        cfg.Shopify.Store,
	}
	if !flags.NoProgress && isTerminal(os.Stderr) {
		opts.Progress = NewProgressBar(os.Stderr)
	}

	exporter := export.NewExporter(client, repo, metrics.NewRegistry(), logger)
	result, err := exporter.Run(ctx, opts)
	if err != nil {
		return result, err
	}

	PrintSummary(out, result)
	return result, nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

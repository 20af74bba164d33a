package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/eshaffer321/shopify-compta/internal/adapters/spreadsheet"
	"github.com/eshaffer321/shopify-compta/internal/domain/orders"
	"github.com/eshaffer321/shopify-compta/internal/domain/table"
	"github.com/eshaffer321/shopify-compta/internal/domain/taxes"
	"github.com/eshaffer321/shopify-compta/internal/domain/validator"
	"github.com/eshaffer321/shopify-compta/internal/infrastructure/metrics"
	"github.com/eshaffer321/shopify-compta/internal/infrastructure/storage"
)

// Exporter runs the export process
type Exporter struct {
	source  OrderSource
	storage storage.Repository
	metrics *metrics.Registry
	logger  *slog.Logger
	sleep   func(context.Context, time.Duration) error
}

// NewExporter creates a new exporter. repo and m may be nil.
func NewExporter(source OrderSource, repo storage.Repository, m *metrics.Registry, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Exporter{
		source:  source,
		storage: repo,
		metrics: m,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// Run exports the orders of opts.Window to an .xlsx file.
//
// Only a failed order count, a cancelled context or a write error fail the
// run. Dropped pages, malformed orders, failed derivation passes and rows
// that do not reconcile are logged, recorded and counted in the Result.
func (e *Exporter) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Window.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	progress := opts.Progress
	if progress == nil {
		progress = noProgress{}
	}

	result := &Result{Errors: make([]error, 0)}
	result.RunID = e.startRun(opts)

	e.logger.Info("Starting export",
		"run_id", result.RunID,
		"start", opts.Window.StartLabel(),
		"end", opts.Window.EndLabel(),
		"date_field", opts.Window.DateField,
	)

	// 1. Fetch every page
	backoff := opts.RetryBackoff
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	fetcher := NewFetcher(e.source,
		WithBackoff(backoff),
		WithSleep(e.sleep),
		WithFetchLogger(e.logger.With("component", "fetch")),
		WithFetchMetrics(e.metrics),
		WithAttemptHook(func(a PageAttempt) { e.recordAttempt(result.RunID, a) }),
	)

	fetched, err := fetcher.Fetch(ctx, opts.Window.Query(), progress)
	if err != nil {
		e.failRun(result.RunID, err, time.Since(start))
		return nil, err
	}
	result.OrderCount = fetched.Count
	result.PagesPlanned = fetched.Pages
	result.PageFailures = fetched.Failures
	result.OrdersFetched = len(fetched.Orders)
	for _, f := range fetched.Failures {
		result.Errors = append(result.Errors, f)
	}
	e.recordPlan(result.RunID, fetched.Count, fetched.Pages)

	// 2. Normalize, derive and reconcile each order
	progress.OnProgress(ProgressEvent{Stage: StageDeriving, PagesDone: fetched.Pages - len(fetched.Failures), PagesTotal: fetched.Pages})
	derived := make([]taxes.Row, 0, len(fetched.Orders))
	for _, raw := range fetched.Orders {
		if err := ctx.Err(); err != nil {
			e.failRun(result.RunID, err, time.Since(start))
			return nil, err
		}

		row, err := orders.Normalize(raw)
		if err != nil {
			result.OrdersMalformed++
			result.Errors = append(result.Errors, err)
			e.metrics.Malformed()
			e.logger.Warn("Dropping malformed order", "error", err)
			e.recordMalformed(result.RunID, err)
			continue
		}

		res := taxes.Derive(row)
		for _, d := range res.Diagnostics {
			result.Diagnostics++
			result.Errors = append(result.Errors, d)
			e.metrics.Diagnostic(string(d.Pass))
			e.logger.Warn("Derivation pass failed",
				"order", d.OrderName,
				"pass", d.Pass,
				"error", d.Err,
			)
			e.recordDiagnostic(result.RunID, row.ID, d)
		}

		check := validator.Reconcile(&res.Row, opts.Tolerance)
		if !check.Valid && !check.Skipped {
			result.Unreconciled++
			e.metrics.NotReconciled()
			e.logger.Warn("Order does not reconcile",
				"order", row.Name,
				"components", check.ComponentsSum,
				"total_price", check.TotalPrice,
				"difference", check.Difference,
			)
			e.recordUnreconciled(result.RunID, row, check)
		}

		derived = append(derived, res.Row)
	}

	// 3. Assemble the table
	assembly := table.Assemble(derived)
	result.Unnamed = assembly.Unnamed
	result.Duplicates = assembly.Duplicates
	result.RowsExported = len(assembly.Table.Rows)
	result.Columns = assembly.Table.Columns
	for _, d := range assembly.Diagnostics {
		result.Diagnostics++
		result.Errors = append(result.Errors, d)
		e.logger.Warn("Could not coerce cell", "order", d.OrderName, "column", d.Column, "error", d.Err)
		e.recordCoercion(result.RunID, d)
	}
	if assembly.Duplicates > 0 || assembly.Unnamed > 0 {
		e.logger.Info("Filtered rows", "duplicates", assembly.Duplicates, "unnamed", assembly.Unnamed)
	}

	// 4. Write the spreadsheet
	progress.OnProgress(ProgressEvent{Stage: StageWriting, PagesDone: fetched.Pages - len(fetched.Failures), PagesTotal: fetched.Pages})
	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, spreadsheet.FileName(opts.Window.StartLabel(), opts.Window.EndLabel()))
	if err := spreadsheet.WriteXLSX(path, assembly.Table); err != nil {
		err = fmt.Errorf("write spreadsheet: %w", err)
		e.failRun(result.RunID, err, time.Since(start))
		return nil, err
	}
	result.OutputPath = path
	result.Duration = time.Since(start)

	e.completeRun(result)
	progress.OnProgress(ProgressEvent{Stage: StageCompleted, PagesDone: fetched.Pages - len(fetched.Failures), PagesTotal: fetched.Pages})

	e.logger.Info("Export complete",
		"rows", result.RowsExported,
		"fetched", result.OrdersFetched,
		"malformed", result.OrdersMalformed,
		"diagnostics", result.Diagnostics,
		"unreconciled", result.Unreconciled,
		"failed_pages", len(result.PageFailures),
		"output", result.OutputPath,
		"duration", result.Duration.Round(time.Millisecond),
	)

	return result, nil
}

func runStatusFor(err error) storage.RunStatus {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return storage.RunStatusCancelled
	}
	return storage.RunStatusFailed
}

package export

import (
	"errors"
	"time"

	"github.com/eshaffer321/shopify-compta/internal/domain/orders"
	"github.com/eshaffer321/shopify-compta/internal/domain/table"
	"github.com/eshaffer321/shopify-compta/internal/domain/taxes"
	"github.com/eshaffer321/shopify-compta/internal/domain/validator"
	"github.com/eshaffer321/shopify-compta/internal/infrastructure/storage"
)

// Recording and audit trail functions for the exporter.
// These persist run metadata to the ledger; a ledger error is logged and
// never fails the export.

// startRun records the start of a run, returning 0 without a ledger
func (e *Exporter) startRun(opts Options) int64 {
	if e.storage == nil {
		return 0
	}
	id, err := e.storage.StartRun(&storage.ExportRun{
		JobID:       opts.JobID,
		Store:       opts.Store,
		WindowStart: opts.Window.StartLabel(),
		WindowEnd:   opts.Window.EndLabel(),
		DateField:   opts.Window.DateField,
	})
	if err != nil {
		e.logger.Error("Failed to record run start", "error", err)
		return 0
	}
	return id
}

func (e *Exporter) recordPlan(runID int64, count, pages int) {
	if e.storage == nil || runID == 0 {
		return
	}
	if err := e.storage.SetPlan(runID, count, pages); err != nil {
		e.logger.Error("Failed to record run plan", "run_id", runID, "error", err)
	}
}

// recordAttempt records one page attempt
func (e *Exporter) recordAttempt(runID int64, a PageAttempt) {
	if e.storage == nil || runID == 0 {
		return
	}
	fetch := &storage.PageFetch{
		RunID:      runID,
		Page:       a.Page,
		Attempt:    a.Attempt,
		Phase:      string(a.Phase),
		Orders:     a.Orders,
		DurationMs: a.Duration.Milliseconds(),
	}
	if a.Err != nil {
		fetch.Error = a.Err.Error()
	}
	if err := e.storage.LogPageFetch(fetch); err != nil {
		e.logger.Error("Failed to record page attempt", "page", a.Page, "error", err)
	}
}

func (e *Exporter) recordIssue(issue *storage.RowIssue) {
	if e.storage == nil || issue.RunID == 0 {
		return
	}
	if err := e.storage.LogIssue(issue); err != nil {
		e.logger.Error("Failed to record issue", "order", issue.OrderName, "error", err)
	}
}

// recordMalformed records an order dropped by the normalizer
func (e *Exporter) recordMalformed(runID int64, err error) {
	issue := &storage.RowIssue{
		RunID:   runID,
		Kind:    storage.IssueMalformed,
		Stage:   "normalize",
		Message: err.Error(),
	}
	var nerr *orders.NormalizeError
	if errors.As(err, &nerr) {
		issue.OrderID = nerr.ID
		issue.OrderName = nerr.Name
	}
	e.recordIssue(issue)
}

// recordDiagnostic records a failed derivation pass
func (e *Exporter) recordDiagnostic(runID, orderID int64, d taxes.Diagnostic) {
	e.recordIssue(&storage.RowIssue{
		RunID:     runID,
		OrderID:   orderID,
		OrderName: d.OrderName,
		Kind:      storage.IssueDiagnostic,
		Stage:     string(d.Pass),
		Message:   d.Err.Error(),
	})
}

// recordUnreconciled records a row whose breakdown does not add up
func (e *Exporter) recordUnreconciled(runID int64, row orders.Row, check *validator.Reconciliation) {
	e.recordIssue(&storage.RowIssue{
		RunID:     runID,
		OrderID:   row.ID,
		OrderName: row.Name,
		Kind:      storage.IssueUnreconciled,
		Stage:     "reconcile",
		Message:   check.Reason,
	})
}

// recordCoercion records a total that could not be made numeric
func (e *Exporter) recordCoercion(runID int64, d table.Diagnostic) {
	e.recordIssue(&storage.RowIssue{
		RunID:     runID,
		OrderName: d.OrderName,
		Kind:      storage.IssueCoercion,
		Stage:     d.Column,
		Message:   d.Err.Error(),
	})
}

// completeRun records the counts of a finished run
func (e *Exporter) completeRun(result *Result) {
	summary := storage.RunSummary{
		PagesFailed:     len(result.PageFailures),
		OrdersFetched:   result.OrdersFetched,
		OrdersMalformed: result.OrdersMalformed,
		RowsExported:    result.RowsExported,
		Diagnostics:     result.Diagnostics,
		Unreconciled:    result.Unreconciled,
		OutputPath:      result.OutputPath,
	}

	status := storage.RunStatusCompleted
	if summary.HasErrors() {
		status = storage.RunStatusCompletedWithErrors
	}
	e.metrics.RunFinished(string(status), result.RowsExported, result.Duration)

	if e.storage == nil || result.RunID == 0 {
		return
	}
	if err := e.storage.CompleteRun(result.RunID, summary); err != nil {
		e.logger.Error("Failed to record run completion", "run_id", result.RunID, "error", err)
	}
}

// failRun records a run that stopped early
func (e *Exporter) failRun(runID int64, cause error, took time.Duration) {
	status := runStatusFor(cause)
	e.metrics.RunFinished(string(status), 0, took)
	e.logger.Error("Export failed", "run_id", runID, "status", status, "error", cause)

	if e.storage == nil || runID == 0 {
		return
	}
	if err := e.storage.FailRun(runID, status, cause.Error()); err != nil {
		e.logger.Error("Failed to record run failure", "run_id", runID, "error", err)
	}
}

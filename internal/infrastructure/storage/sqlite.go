package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Storage provides SQLite database access for the run ledger.
// It implements the Repository interface.
type Storage struct {
	db      *sql.DB
	version int64
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage opens (or creates) the ledger at dbPath and migrates it.
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// one connection keeps pragmas and writes on the same handle
	db.SetMaxOpenConns(1)

	version, err := migrate(context.Background(), db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Storage{db: db, version: version}, nil
}

// SchemaVersion is the migration version the ledger is at.
func (s *Storage) SchemaVersion() int64 {
	return s.version
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// StartRun records the start of an export run
func (s *Storage) StartRun(run *ExportRun) (int64, error) {
	query := `
		INSERT INTO export_runs (job_id, store, window_start, window_end, date_field, status)
		VALUES (?, ?, ?, ?, ?, 'running')
	`

	result, err := s.db.Exec(query, run.JobID, run.Store, run.WindowStart, run.WindowEnd, run.DateField)
	if err != nil {
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	run.ID = id
	run.Status = RunStatusRunning
	return id, nil
}

// SetPlan records the order count and planned pages of a run
func (s *Storage) SetPlan(runID int64, orderCount, pages int) error {
	_, err := s.db.Exec(`UPDATE export_runs SET order_count = ?, pages_planned = ? WHERE id = ?`,
		orderCount, pages, runID)
	return err
}

// CompleteRun records the completion of an export run
func (s *Storage) CompleteRun(runID int64, summary RunSummary) error {
	status := RunStatusCompleted
	if summary.HasErrors() {
		status = RunStatusCompletedWithErrors
	}

	query := `
		UPDATE export_runs
		SET completed_at = CURRENT_TIMESTAMP,
		    status = ?,
		    pages_failed = ?,
		    orders_fetched = ?,
		    orders_malformed = ?,
		    rows_exported = ?,
		    diagnostics = ?,
		    unreconciled = ?,
		    output_path = ?
		WHERE id = ?
	`

	_, err := s.db.Exec(query,
		status,
		summary.PagesFailed,
		summary.OrdersFetched,
		summary.OrdersMalformed,
		summary.RowsExported,
		summary.Diagnostics,
		summary.Unreconciled,
		summary.OutputPath,
		runID,
	)
	return err
}

// FailRun marks a run as failed or cancelled
func (s *Storage) FailRun(runID int64, status RunStatus, message string) error {
	if status != RunStatusFailed && status != RunStatusCancelled {
		return fmt.Errorf("invalid terminal status %q", status)
	}
	_, err := s.db.Exec(`
		UPDATE export_runs
		SET completed_at = CURRENT_TIMESTAMP, status = ?, error_message = ?
		WHERE id = ?
	`, status, message, runID)
	return err
}

const runColumns = `
	id, job_id, store, window_start, window_end, date_field, started_at, completed_at,
	status, order_count, pages_planned, pages_failed, orders_fetched, orders_malformed,
	rows_exported, diagnostics, unreconciled, output_path, error_message`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc rowScanner) (*ExportRun, error) {
	var run ExportRun
	var startedAt, completedAt sql.NullString
	err := sc.Scan(
		&run.ID,
		&run.JobID,
		&run.Store,
		&run.WindowStart,
		&run.WindowEnd,
		&run.DateField,
		&startedAt,
		&completedAt,
		&run.Status,
		&run.OrderCount,
		&run.PagesPlanned,
		&run.PagesFailed,
		&run.OrdersFetched,
		&run.OrdersMalformed,
		&run.RowsExported,
		&run.Diagnostics,
		&run.Unreconciled,
		&run.OutputPath,
		&run.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	run.StartedAt = startedAt.String
	run.CompletedAt = completedAt.String
	return &run, nil
}

// GetRun retrieves a run by ID
func (s *Storage) GetRun(runID int64) (*ExportRun, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM export_runs WHERE id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", runID, ErrNotFound)
	}
	return run, err
}

// ListRuns returns recent runs, newest first
func (s *Storage) ListRuns(limit int) ([]ExportRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`SELECT `+runColumns+` FROM export_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	runs := make([]ExportRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// LogPageFetch records one page attempt
func (s *Storage) LogPageFetch(fetch *PageFetch) error {
	query := `
		INSERT INTO page_fetches (run_id, page, attempt, phase, orders, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		fetch.RunID,
		fetch.Page,
		fetch.Attempt,
		fetch.Phase,
		fetch.Orders,
		fetch.Error,
		fetch.DurationMs,
	)
	if err != nil {
		return err
	}
	fetch.ID, err = result.LastInsertId()
	return err
}

// GetPageFetches returns every page attempt of a run
func (s *Storage) GetPageFetches(runID int64) ([]PageFetch, error) {
	query := `
		SELECT id, run_id, page, attempt, phase, orders, error, duration_ms, fetched_at
		FROM page_fetches
		WHERE run_id = ?
		ORDER BY id ASC
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	fetches := make([]PageFetch, 0)
	for rows.Next() {
		var f PageFetch
		var fetchedAt sql.NullString
		err := rows.Scan(
			&f.ID,
			&f.RunID,
			&f.Page,
			&f.Attempt,
			&f.Phase,
			&f.Orders,
			&f.Error,
			&f.DurationMs,
			&fetchedAt,
		)
		if err != nil {
			return nil, err
		}
		f.FetchedAt = fetchedAt.String
		fetches = append(fetches, f)
	}

	return fetches, rows.Err()
}

// LogIssue records one problem order
func (s *Storage) LogIssue(issue *RowIssue) error {
	query := `
		INSERT INTO row_issues (run_id, order_name, order_id, kind, stage, message)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		issue.RunID,
		issue.OrderName,
		issue.OrderID,
		issue.Kind,
		issue.Stage,
		issue.Message,
	)
	if err != nil {
		return err
	}
	issue.ID, err = result.LastInsertId()
	return err
}

// GetIssues returns the issues of a run
func (s *Storage) GetIssues(runID int64) ([]RowIssue, error) {
	query := `
		SELECT id, run_id, order_name, order_id, kind, stage, message, created_at
		FROM row_issues
		WHERE run_id = ?
		ORDER BY id ASC
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	issues := make([]RowIssue, 0)
	for rows.Next() {
		var issue RowIssue
		var createdAt sql.NullString
		err := rows.Scan(
			&issue.ID,
			&issue.RunID,
			&issue.OrderName,
			&issue.OrderID,
			&issue.Kind,
			&issue.Stage,
			&issue.Message,
			&createdAt,
		)
		if err != nil {
			return nil, err
		}
		issue.CreatedAt = createdAt.String
		issues = append(issues, issue)
	}

	return issues, rows.Err()
}

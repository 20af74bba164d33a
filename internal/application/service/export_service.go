package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/shopify-compta/internal/application/export"
	"github.com/eshaffer321/shopify-compta/internal/infrastructure/config"
)

// JobStatus represents the current state of an export job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Job staleness thresholds
const (
	// DefaultJobStaleThreshold is how long a job can go without progress updates
	// before being considered stale. A page fetch reports progress, so a job
	// that is silent this long is hung.
	DefaultJobStaleThreshold = 15 * time.Minute

	// DefaultJobMaxDuration is the maximum time a job can run before being
	// forcefully marked as failed.
	DefaultJobMaxDuration = 2 * time.Hour

	// DefaultJobRetention is how long finished jobs stay queryable.
	DefaultJobRetention = 24 * time.Hour
)

var (
	// ErrJobNotFound is returned for unknown job IDs.
	ErrJobNotFound = errors.New("job not found")

	// ErrExportRunning is returned when the store already has a job in flight.
	ErrExportRunning = errors.New("export already running")

	// ErrJobFinished is returned when cancelling a job that already ended.
	ErrJobFinished = errors.New("job already finished")

	// ErrNilConfig is returned by NewExportService without a config.
	ErrNilConfig = errors.New("export service requires a config")
)

// Runner runs one export. *export.Exporter satisfies it.
type Runner interface {
	Run(ctx context.Context, opts export.Options) (*export.Result, error)
}

// ExportRequest holds parameters for starting an export.
type ExportRequest struct {
	Start     time.Time
	End       time.Time
	DateField string // defaults to the configured field
}

// ExportProgress holds real-time progress information.
type ExportProgress struct {
	Stage       string // "pending", "counting", "fetching", "retrying_deferred", "deriving", "writing", "completed", "failed", "cancelled"
	PagesTotal  int
	PagesDone   int
	FailedPages int
	Orders      int
	LastUpdate  time.Time
}

// ExportJob represents a running or finished export job.
type ExportJob struct {
	ID          string
	Status      JobStatus
	Request     ExportRequest
	StartedAt   time.Time
	CompletedAt *time.Time
	Progress    ExportProgress
	Result      *export.Result
	Error       error
	cancelFunc  context.CancelFunc
}

// ExportService runs exports as background jobs, one at a time for the
// configured store.
type ExportService struct {
	cfg    *config.Config
	runner Runner
	logger *slog.Logger

	// Job management
	jobs      map[string]*ExportJob
	jobsMutex sync.RWMutex

	// ID of the job holding the store, empty when idle. Guarded by jobsMutex.
	activeJob string

	// Background cleanup
	cleanupStop chan struct{}
	cleanupDone chan struct{}
}

// NewExportService creates a new export service. cfg is required; the
// service never reads the environment itself.
func NewExportService(cfg *config.Config, runner Runner, logger *slog.Logger) (*ExportService, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ExportService{
		cfg:    cfg,
		runner: runner,
		logger: logger,
		jobs:   make(map[string]*ExportJob),
	}, nil
}

// StartExport starts a new export job asynchronously.
// The passed context is NOT used as the parent for the background job, so the
// job outlives the HTTP request. Use CancelExport to stop it.
func (s *ExportService) StartExport(_ context.Context, req ExportRequest) (string, error) {
	if req.DateField == "" {
		req.DateField = s.cfg.Export.DateField
	}
	if req.DateField != config.DateFieldCreated && req.DateField != config.DateFieldUpdated {
		return "", fmt.Errorf("%w: unknown date field %q", export.ErrInvalidWindow, req.DateField)
	}
	window := export.Window{Start: req.Start, End: req.End, DateField: req.DateField}
	if err := window.Validate(); err != nil {
		return "", err
	}

	jobID := uuid.NewString()
	jobCtx, cancel := context.WithCancel(context.Background())
	now := time.Now()

	s.jobsMutex.Lock()
	if s.activeJob != "" {
		active := s.activeJob
		s.jobsMutex.Unlock()
		cancel()
		return "", fmt.Errorf("%w for %s (job %s)", ErrExportRunning, s.cfg.Shopify.Store, active)
	}
	job := &ExportJob{
		ID:         jobID,
		Status:     StatusPending,
		Request:    req,
		StartedAt:  now,
		cancelFunc: cancel,
		Progress:   ExportProgress{Stage: "pending", LastUpdate: now},
	}
	s.jobs[jobID] = job
	s.activeJob = jobID
	s.jobsMutex.Unlock()

	go s.runExportJob(jobCtx, jobID, window)

	s.logger.Info("export job started",
		"job_id", jobID,
		"start", window.StartLabel(),
		"end", window.EndLabel(),
		"date_field", window.DateField,
	)

	return jobID, nil
}

// GetExportJob returns a snapshot of a job.
func (s *ExportService) GetExportJob(jobID string) (*ExportJob, error) {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	snapshot := *job
	return &snapshot, nil
}

// ListActiveExportJobs returns snapshots of running or pending jobs.
func (s *ExportService) ListActiveExportJobs() []*ExportJob {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	active := make([]*ExportJob, 0)
	for _, job := range s.jobs {
		if job.Status == StatusPending || job.Status == StatusRunning {
			snapshot := *job
			active = append(active, &snapshot)
		}
	}
	return active
}

// ListAllExportJobs returns snapshots of every job still in memory.
func (s *ExportService) ListAllExportJobs() []*ExportJob {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	jobs := make([]*ExportJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		snapshot := *job
		jobs = append(jobs, &snapshot)
	}
	return jobs
}

// CancelExport cancels a running export job.
func (s *ExportService) CancelExport(jobID string) error {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	if job.Status != StatusPending && job.Status != StatusRunning {
		return fmt.Errorf("%w: status=%s", ErrJobFinished, job.Status)
	}

	job.cancelFunc()
	now := time.Now()
	job.Status = StatusCancelled
	job.CompletedAt = &now
	job.Progress.Stage = "cancelled"
	job.Progress.LastUpdate = now

	s.logger.Info("export job cancelled", "job_id", jobID)
	return nil
}

// runExportJob executes the export in a background goroutine.
func (s *ExportService) runExportJob(ctx context.Context, jobID string, window export.Window) {
	defer s.releaseStore(jobID)

	s.updateJob(jobID, func(job *ExportJob) {
		if job.Status == StatusPending {
			job.Status = StatusRunning
			job.Progress.Stage = "counting"
		}
	})

	backoff, err := s.cfg.Export.Backoff()
	if err != nil {
		s.failJob(jobID, fmt.Errorf("retry backoff: %w", err))
		return
	}

	result, err := s.runner.Run(ctx, export.Options{
		Window:       window,
		OutputDir:    s.cfg.Export.OutputDir,
		RetryBackoff: backoff,
		Store:        s.cfg.Shopify.Store,
		JobID:        jobID,
		Progress: export.ProgressFunc(func(e export.ProgressEvent) {
			s.updateJobProgress(jobID, e)
		}),
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			// Already marked as cancelled in CancelExport or by the stale sweep
			return
		}
		s.failJob(jobID, err)
		return
	}

	s.completeJob(jobID, result)
}

func (s *ExportService) updateJob(jobID string, fn func(*ExportJob)) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists {
		fn(job)
		job.Progress.LastUpdate = time.Now()
	}
}

// updateJobProgress applies a pipeline event to the job.
func (s *ExportService) updateJobProgress(jobID string, e export.ProgressEvent) {
	s.updateJob(jobID, func(job *ExportJob) {
		if job.Status != StatusRunning {
			return
		}
		job.Progress.Stage = string(e.Stage)
		job.Progress.PagesTotal = e.PagesTotal
		job.Progress.PagesDone = e.PagesDone
		job.Progress.Orders += e.Orders
		if e.Stage == export.StageDeferred && e.Err != nil {
			job.Progress.FailedPages++
		}
	})
}

// completeJob marks a job as completed with results.
func (s *ExportService) completeJob(jobID string, result *export.Result) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status != StatusRunning {
		return
	}
	now := time.Now()
	job.Status = StatusCompleted
	job.CompletedAt = &now
	job.Result = result
	job.Progress.Stage = "completed"
	job.Progress.FailedPages = len(result.PageFailures)
	job.Progress.Orders = result.OrdersFetched
	job.Progress.LastUpdate = now

	s.logger.Info("export job completed",
		"job_id", jobID,
		"rows", result.RowsExported,
		"failed_pages", len(result.PageFailures),
		"output", result.OutputPath,
	)
}

// failJob marks a job as failed with an error.
func (s *ExportService) failJob(jobID string, err error) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status != StatusRunning {
		return
	}
	now := time.Now()
	job.Status = StatusFailed
	job.CompletedAt = &now
	job.Error = err
	job.Progress.Stage = "failed"
	job.Progress.LastUpdate = now

	s.logger.Error("export job failed", "job_id", jobID, "error", err)
}

// releaseStore frees the store for the next job if jobID still holds it.
func (s *ExportService) releaseStore(jobID string) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if s.activeJob == jobID {
		s.activeJob = ""
	}
}

// CleanupOldJobs removes finished jobs older than the specified duration.
func (s *ExportService) CleanupOldJobs(maxAge time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for id, job := range s.jobs {
		if job.Status == StatusCompleted || job.Status == StatusFailed || job.Status == StatusCancelled {
			if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
				delete(s.jobs, id)
				removed++
			}
		}
	}

	if removed > 0 {
		s.logger.Debug("cleaned up old export jobs", "removed", removed)
	}

	return removed
}

// MarkStaleJobsAsFailed finds jobs that appear to be stuck and marks them as failed.
// A job is considered stale if:
// 1. It has been running longer than maxDuration, OR
// 2. Its Progress.LastUpdate is older than staleThreshold
//
// The job's context is cancelled and the store is released, so a new export
// can start even if the stuck goroutine never returns.
func (s *ExportService) MarkStaleJobsAsFailed(staleThreshold, maxDuration time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	now := time.Now()
	marked := 0

	for id, job := range s.jobs {
		if job.Status != StatusRunning && job.Status != StatusPending {
			continue
		}

		reason := staleReason(job, now, staleThreshold, maxDuration)
		if reason == "" {
			continue
		}

		if job.cancelFunc != nil {
			job.cancelFunc()
		}

		lastUpdate := job.Progress.LastUpdate
		job.Status = StatusFailed
		job.CompletedAt = &now
		job.Error = fmt.Errorf("job marked as stale: %s", reason)
		job.Progress.Stage = "failed"
		job.Progress.LastUpdate = now

		if s.activeJob == id {
			s.activeJob = ""
		}

		s.logger.Warn("marked stale job as failed",
			"job_id", id,
			"reason", reason,
			"started_at", job.StartedAt,
			"last_update", lastUpdate,
		)

		marked++
	}

	return marked
}

// IsJobStale checks if a specific job is considered stale.
func (s *ExportService) IsJobStale(jobID string, staleThreshold, maxDuration time.Duration) bool {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return false
	}
	if job.Status != StatusRunning && job.Status != StatusPending {
		return false
	}
	return staleReason(job, time.Now(), staleThreshold, maxDuration) != ""
}

func staleReason(job *ExportJob, now time.Time, staleThreshold, maxDuration time.Duration) string {
	if running := now.Sub(job.StartedAt); running > maxDuration {
		return fmt.Sprintf("exceeded max duration of %v (started %v ago)", maxDuration, running.Round(time.Second))
	}
	if silent := now.Sub(job.Progress.LastUpdate); silent > staleThreshold {
		return fmt.Sprintf("no progress update for %v (threshold: %v)", silent.Round(time.Second), staleThreshold)
	}
	return ""
}

// StartBackgroundCleanup starts a background goroutine that periodically
// marks stale jobs as failed and removes old finished jobs.
// Call StopBackgroundCleanup to stop it.
func (s *ExportService) StartBackgroundCleanup(checkInterval time.Duration) {
	s.cleanupStop = make(chan struct{})
	s.cleanupDone = make(chan struct{})

	go func() {
		defer close(s.cleanupDone)

		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()

		s.logger.Info("background job cleanup started",
			"check_interval", checkInterval,
			"stale_threshold", DefaultJobStaleThreshold,
			"max_duration", DefaultJobMaxDuration,
		)

		for {
			select {
			case <-s.cleanupStop:
				s.logger.Info("background job cleanup stopped")
				return
			case <-ticker.C:
				if marked := s.MarkStaleJobsAsFailed(DefaultJobStaleThreshold, DefaultJobMaxDuration); marked > 0 {
					s.logger.Info("marked stale jobs as failed", "count", marked)
				}
				s.CleanupOldJobs(DefaultJobRetention)
			}
		}
	}()
}

// StopBackgroundCleanup stops the background cleanup goroutine.
// This method blocks until the cleanup goroutine has fully stopped.
func (s *ExportService) StopBackgroundCleanup() {
	if s.cleanupStop == nil {
		return
	}

	close(s.cleanupStop)
	<-s.cleanupDone
	s.cleanupStop = nil
}

// Package export runs the order export pipeline: fetch every page of a
// date window, normalize and derive each order, assemble the table and
// write the spreadsheet.
package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eshaffer321/shopify-compta/internal/adapters/shopify"
	"github.com/eshaffer321/shopify-compta/internal/domain/orders"
)

// DateLayout is the layout of window bounds on the command line and in
// output file names.
const DateLayout = "2006-01-02"

// ErrInvalidWindow is returned when the window is empty or reversed.
var ErrInvalidWindow = errors.New("invalid date window")

// OrderSource is the remote order API.
type OrderSource interface {
	CountOrders(ctx context.Context, q shopify.Query) (int, error)
	FetchOrderPage(ctx context.Context, q shopify.Query, page int) ([]orders.RawOrder, error)
}

// Window is the [Start, End) range of orders to export.
type Window struct {
	Start     time.Time
	End       time.Time
	DateField string
}

// Validate checks that the window is not empty.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidWindow)
	}
	if !w.Start.Before(w.End) {
		return fmt.Errorf("%w: start %s is not before end %s", ErrInvalidWindow,
			w.Start.Format(DateLayout), w.End.Format(DateLayout))
	}
	return nil
}

// Query converts the window into the API filter.
func (w Window) Query() shopify.Query {
	return shopify.Query{DateField: w.DateField, Min: w.Start, Max: w.End}
}

// StartLabel is the start date as written in file names.
func (w Window) StartLabel() string { return w.Start.Format(DateLayout) }

// EndLabel is the end date as written in file names.
func (w Window) EndLabel() string { return w.End.Format(DateLayout) }

// Options holds export configuration
type Options struct {
	Window       Window
	OutputDir    string
	RetryBackoff time.Duration
	Tolerance    float64 // reconciliation tolerance, 0 means the default
	Store        string  // recorded in the ledger
	JobID        string  // set when the run belongs to a background job
	Progress     Progress
}

// Result holds export results
type Result struct {
	RunID           int64
	OrderCount      int
	PagesPlanned    int
	PageFailures    []PageFailure
	OrdersFetched   int
	OrdersMalformed int
	Diagnostics     int
	Unreconciled    int
	Unnamed         int
	Duplicates      int
	RowsExported    int
	Columns         []string
	OutputPath      string
	Duration        time.Duration
	Errors          []error
}

// Phase tells which attempt of a page is running.
type Phase string

const (
	PhasePrimary  Phase = "primary"
	PhaseRetry    Phase = "retry"
	PhaseDeferred Phase = "deferred"
)

// PageFailure is a page dropped after its final attempt. It does not fail
// the run.
type PageFailure struct {
	Page     int
	Attempts int
	Err      error
}

func (f PageFailure) Error() string {
	return fmt.Sprintf("page %d dropped after %d attempts: %v", f.Page, f.Attempts, f.Err)
}

func (f PageFailure) Unwrap() error { return f.Err }

// Stage is a step of the pipeline, reported through Progress.
type Stage string

const (
	StageCounting  Stage = "counting"
	StageFetching  Stage = "fetching"
	StageDeferred  Stage = "retrying_deferred"
	StageDeriving  Stage = "deriving"
	StageWriting   Stage = "writing"
	StageCompleted Stage = "completed"
)

// ProgressEvent describes where a run is.
type ProgressEvent struct {
	Stage      Stage
	PagesDone  int
	PagesTotal int
	Page       int
	Orders     int
	Err        error
}

// Progress receives pipeline events. Implementations must be fast; they run
// on the pipeline goroutine.
type Progress interface {
	OnProgress(ProgressEvent)
}

// ProgressFunc adapts a function to Progress.
type ProgressFunc func(ProgressEvent)

func (f ProgressFunc) OnProgress(e ProgressEvent) { f(e) }

type noProgress struct{}

func (noProgress) OnProgress(ProgressEvent) {}

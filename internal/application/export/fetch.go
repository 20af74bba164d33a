package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eshaffer321/shopify-compta/internal/adapters/shopify"
	"github.com/eshaffer321/shopify-compta/internal/domain/orders"
	"github.com/eshaffer321/shopify-compta/internal/infrastructure/metrics"
)

// DefaultRetryBackoff is the wait before a failed page is retried.
const DefaultRetryBackoff = 2 * time.Second

// PageCount is the number of pages needed for count orders. An exact
// multiple of the page size adds no trailing empty page.
func PageCount(count int) int {
	if count <= 0 {
		return 0
	}
	return (count + shopify.PageSize - 1) / shopify.PageSize
}

// PageAttempt describes one request for a page.
type PageAttempt struct {
	Page     int
	Attempt  int
	Phase    Phase
	Orders   int
	Err      error
	Duration time.Duration
}

// FetchResult is everything the fetcher retrieved.
type FetchResult struct {
	Count    int
	Pages    int
	Orders   []orders.RawOrder
	Failures []PageFailure
}

// Fetcher pages through the orders of a window.
//
// Each page gets up to three attempts: the first, one retry after the
// backoff, and one more after every other page was tried. Pages that fail
// all three are reported in FetchResult.Failures and their orders are lost.
type Fetcher struct {
	source    OrderSource
	backoff   time.Duration
	sleep     func(context.Context, time.Duration) error
	logger    *slog.Logger
	metrics   *metrics.Registry
	onAttempt func(PageAttempt)
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithBackoff sets the wait before the retry of a failed page.
func WithBackoff(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d >= 0 {
			f.backoff = d
		}
	}
}

// WithSleep replaces the backoff wait, for tests.
func WithSleep(sleep func(context.Context, time.Duration) error) FetcherOption {
	return func(f *Fetcher) { f.sleep = sleep }
}

// WithFetchLogger sets the logger.
func WithFetchLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = l }
}

// WithFetchMetrics records page attempts in m.
func WithFetchMetrics(m *metrics.Registry) FetcherOption {
	return func(f *Fetcher) { f.metrics = m }
}

// WithAttemptHook calls fn after every page attempt.
func WithAttemptHook(fn func(PageAttempt)) FetcherOption {
	return func(f *Fetcher) { f.onAttempt = fn }
}

// NewFetcher creates a fetcher over source.
func NewFetcher(source OrderSource, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		source:  source,
		backoff: DefaultRetryBackoff,
		sleep:   sleepContext,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch counts the orders of q and fetches every page. A failed count is
// fatal; failed pages are not.
func (f *Fetcher) Fetch(ctx context.Context, q shopify.Query, progress Progress) (*FetchResult, error) {
	if progress == nil {
		progress = noProgress{}
	}

	progress.OnProgress(ProgressEvent{Stage: StageCounting})
	count, err := f.source.CountOrders(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("count orders: %w", err)
	}

	res := &FetchResult{Count: count, Pages: PageCount(count)}
	f.logger.Info("Planned pages", "orders", count, "pages", res.Pages, "date_field", q.DateField)

	var deferred []int
	done := 0

	for page := 1; page <= res.Pages; page++ {
		records, err := f.attempt(ctx, q, page, 1, PhasePrimary)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.logger.Warn("Page fetch failed, retrying",
				"page", page,
				"backoff", f.backoff,
				"error", err,
			)
			if err := f.sleep(ctx, f.backoff); err != nil {
				return nil, err
			}
			records, err = f.attempt(ctx, q, page, 2, PhaseRetry)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				f.logger.Warn("Page retry failed, deferring", "page", page, "error", err)
				deferred = append(deferred, page)
				progress.OnProgress(ProgressEvent{Stage: StageFetching, PagesDone: done, PagesTotal: res.Pages, Page: page, Err: err})
				continue
			}
		}

		res.Orders = append(res.Orders, records...)
		done++
		progress.OnProgress(ProgressEvent{Stage: StageFetching, PagesDone: done, PagesTotal: res.Pages, Page: page, Orders: len(records)})
	}

	for _, page := range deferred {
		records, err := f.attempt(ctx, q, page, 3, PhaseDeferred)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failure := PageFailure{Page: page, Attempts: 3, Err: err}
			f.logger.Error("Page dropped", "page", page, "error", err)
			f.metrics.PageFailed()
			res.Failures = append(res.Failures, failure)
			progress.OnProgress(ProgressEvent{Stage: StageDeferred, PagesDone: done, PagesTotal: res.Pages, Page: page, Err: failure})
			continue
		}

		res.Orders = append(res.Orders, records...)
		done++
		progress.OnProgress(ProgressEvent{Stage: StageDeferred, PagesDone: done, PagesTotal: res.Pages, Page: page, Orders: len(records)})
	}

	f.logger.Info("Fetched orders",
		"orders", len(res.Orders),
		"expected", count,
		"failed_pages", len(res.Failures),
	)
	return res, nil
}

func (f *Fetcher) attempt(ctx context.Context, q shopify.Query, page, attempt int, phase Phase) ([]orders.RawOrder, error) {
	start := time.Now()
	records, err := f.source.FetchOrderPage(ctx, q, page)
	took := time.Since(start)

	f.metrics.ObservePage(string(phase), err, took)
	if err == nil {
		f.metrics.AddFetched(len(records))
	}
	if f.onAttempt != nil {
		f.onAttempt(PageAttempt{
			Page:     page,
			Attempt:  attempt,
			Phase:    phase,
			Orders:   len(records),
			Err:      err,
			Duration: took,
		})
	}

	f.logger.Debug("Page attempt",
		"page", page,
		"attempt", attempt,
		"phase", phase,
		"orders", len(records),
		"duration", took,
	)
	return records, err
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

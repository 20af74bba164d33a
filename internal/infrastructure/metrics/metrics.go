// Package metrics exposes export pipeline counters for Prometheus.
//
// Every method is safe on a nil *Registry so callers that run without
// metrics (tests, one-shot CLI runs) need no guards.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	PageAttempts    *prometheus.CounterVec
	PageLatencySec  prometheus.Histogram
	PagesFailed     prometheus.Counter
	OrdersFetched   prometheus.Counter
	OrdersMalformed prometheus.Counter
	Diagnostics     *prometheus.CounterVec
	Unreconciled    prometheus.Counter
	RowsExported    prometheus.Counter
	Runs            *prometheus.CounterVec
	RunDurationSec  prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	pageAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compta_page_attempts_total",
		Help: "Order page fetch attempts by phase and result.",
	}, []string{"phase", "result"})
	pageLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "compta_page_latency_seconds",
		Help:    "Latency of one order page request.",
		Buckets: prometheus.DefBuckets,
	})
	pagesFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "compta_pages_failed_total",
		Help: "Pages dropped after every attempt failed.",
	})
	ordersFetched := prometheus.NewCounter(prometheus.CounterOpts{Name: "compta_orders_fetched_total"})
	ordersMalformed := prometheus.NewCounter(prometheus.CounterOpts{Name: "compta_orders_malformed_total"})
	diagnostics := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compta_derive_diagnostics_total",
		Help: "Derivation passes that failed, by pass.",
	}, []string{"pass"})
	unreconciled := prometheus.NewCounter(prometheus.CounterOpts{Name: "compta_rows_unreconciled_total"})
	rowsExported := prometheus.NewCounter(prometheus.CounterOpts{Name: "compta_rows_exported_total"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "compta_export_runs_total",
		Help: "Export runs by final status.",
	}, []string{"status"})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "compta_export_duration_seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	r.MustRegister(pageAttempts, pageLatency, pagesFailed, ordersFetched, ordersMalformed,
		diagnostics, unreconciled, rowsExported, runs, runDuration)

	return &Registry{
		reg:             r,
		PageAttempts:    pageAttempts,
		PageLatencySec:  pageLatency,
		PagesFailed:     pagesFailed,
		OrdersFetched:   ordersFetched,
		OrdersMalformed: ordersMalformed,
		Diagnostics:     diagnostics,
		Unreconciled:    unreconciled,
		RowsExported:    rowsExported,
		Runs:            runs,
		RunDurationSec:  runDuration,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// ObservePage records one page attempt.
func (r *Registry) ObservePage(phase string, err error, took time.Duration) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.PageAttempts.WithLabelValues(phase, result).Inc()
	r.PageLatencySec.Observe(took.Seconds())
}

// PageFailed records a page dropped for good.
func (r *Registry) PageFailed() {
	if r == nil {
		return
	}
	r.PagesFailed.Inc()
}

// AddFetched records orders received.
func (r *Registry) AddFetched(n int) {
	if r == nil {
		return
	}
	r.OrdersFetched.Add(float64(n))
}

// Malformed records one order dropped by the normalizer.
func (r *Registry) Malformed() {
	if r == nil {
		return
	}
	r.OrdersMalformed.Inc()
}

// Diagnostic records one failed derivation pass.
func (r *Registry) Diagnostic(pass string) {
	if r == nil {
		return
	}
	r.Diagnostics.WithLabelValues(pass).Inc()
}

// NotReconciled records one row whose breakdown did not add up.
func (r *Registry) NotReconciled() {
	if r == nil {
		return
	}
	r.Unreconciled.Inc()
}

// RunFinished records the outcome of one export run.
func (r *Registry) RunFinished(status string, rows int, took time.Duration) {
	if r == nil {
		return
	}
	r.Runs.WithLabelValues(status).Inc()
	r.RowsExported.Add(float64(rows))
	r.RunDurationSec.Observe(took.Seconds())
}

package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Counters(t *testing.T) {
	r := NewRegistry()

	r.ObservePage("primary", nil, 10*time.Millisecond)
	r.ObservePage("primary", errors.New("boom"), time.Millisecond)
	r.ObservePage("retry", nil, time.Millisecond)
	r.PageFailed()
	r.AddFetched(250)
	r.Malformed()
	r.Diagnostic("shipping")
	r.Diagnostic("shipping")
	r.NotReconciled()
	r.RunFinished("completed", 249, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.PageAttempts.WithLabelValues("primary", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.PageAttempts.WithLabelValues("primary", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.PageAttempts.WithLabelValues("retry", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.PagesFailed))
	assert.Equal(t, 250.0, testutil.ToFloat64(r.OrdersFetched))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.OrdersMalformed))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.Diagnostics.WithLabelValues("shipping")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Unreconciled))
	assert.Equal(t, 249.0, testutil.ToFloat64(r.RowsExported))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Runs.WithLabelValues("completed")))
}

func TestRegistry_NilIsSafe(t *testing.T) {
	var r *Registry

	assert.NotPanics(t, func() {
		r.ObservePage("primary", nil, time.Millisecond)
		r.PageFailed()
		r.AddFetched(1)
		r.Malformed()
		r.Diagnostic("tax")
		r.NotReconciled()
		r.RunFinished("failed", 0, time.Second)
	})
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.AddFetched(3)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "compta_orders_fetched_total 3")
}

package shopify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, "2024-01", "tok", "secret")
	require.NoError(t, err)
	return c
}

var window = Query{
	DateField: "created_at",
	Min:       time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	Max:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
}

func TestCountOrders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2024-01/orders/count.json", r.URL.Path)
		assert.Equal(t, "any", r.URL.Query().Get("status"))
		assert.Equal(t, "2024-02-01T00:00:00Z", r.URL.Query().Get("created_at_min"))
		assert.Equal(t, "2024-03-01T00:00:00Z", r.URL.Query().Get("created_at_max"))
		assert.Equal(t, "tok", r.Header.Get("X-Shopify-Access-Token"))

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "tok", user)
		assert.Equal(t, "secret", pass)

		_, _ = w.Write([]byte(`{"count": 501}`))
	})

	n, err := c.CountOrders(context.Background(), window)
	require.NoError(t, err)
	assert.Equal(t, 501, n)
}

func TestCountOrders_MissingCount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := c.CountOrders(context.Background(), window)
	assert.Error(t, err)
}

func TestFetchOrderPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2024-01/orders.json", r.URL.Path)
		assert.Equal(t, "250", r.URL.Query().Get("limit"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "2024-02-01T00:00:00Z", r.URL.Query().Get("updated_at_min"))
		assert.Empty(t, r.URL.Query().Get("created_at_min"))

		_, _ = w.Write([]byte(`{"orders": [{"id": 1, "name": "#1"}, {"id": 2, "name": "#2"}]}`))
	})

	q := window
	q.DateField = "updated_at"
	page, err := c.FetchOrderPage(context.Background(), q, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.JSONEq(t, `{"id": 1, "name": "#1"}`, string(page[0]))
}

func TestFetchOrderPage_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"errors": "Exceeded 2 calls per second for api client."}`))
	})

	_, err := c.FetchOrderPage(context.Background(), window, 1)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "Exceeded 2 calls")
	assert.Equal(t, "fetch orders page 1", apiErr.Operation)
}

func TestFetchOrderPage_BadPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := c.FetchOrderPage(context.Background(), window, 0)
	assert.Error(t, err)
}

func TestFetchOrderPage_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orders": [`))
	})

	_, err := c.FetchOrderPage(context.Background(), window, 1)
	assert.ErrorContains(t, err, "decode response")
}

func TestNew(t *testing.T) {
	_, err := New("", "2024-01", "tok", "")
	assert.ErrorIs(t, err, ErrMissingStore)

	c, err := New("shop.myshopify.com/", "2024-01", "tok", "")
	require.NoError(t, err)
	assert.Equal(t, "https://shop.myshopify.com/admin/api/2024-01", c.baseURL)

	_, err = New("shop.myshopify.com", "2024-01", "tok", "", WithTimeout(-time.Second))
	assert.Error(t, err)
}

func TestFetchOrderPage_ContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orders": []}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchOrderPage(ctx, window, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

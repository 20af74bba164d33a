// Package shopify is a small client for the two order endpoints of the
// store's admin REST API: the order count and the paged order list.
package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eshaffer321/shopify-compta/internal/domain/orders"
)

// PageSize is the largest page the orders endpoint serves.
const PageSize = 250

// ErrMissingStore is returned by New when no store domain is given.
var ErrMissingStore = errors.New("shopify: store domain is required")

// Query selects the orders of a date window. Both calls filter on the same
// timestamp field so the count matches the pages.
type Query struct {
	DateField string // "created_at" or "updated_at"
	Min       time.Time
	Max       time.Time
}

func (q Query) values() url.Values {
	field := q.DateField
	if field == "" {
		field = "created_at"
	}
	v := url.Values{}
	v.Set("status", "any")
	if !q.Min.IsZero() {
		v.Set(field+"_min", q.Min.UTC().Format(time.RFC3339))
	}
	if !q.Max.IsZero() {
		v.Set(field+"_max", q.Max.UTC().Format(time.RFC3339))
	}
	return v
}

// APIError is a non-2xx answer from the store.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Operation, e.StatusCode, e.Message)
}

// Client talks to one store.
type Client struct {
	baseURL    string
	token      string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures the Client during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
}

// New creates a client for store ("shop.myshopify.com"). A store given
// with an http:// or https:// scheme keeps it, which is how tests point the
// client at a local server.
func New(store, apiVersion, token, password string, opts ...Option) (*Client, error) {
	store = strings.TrimSuffix(strings.TrimSpace(store), "/")
	if store == "" {
		return nil, ErrMissingStore
	}
	if !strings.HasPrefix(store, "http://") && !strings.HasPrefix(store, "https://") {
		store = "https://" + store
	}
	if apiVersion == "" {
		return nil, fmt.Errorf("shopify: api version is required")
	}

	cfg := &clientConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		baseURL:    fmt.Sprintf("%s/admin/api/%s", store, apiVersion),
		token:      token,
		password:   password,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithTimeout sets a timeout on the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		if d < 0 {
			return fmt.Errorf("shopify: negative timeout %s", d)
		}
		cfg.timeout = d
		return nil
	}
}

// CountOrders returns how many orders match q.
func (c *Client) CountOrders(ctx context.Context, q Query) (int, error) {
	u := c.baseURL + "/orders/count.json?" + q.values().Encode()
	var body struct {
		Count *int `json:"count"`
	}
	if err := c.getJSON(ctx, u, "count orders", &body); err != nil {
		return 0, err
	}
	if body.Count == nil {
		return 0, fmt.Errorf("count orders: response has no count")
	}
	return *body.Count, nil
}

// FetchOrderPage returns page (1-based) of the orders matching q, each order
// left undecoded.
func (c *Client) FetchOrderPage(ctx context.Context, q Query, page int) ([]orders.RawOrder, error) {
	if page < 1 {
		return nil, fmt.Errorf("fetch orders: page %d out of range", page)
	}
	v := q.values()
	v.Set("limit", strconv.Itoa(PageSize))
	v.Set("page", strconv.Itoa(page))

	u := c.baseURL + "/orders.json?" + v.Encode()
	var body struct {
		Orders []orders.RawOrder `json:"orders"`
	}
	op := fmt.Sprintf("fetch orders page %d", page)
	if err := c.getJSON(ctx, u, op, &body); err != nil {
		return nil, err
	}
	if body.Orders == nil {
		return nil, fmt.Errorf("%s: response has no orders list", op)
	}
	return body.Orders, nil
}

func (c *Client) getJSON(ctx context.Context, u, operation string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("X-Shopify-Access-Token", c.token)
	}
	if c.password != "" {
		req.SetBasicAuth(c.token, c.password)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: do request: %w", operation, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "API response",
		"operation", operation,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var errBody struct {
			Errors any `json:"errors"`
		}
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &errBody) == nil && errBody.Errors != nil {
			msg = fmt.Sprint(errBody.Errors)
		}
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Operation: operation, StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%s: decode response: %w", operation, err)
	}
	return nil
}

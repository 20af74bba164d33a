package export

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/shopify-compta/internal/adapters/shopify"
	"github.com/eshaffer321/shopify-compta/internal/domain/orders"
)

// MockSource implements OrderSource for testing
type MockSource struct {
	mock.Mock
}

func (m *MockSource) CountOrders(ctx context.Context, q shopify.Query) (int, error) {
	args := m.Called(ctx, q)
	return args.Int(0), args.Error(1)
}

func (m *MockSource) FetchOrderPage(ctx context.Context, q shopify.Query, page int) ([]orders.RawOrder, error) {
	args := m.Called(ctx, q, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]orders.RawOrder), args.Error(1)
}

func rawPage(ids ...int) []orders.RawOrder {
	out := make([]orders.RawOrder, 0, len(ids))
	for _, id := range ids {
		out = append(out, orders.RawOrder(fmt.Sprintf(`{"id": %d, "name": "#%d", "line_items": []}`, id, id)))
	}
	return out
}

// noSleep records the requested waits without blocking
type noSleep struct {
	waits []time.Duration
}

func (s *noSleep) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func testQuery() shopify.Query {
	return shopify.Query{
		DateField: "created_at",
		Min:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Max:       time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		count int
		want  int
	}{
		{count: -1, want: 0},
		{count: 0, want: 0},
		{count: 1, want: 1},
		{count: 250, want: 1},
		{count: 251, want: 2},
		{count: 500, want: 2},
		{count: 501, want: 3},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("count=%d", tt.count), func(t *testing.T) {
			assert.Equal(t, tt.want, PageCount(tt.count))
		})
	}
}

func TestFetch_AllPagesSucceed(t *testing.T) {
	source := new(MockSource)
	q := testQuery()
	source.On("CountOrders", mock.Anything, q).Return(251, nil)
	source.On("FetchOrderPage", mock.Anything, q, 1).Return(rawPage(1, 2), nil).Once()
	source.On("FetchOrderPage", mock.Anything, q, 2).Return(rawPage(3), nil).Once()

	s := &noSleep{}
	var events []ProgressEvent
	f := NewFetcher(source, WithSleep(s.sleep))

	res, err := f.Fetch(context.Background(), q, ProgressFunc(func(e ProgressEvent) { events = append(events, e) }))
	require.NoError(t, err)

	assert.Equal(t, 251, res.Count)
	assert.Equal(t, 2, res.Pages)
	assert.Len(t, res.Orders, 3)
	assert.Empty(t, res.Failures)
	assert.Empty(t, s.waits)

	require.NotEmpty(t, events)
	assert.Equal(t, StageCounting, events[0].Stage)
	last := events[len(events)-1]
	assert.Equal(t, 2, last.PagesDone)
	assert.Equal(t, 2, last.PagesTotal)

	source.AssertExpectations(t)
}

func TestFetch_NoOrders(t *testing.T) {
	source := new(MockSource)
	q := testQuery()
	source.On("CountOrders", mock.Anything, q).Return(0, nil)

	res, err := NewFetcher(source).Fetch(context.Background(), q, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Pages)
	assert.Empty(t, res.Orders)
	source.AssertNotCalled(t, "FetchOrderPage", mock.Anything, mock.Anything, mock.Anything)
}

func TestFetch_RetrySucceeds(t *testing.T) {
	source := new(MockSource)
	q := testQuery()
	source.On("CountOrders", mock.Anything, q).Return(10, nil)
	source.On("FetchOrderPage", mock.Anything, q, 1).Return(nil, errors.New("connection reset")).Once()
	source.On("FetchOrderPage", mock.Anything, q, 1).Return(rawPage(1), nil).Once()

	s := &noSleep{}
	var attempts []PageAttempt
	f := NewFetcher(source,
		WithBackoff(5*time.Second),
		WithSleep(s.sleep),
		WithAttemptHook(func(a PageAttempt) { attempts = append(attempts, a) }),
	)

	res, err := f.Fetch(context.Background(), q, nil)
	require.NoError(t, err)

	assert.Len(t, res.Orders, 1)
	assert.Empty(t, res.Failures)
	assert.Equal(t, []time.Duration{5 * time.Second}, s.waits)

	require.Len(t, attempts, 2)
	assert.Equal(t, PhasePrimary, attempts[0].Phase)
	assert.Error(t, attempts[0].Err)
	assert.Equal(t, PhaseRetry, attempts[1].Phase)
	assert.Equal(t, 2, attempts[1].Attempt)
	assert.NoError(t, attempts[1].Err)
	assert.Equal(t, 1, attempts[1].Orders)

	source.AssertExpectations(t)
}

func TestFetch_DeferredPageComesLast(t *testing.T) {
	source := new(MockSource)
	q := testQuery()
	source.On("CountOrders", mock.Anything, q).Return(600, nil)
	source.On("FetchOrderPage", mock.Anything, q, 1).Return(rawPage(1), nil).Once()
	source.On("FetchOrderPage", mock.Anything, q, 2).Return(nil, errors.New("timeout")).Twice()
	source.On("FetchOrderPage", mock.Anything, q, 3).Return(rawPage(3), nil).Once()
	source.On("FetchOrderPage", mock.Anything, q, 2).Return(rawPage(2), nil).Once()

	var order []int
	f := NewFetcher(source,
		WithSleep((&noSleep{}).sleep),
		WithAttemptHook(func(a PageAttempt) { order = append(order, a.Page) }),
	)

	res, err := f.Fetch(context.Background(), q, nil)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 2, 3, 2}, order)
	assert.Empty(t, res.Failures)
	require.Len(t, res.Orders, 3)
	assert.Contains(t, string(res.Orders[2]), `"id": 2`)

	source.AssertExpectations(t)
}

func TestFetch_PermanentFailureIsNotFatal(t *testing.T) {
	source := new(MockSource)
	q := testQuery()
	boom := errors.New("500 internal server error")
	source.On("CountOrders", mock.Anything, q).Return(300, nil)
	source.On("FetchOrderPage", mock.Anything, q, 1).Return(nil, boom).Times(3)
	source.On("FetchOrderPage", mock.Anything, q, 2).Return(rawPage(251), nil).Once()

	var attempts []PageAttempt
	f := NewFetcher(source,
		WithSleep((&noSleep{}).sleep),
		WithAttemptHook(func(a PageAttempt) { attempts = append(attempts, a) }),
	)

	res, err := f.Fetch(context.Background(), q, nil)
	require.NoError(t, err)

	require.Len(t, res.Failures, 1)
	failure := res.Failures[0]
	assert.Equal(t, 1, failure.Page)
	assert.Equal(t, 3, failure.Attempts)
	assert.ErrorIs(t, failure, boom)
	assert.Contains(t, failure.Error(), "page 1 dropped after 3 attempts")

	assert.Len(t, res.Orders, 1)
	require.Len(t, attempts, 4)
	assert.Equal(t, PhaseDeferred, attempts[3].Phase)
	assert.Equal(t, 3, attempts[3].Attempt)

	source.AssertExpectations(t)
}

func TestFetch_CountFailureIsFatal(t *testing.T) {
	source := new(MockSource)
	q := testQuery()
	boom := errors.New("unauthorized")
	source.On("CountOrders", mock.Anything, q).Return(0, boom)

	res, err := NewFetcher(source).Fetch(context.Background(), q, nil)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "count orders")
	source.AssertNotCalled(t, "FetchOrderPage", mock.Anything, mock.Anything, mock.Anything)
}

func TestFetch_CancelledDuringBackoff(t *testing.T) {
	source := new(MockSource)
	q := testQuery()
	source.On("CountOrders", mock.Anything, q).Return(500, nil)
	source.On("FetchOrderPage", mock.Anything, q, 1).Return(nil, errors.New("timeout")).Once()

	ctx, cancel := context.WithCancel(context.Background())
	f := NewFetcher(source, WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	res, err := f.Fetch(ctx, q, nil)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	source.AssertNumberOfCalls(t, "FetchOrderPage", 1)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, sleepContext(ctx, 0), context.Canceled)
}

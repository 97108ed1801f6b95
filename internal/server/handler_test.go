package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funnyzak/botfake/internal/journal"
	"github.com/funnyzak/botfake/internal/printer"
	"github.com/funnyzak/botfake/internal/scenario"
	"github.com/funnyzak/botfake/pkg/exchange"
)

// noopLogger implements logger.Logger for tests
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Fatal(string, ...interface{}) {}

type recordingPrinter struct {
	mu        sync.Mutex
	exchanges []*exchange.Exchange
}

func (p *recordingPrinter) PrintExchange(ex *exchange.Exchange) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchanges = append(p.exchanges, ex)
	return nil
}

func (p *recordingPrinter) PrintReport(printer.Report) error { return nil }

func newTestHandler(t *testing.T, name string, maxBodyBytes int64) (*Handler, *scenario.TestCase, *journal.Memory) {
	t.Helper()
	tc, err := scenario.New(name)
	require.NoError(t, err)
	store := journal.NewMemory(100)
	return NewHandler(tc, noopLogger{}, maxBodyBytes, store, nil, nil), tc, store
}

func lastExchange(t *testing.T, store journal.Store) *exchange.Exchange {
	t.Helper()
	items, _, err := store.List(journal.ListOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
	return items[0]
}

func TestHandlerFulfilled(t *testing.T) {
	h, tc, store := newTestHandler(t, scenario.SingleGetMe, 1024)
	p := &recordingPrinter{}
	h.printer = p

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/bot123/getMe", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"ok":true`)
	assert.Equal(t, 1, tc.Fulfilled())

	ex := lastExchange(t, store)
	assert.Equal(t, exchange.OutcomeFulfilled, ex.Outcome)
	assert.Equal(t, scenario.SingleGetMe, ex.Scenario)
	assert.Equal(t, 1, ex.Step)
	assert.Equal(t, "Client sends getMe request", ex.Expectation)
	assert.Equal(t, http.StatusOK, ex.Status)
	assert.Equal(t, int64(rr.Body.Len()), ex.ResponseSize)
	assert.Empty(t, ex.Failure)

	require.Len(t, p.exchanges, 1)
	assert.Same(t, ex, p.exchanges[0])
}

func TestHandlerCheckFailure(t *testing.T) {
	h, tc, store := newTestHandler(t, scenario.SingleGetMe, 1024)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/bot123/getUpdates", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.Equal(t, 1, tc.Fulfilled())

	ex := lastExchange(t, store)
	assert.Equal(t, exchange.OutcomeCheckFailed, ex.Outcome)
	assert.Equal(t, http.StatusBadRequest, ex.Status)
	assert.Equal(t, "Invalid Path: expected /bot123/getMe, got /bot123/getUpdates", ex.Failure)
}

func TestHandlerExtraRequest(t *testing.T) {
	h, tc, store := newTestHandler(t, scenario.SingleGetMe, 1024)

	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bot123/getMe", nil))
	}

	ex := lastExchange(t, store)
	assert.Equal(t, 2, ex.Step)
	assert.Empty(t, ex.Expectation)
	assert.Equal(t, exchange.OutcomeCheckFailed, ex.Outcome)
	assert.Equal(t, "Unexpected extra request", ex.Failure)
	assert.Equal(t, 2, tc.Fulfilled())
}

func TestHandlerInternalErrorAborts(t *testing.T) {
	h, tc, store := newTestHandler(t, scenario.GetUpdatesAndSendMessages, 1024)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bot123/getUpdates", nil))

	req := httptest.NewRequest(http.MethodPost, "/bot123/sendMessage", strings.NewReader(`{"chat_id":`))
	req.Header.Set("Content-Type", "application/json")
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), req)
	})

	assert.Equal(t, 2, tc.Fulfilled())
	require.Len(t, tc.Failures(), 1)
	assert.True(t, strings.HasPrefix(tc.Failures()[0], "Step 2: malformed request body"), tc.Failures()[0])

	ex := lastExchange(t, store)
	assert.Equal(t, exchange.OutcomeInternalError, ex.Outcome)
	assert.Zero(t, ex.Status)

	require.True(t, tc.TryLock(), "lock is released before aborting")
	tc.Unlock()
}

func TestHandlerBodyTooLarge(t *testing.T) {
	h, tc, store := newTestHandler(t, scenario.GetUpdatesAndSendMessages, 8)

	req := httptest.NewRequest(http.MethodPost, "/bot123/getUpdates", strings.NewReader(`{"offset":851793508}`))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), req)
	})

	assert.Equal(t, 1, tc.Fulfilled(), "a rejected request still consumes its step")
	ex := lastExchange(t, store)
	assert.Equal(t, exchange.OutcomeInternalError, ex.Outcome)
	assert.Contains(t, ex.Failure, "request body exceeds configured limit")
}

func TestHandlerConcurrentRequestsAreSerialized(t *testing.T) {
	h, tc, store := newTestHandler(t, scenario.SingleGetMe, 1024)

	const n = 20
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/bot123/getMe", nil))
			codes[i] = rr.Code
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, code := range codes {
		if code == http.StatusOK {
			ok++
		} else {
			assert.Equal(t, http.StatusBadRequest, code)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n, tc.Fulfilled())

	_, total, err := store.List(journal.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, n, total)

	steps := map[int]bool{}
	items, _, err := store.List(journal.ListOptions{})
	require.NoError(t, err)
	for _, ex := range items {
		steps[ex.Step] = true
	}
	assert.Len(t, steps, n, "every request sees its own step number")
}

func TestHandlerDrainRejectsNewRequests(t *testing.T) {
	h, tc, _ := newTestHandler(t, scenario.SingleGetMe, 1024)
	h.drain()

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bot123/getMe", nil))
	})
	assert.Zero(t, tc.Fulfilled())
}

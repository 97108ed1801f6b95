package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/funnyzak/botfake/internal/journal"
	"github.com/funnyzak/botfake/internal/live"
	"github.com/funnyzak/botfake/internal/logger"
	"github.com/funnyzak/botfake/internal/printer"
	"github.com/funnyzak/botfake/internal/scenario"
	"github.com/funnyzak/botfake/pkg/exchange"
)

var errRequestBodyTooLarge = errors.New("request body exceeds configured limit")

// Handler feeds every inbound request to the test case, one at a time.
type Handler struct {
	testCase     *scenario.TestCase
	logger       logger.Logger
	maxBodyBytes int64
	journal      journal.Store
	printer      printer.Printer
	hub          *live.Hub

	mu       sync.Mutex
	draining bool
	inflight sync.WaitGroup
}

// NewHandler creates a new request handler. journal, printer and hub may be
// nil.
func NewHandler(
	tc *scenario.TestCase,
	log logger.Logger,
	maxBodyBytes int64,
	store journal.Store,
	p printer.Printer,
	hub *live.Hub,
) *Handler {
	return &Handler{
		testCase:     tc,
		logger:       log,
		maxBodyBytes: maxBodyBytes,
		journal:      store,
		printer:      p,
		hub:          hub,
	}
}

// statusRecorder remembers what was written to the client.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int64
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += int64(n)
	return n, err
}

// ServeHTTP implements the http.Handler interface. Requests that fail with
// an internal error are aborted after they have been journaled.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.enter() {
		panic(http.ErrAbortHandler)
	}
	defer h.inflight.Done()

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w}
	ex := h.exchange(rec, r)
	ex.Duration = time.Since(start)

	h.logExchange(ex)
	h.fanOut(ex)

	if ex.Outcome == exchange.OutcomeInternalError {
		panic(http.ErrAbortHandler)
	}
}

// exchange runs one request against the test case while holding its lock.
func (h *Handler) exchange(w *statusRecorder, r *http.Request) *exchange.Exchange {
	tc := h.testCase
	tc.Lock()
	defer tc.Unlock()

	body, err := h.readRequestBody(r)
	ex := exchange.New(r, body)
	ex.Scenario = tc.Name()
	ex.Step = tc.Fulfilled() + 1
	ex.Expectation = tc.Expectation(ex.Step)

	if err != nil {
		ex.Outcome = exchange.OutcomeInternalError
		ex.Failure = fmt.Sprintf("Step %d: failed to read request body: %v", ex.Step, err)
		tc.Reject(ex.Failure)
		return ex
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	err = tc.HandleRequest(w, r)
	switch {
	case err == nil:
		ex.Outcome = exchange.OutcomeFulfilled
	case errors.Is(err, scenario.ErrCheckFailed):
		ex.Outcome = exchange.OutcomeCheckFailed
		ex.Failure = err.Error()
		w.WriteHeader(http.StatusBadRequest)
	default:
		ex.Outcome = exchange.OutcomeInternalError
		ex.Failure = fmt.Sprintf("Step %d: %v", ex.Step, err)
		tc.RecordFailure(ex.Failure)
	}

	ex.Status = w.status
	ex.ResponseSize = w.size
	return ex
}

func (h *Handler) logExchange(ex *exchange.Exchange) {
	fields := []interface{}{
		"step", ex.Step,
		"method", ex.Method,
		"path", ex.Path,
		"query", ex.Query,
		"status", ex.Status,
		"duration", ex.Duration,
	}
	switch ex.Outcome {
	case exchange.OutcomeFulfilled:
		h.logger.Debug("Expectation fulfilled", fields...)
	case exchange.OutcomeCheckFailed:
		h.logger.Warn("Expectation check failed", append(fields, "failure", ex.Failure)...)
	default:
		h.logger.Error("Request aborted", append(fields, "failure", ex.Failure)...)
	}
}

// fanOut hands the exchange to the journal, printer and live feed. Their
// errors are logged and never affect the scenario.
func (h *Handler) fanOut(ex *exchange.Exchange) {
	var group errgroup.Group

	if h.journal != nil {
		group.Go(func() error {
			if err := h.journal.Record(ex); err != nil {
				h.logger.Error("Failed to journal exchange", "error", err, "exchange_id", ex.ID)
			}
			return nil
		})
	}
	if h.printer != nil {
		group.Go(func() error {
			if err := h.printer.PrintExchange(ex); err != nil {
				h.logger.Error("Failed to print exchange", "error", err, "exchange_id", ex.ID)
			}
			return nil
		})
	}
	if h.hub != nil {
		group.Go(func() error {
			if err := h.hub.Publish(ex); err != nil {
				h.logger.Warn("Failed to publish exchange", "error", err, "exchange_id", ex.ID)
			}
			return nil
		})
	}

	_ = group.Wait()
}

func (h *Handler) readRequestBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	if h.maxBodyBytes <= 0 {
		return io.ReadAll(r.Body)
	}

	limited := io.LimitReader(r.Body, h.maxBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > h.maxBodyBytes {
		return nil, fmt.Errorf("%w (%d bytes)", errRequestBodyTooLarge, h.maxBodyBytes)
	}
	return body, nil
}

func (h *Handler) enter() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.inflight.Add(1)
	return true
}

// drain rejects new requests and waits for in-flight ones to finish.
func (h *Handler) drain() {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()
	h.inflight.Wait()
}

package printer

import (
	"bytes"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funnyzak/botfake/internal/config"
	"github.com/funnyzak/botfake/pkg/exchange"
)

func init() {
	color.NoColor = true
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Fatal(string, ...interface{}) {}

func newTestConsole(cfg *config.OutputConfig) (*ConsolePrinter, *bytes.Buffer) {
	p := NewConsolePrinter(noopLogger{}, cfg)
	buf := &bytes.Buffer{}
	p.SetOutput(buf)
	p.width = 80
	return p, buf
}

func sendMessageExchange() *exchange.Exchange {
	return &exchange.Exchange{
		Scenario:    "Single getUpdates and send messages",
		Step:        2,
		Expectation: `Client sends message "Hi!"`,
		Method:      http.MethodPost,
		Path:        "/bot123/sendMessage",
		Headers: http.Header{
			"Content-Type":  {"application/json"},
			"Authorization": {"secret"},
			"Connection":    {"keep-alive"},
		},
		Body:         []byte(`{"chat_id":104519755,"text":"Hi!"}`),
		ContentType:  "application/json",
		Timestamp:    time.Now(),
		Status:       http.StatusOK,
		ResponseSize: 120,
		Outcome:      exchange.OutcomeFulfilled,
		Duration:     1500 * time.Microsecond,
	}
}

func TestConsolePrinter_PrintExchange(t *testing.T) {
	p, buf := newTestConsole(&config.OutputConfig{PrettyJSON: true})

	require.NoError(t, p.PrintExchange(sendMessageExchange()))
	out := buf.String()

	assert.Contains(t, out, "Step #2")
	assert.Contains(t, out, `Client sends message "Hi!"`)
	assert.Contains(t, out, "POST /bot123/sendMessage")
	assert.Contains(t, out, `  "chat_id": 104519755,`)
	assert.Contains(t, out, "✓ fulfilled  -> 200 OK, 120 B in 1.5ms")
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, "Authorization: [REDACTED]")
	assert.NotContains(t, out, "Connection:")
}

func TestConsolePrinter_PrintFailedExchange(t *testing.T) {
	p, buf := newTestConsole(&config.OutputConfig{})

	ex := sendMessageExchange()
	ex.Outcome = exchange.OutcomeCheckFailed
	ex.Status = http.StatusBadRequest
	ex.Failure = `Invalid text in message #1: expected "Hi!", got "Hello"`
	require.NoError(t, p.PrintExchange(ex))

	out := buf.String()
	assert.Contains(t, out, "✗ check_failed  -> 400 Bad Request")
	assert.Contains(t, out, ex.Failure)
	assert.Contains(t, out, `{"chat_id":104519755,"text":"Hi!"}`, "body is not indented without pretty_json")

	buf.Reset()
	ex.Outcome = exchange.OutcomeInternalError
	ex.Status = 0
	require.NoError(t, p.PrintExchange(ex))
	assert.Contains(t, buf.String(), "connection aborted")
}

func TestConsolePrinter_BodyVariants(t *testing.T) {
	p, buf := newTestConsole(&config.OutputConfig{MaxPreviewBytes: 8})

	ex := sendMessageExchange()
	ex.Body = []byte("chat_id=104519755&text=Hi%21")
	ex.ContentType = "application/x-www-form-urlencoded"
	require.NoError(t, p.PrintExchange(ex))
	assert.Contains(t, buf.String(), "chat_id ")
	assert.Contains(t, buf.String(), "[Body truncated: showing 8 B of 28 B]")

	buf.Reset()
	ex.Body = nil
	require.NoError(t, p.PrintExchange(ex))
	assert.Contains(t, buf.String(), "[Empty Body - 0 B]")

	buf.Reset()
	ex.Body = []byte{0, 0, 0, 1}
	ex.IsBinary = true
	ex.ContentType = "application/octet-stream"
	require.NoError(t, p.PrintExchange(ex))
	assert.Contains(t, buf.String(), "[Binary Body: application/octet-stream, 4 B. Content skipped.]")
}

func TestConsolePrinter_PrintReport(t *testing.T) {
	p, buf := newTestConsole(nil)

	require.NoError(t, p.PrintReport(Report{
		Scenario:     "getMe error handling",
		Expectations: []string{"first", "second"},
		Fulfilled:    1,
		Err:          errors.New("Expectation not satisfied: second"),
	}))
	out := buf.String()
	assert.Contains(t, out, `Scenario "getMe error handling": FAILED (1 of 2 expected requests received)`)
	assert.Contains(t, out, "✓ 1. first")
	assert.Contains(t, out, "✗ 2. second")
	assert.Contains(t, out, "Expectation not satisfied: second")

	buf.Reset()
	require.NoError(t, p.PrintReport(Report{Scenario: "Single getMe", Expectations: []string{"only"}, Fulfilled: 1}))
	assert.Contains(t, buf.String(), "PASSED")
}

func TestWrapText(t *testing.T) {
	lines := wrapText("aaa bbb ccc ddd", 7)
	assert.Equal(t, []string{"aaa bbb", "ccc ddd"}, lines)
	assert.Equal(t, []string{""}, wrapText("", 10))
}

func TestNewSelectsPrinter(t *testing.T) {
	assert.IsType(t, Discard{}, New(noopLogger{}, &config.OutputConfig{Silence: true, Mode: "json"}))
	assert.IsType(t, &JSONPrinter{}, New(noopLogger{}, &config.OutputConfig{Mode: "json"}))
	assert.IsType(t, &ConsolePrinter{}, New(noopLogger{}, nil))
}

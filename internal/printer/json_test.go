package printer

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funnyzak/botfake/pkg/exchange"
)

func TestJSONPrinter_PrintExchange(t *testing.T) {
	p := NewJSONPrinter(noopLogger{})
	buf := &bytes.Buffer{}
	p.SetOutput(buf)

	ex := &exchange.Exchange{
		ID:        "abc",
		Step:      2,
		Method:    http.MethodPost,
		Path:      "/bot123/sendMessage",
		Timestamp: time.Now(),
		Headers:   http.Header{"Content-Type": {"application/json"}},
		Body:      []byte(`{"text":"<Hi!>"}`),
		Status:    http.StatusOK,
		Outcome:   exchange.OutcomeFulfilled,
	}
	require.NoError(t, p.PrintExchange(ex))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "exchange", decoded["type"])
	assert.Equal(t, `{"text":"<Hi!>"}`, decoded["body_text"])
	assert.Contains(t, buf.String(), "<Hi!>", "HTML is not escaped")

	inner, ok := decoded["exchange"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "fulfilled", inner["outcome"])
	assert.Equal(t, float64(2), inner["step"])
}

func TestJSONPrinter_PrintReport(t *testing.T) {
	p := NewJSONPrinter(noopLogger{})
	buf := &bytes.Buffer{}
	p.SetOutput(buf)

	require.NoError(t, p.PrintReport(Report{
		Scenario:     "Single getMe",
		Expectations: []string{"Client sends getMe request"},
		Fulfilled:    2,
		Err:          errors.New("Error encountered: Unexpected extra request"),
	}))
	require.NoError(t, p.PrintReport(Report{Scenario: "Single getMe", Fulfilled: 1}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var failed jsonReportEnvelope
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &failed))
	assert.Equal(t, "report", failed.Type)
	assert.False(t, failed.Passed)
	assert.Equal(t, []string{"Error encountered: Unexpected extra request"}, failed.Problems)

	var passed jsonReportEnvelope
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &passed))
	assert.True(t, passed.Passed)
	assert.Empty(t, passed.Problems)
}

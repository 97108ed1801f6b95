package matcher

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpectURI(t *testing.T) {
	tests := []struct {
		name     string
		actual   string
		expected string
		errorMsg string
	}{
		{name: "exact", actual: "/bot123/getMe", expected: "/bot123/getMe"},
		{name: "query order ignored", actual: "/bot123/getMe?x=1&y=2", expected: "/bot123/getMe?y=2&x=1"},
		{name: "offset and timeout", actual: "/bot123/getUpdates?timeout=5&offset=851793508", expected: "/bot123/getUpdates?offset=851793508&timeout=5"},
		{name: "wrong path", actual: "/bot123/getMe", expected: "/bot123/getUpdates", errorMsg: "Invalid Path: expected /bot123/getUpdates, got /bot123/getMe"},
		{name: "wrong host", actual: "http://a.example/bot123/getMe", expected: "http://b.example/bot123/getMe", errorMsg: "Invalid Host: expected b.example, got a.example"},
		{name: "missing query", actual: "/bot123/getUpdates", expected: "/bot123/getUpdates?timeout=5", errorMsg: "Invalid Query params: expected timeout=5, got (none)"},
		{name: "extra query", actual: "/bot123/getUpdates?timeout=5&limit=1", expected: "/bot123/getUpdates?timeout=5", errorMsg: "Invalid Query params"},
		{name: "wrong value", actual: "/bot123/getUpdates?offset=1", expected: "/bot123/getUpdates?offset=2", errorMsg: "expected offset=2, got offset=1"},
		{name: "duplicates are distinct", actual: "/x?a=1&a=1", expected: "/x?a=1", errorMsg: "Invalid Query params"},
		{name: "duplicates match duplicates", actual: "/x?a=2&b=0&a=1", expected: "/x?a=1&a=2&b=0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ExpectURI(tt.actual, tt.expected)
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var mm *MismatchError
			require.ErrorAs(t, err, &mm)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestExpectMethod(t *testing.T) {
	assert.NoError(t, ExpectMethod(http.MethodGet, http.MethodGet))

	err := ExpectMethod(http.MethodPost, http.MethodGet)
	require.Error(t, err)
	assert.Equal(t, "Invalid method: expected GET, got POST", err.Error())
}

func TestExpectHeader(t *testing.T) {
	h := http.Header{}
	err := ExpectHeader(h, "Content-Type", "application/json")
	require.Error(t, err)
	assert.Equal(t, "Content-Type header is not set", err.Error())

	h.Set("Content-Type", "application/json; charset=utf-8")
	assert.NoError(t, ExpectHeader(h, "Content-Type", "application/json"))

	h.Set("Content-Type", "text/plain")
	err = ExpectHeader(h, "Content-Type", "application/json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected application/json, got text/plain")

	h.Set("X-Telegram-Bot-Api-Secret-Token", "abc")
	assert.NoError(t, ExpectHeader(h, "x-telegram-bot-api-secret-token", "abc"))
	assert.Error(t, ExpectHeader(h, "X-Telegram-Bot-Api-Secret-Token", "xyz"))
}

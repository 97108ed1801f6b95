// Package exchange holds the record of one request/response pair handled by
// the fake Bot API server.
package exchange

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Outcome classifies how a request was handled.
type Outcome string

const (
	OutcomeFulfilled     Outcome = "fulfilled"
	OutcomeCheckFailed   Outcome = "check_failed"
	OutcomeInternalError Outcome = "internal_error"
)

// Exchange represents one handled request
type Exchange struct {
	ID           string        `json:"id"`
	Scenario     string        `json:"scenario"`
	Step         int           `json:"step"`
	Expectation  string        `json:"expectation,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
	Method       string        `json:"method"`
	Path         string        `json:"path"`
	Query        string        `json:"query"`
	RemoteAddr   string        `json:"remote_addr"`
	UserAgent    string        `json:"user_agent"`
	Headers      http.Header   `json:"headers"`
	Body         []byte        `json:"body"`
	ContentType  string        `json:"content_type"`
	IsBinary     bool          `json:"is_binary"`
	Status       int           `json:"status"`
	ResponseSize int64         `json:"response_size"`
	Outcome      Outcome       `json:"outcome"`
	Failure      string        `json:"failure,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// New creates an exchange record for r. The response side is filled in by
// the caller once the request has been handled.
func New(r *http.Request, body []byte) *Exchange {
	contentType := r.Header.Get("Content-Type")

	return &Exchange{
		ID:          uuid.NewString(),
		Timestamp:   time.Now(),
		Method:      r.Method,
		Path:        r.URL.Path,
		Query:       r.URL.RawQuery,
		RemoteAddr:  clientIP(r),
		UserAgent:   r.UserAgent(),
		Headers:     r.Header.Clone(),
		Body:        body,
		ContentType: contentType,
		IsBinary:    isBinaryContent(contentType, body),
	}
}

// URI returns the path with its query string.
func (e *Exchange) URI() string {
	if e.Query == "" {
		return e.Path
	}
	return e.Path + "?" + e.Query
}

// Failed reports whether the exchange did not fulfil its step.
func (e *Exchange) Failed() bool {
	return e.Outcome != OutcomeFulfilled
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.IndexByte(xff, ','); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Strip the port, keeping bracketed IPv6 hosts intact.
	if idx := strings.LastIndexByte(r.RemoteAddr, ':'); idx >= 0 && !strings.HasSuffix(r.RemoteAddr, "]") {
		return strings.Trim(r.RemoteAddr[:idx], "[]")
	}
	return r.RemoteAddr
}

func isBinaryContent(contentType string, body []byte) bool {
	binaryTypes := []string{
		"image/", "video/", "audio/",
		"application/octet-stream",
		"application/zip", "application/gzip",
		"application/pdf",
	}
	for _, binaryType := range binaryTypes {
		if strings.HasPrefix(contentType, binaryType) {
			return true
		}
	}

	// More than 10% null bytes
	nullCount := 0
	for _, b := range body {
		if b == 0 {
			nullCount++
		}
	}
	return len(body) > 0 && nullCount > len(body)/10
}

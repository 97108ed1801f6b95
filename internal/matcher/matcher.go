// Package matcher compares inbound Bot API requests against scripted
// expectations.
package matcher

import (
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// MismatchError describes a single failed comparison.
type MismatchError struct {
	Message string
}

func (e *MismatchError) Error() string {
	return e.Message
}

func mismatch(format string, args ...interface{}) *MismatchError {
	return &MismatchError{Message: fmt.Sprintf(format, args...)}
}

type queryPair struct {
	key   string
	value string
}

// ExpectURI checks that actual and expected name the same host, path and
// query parameters. Query parameters are compared as a sorted multiset, so
// their order does not matter but duplicates do.
func ExpectURI(actual, expected string) error {
	actualURI, err := url.Parse(actual)
	if err != nil {
		return mismatch("Invalid URI: cannot parse %q: %v", actual, err)
	}
	expectedURI, err := url.Parse(expected)
	if err != nil {
		return mismatch("Invalid URI: cannot parse expected %q: %v", expected, err)
	}

	if actualURI.Host != expectedURI.Host {
		return mismatch("Invalid Host: expected %s, got %s", expectedURI.Host, actualURI.Host)
	}
	if actualURI.Path != expectedURI.Path {
		return mismatch("Invalid Path: expected %s, got %s", expectedURI.Path, actualURI.Path)
	}

	actualQuery, err := sortedQuery(actualURI.RawQuery)
	if err != nil {
		return mismatch("Invalid Query params: cannot parse %q: %v", actualURI.RawQuery, err)
	}
	expectedQuery, err := sortedQuery(expectedURI.RawQuery)
	if err != nil {
		return mismatch("Invalid Query params: cannot parse expected %q: %v", expectedURI.RawQuery, err)
	}
	if !equalPairs(actualQuery, expectedQuery) {
		return mismatch("Invalid Query params: expected %s, got %s",
			formatPairs(expectedQuery), formatPairs(actualQuery))
	}
	return nil
}

// ExpectMethod checks the HTTP verb for exact equality.
func ExpectMethod(actual, expected string) error {
	if actual != expected {
		return mismatch("Invalid method: expected %s, got %s", expected, actual)
	}
	return nil
}

// ExpectHeader checks that header name carries the expected value.
// Content-Type is compared by media type, ignoring parameters like charset.
func ExpectHeader(headers http.Header, name, expected string) error {
	values, ok := headers[http.CanonicalHeaderKey(name)]
	if !ok || len(values) == 0 || values[0] == "" {
		return mismatch("%s header is not set", name)
	}
	actual := values[0]

	if strings.EqualFold(name, "Content-Type") {
		mediaType, _, err := mime.ParseMediaType(actual)
		if err != nil {
			return mismatch("Invalid %s header: cannot parse %q", name, actual)
		}
		if !strings.EqualFold(mediaType, expected) {
			return mismatch("Invalid %s header: expected %s, got %s", name, expected, actual)
		}
		return nil
	}

	if actual != expected {
		return mismatch("Invalid %s header: expected %s, got %s", name, expected, actual)
	}
	return nil
}

func sortedQuery(raw string) ([]queryPair, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, err
	}
	pairs := make([]queryPair, 0, len(values))
	for key, vals := range values {
		for _, v := range vals {
			pairs = append(pairs, queryPair{key: key, value: v})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})
	return pairs, nil
}

func equalPairs(a, b []queryPair) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func formatPairs(pairs []queryPair) string {
	if len(pairs) == 0 {
		return "(none)"
	}
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.key + "=" + p.value
	}
	return strings.Join(parts, "&")
}

// Package scenario implements the scripted request/response exchanges the
// fake Bot API server enforces.
//
// A TestCase walks an ordered list of steps. Every inbound request consumes
// exactly one step, whether it matches or not, so a client that retries a
// bad request cannot slip past the script.
package scenario

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/ohler55/ojg/jp"

	"github.com/funnyzak/botfake/internal/fixtures"
)

const (
	contentTypeJSON = "application/json"
	contentTypeText = "text/plain; charset=utf-8"
)

// Response is the canned reply for one step.
type Response struct {
	Status      int
	Fixture     string // name in the fixtures package; takes precedence over Body
	Body        string
	ContentType string
}

func (r Response) render() ([]byte, string, error) {
	contentType := r.ContentType
	if r.Fixture != "" {
		body, err := fixtures.Get(r.Fixture)
		if err != nil {
			return nil, "", err
		}
		if contentType == "" {
			contentType = contentTypeJSON
		}
		return body, contentType, nil
	}
	if contentType == "" {
		contentType = contentTypeText
	}
	return []byte(r.Body), contentType, nil
}

func (r Response) status() int {
	if r.Status == 0 {
		return http.StatusOK
	}
	return r.Status
}

// Step is one scripted exchange.
type Step struct {
	Description string
	// Expect validates the request. It returns the *CheckError produced by
	// the Call helpers on a mismatch, or any other error for requests that
	// cannot be evaluated at all.
	Expect   func(*Call) error
	Response Response
	// Capture maps a variable name to a JSONPath evaluated against the
	// served response body. Later steps read it back with ${name}.
	Capture map[string]string
}

// TestCase is the state of one scenario run. It is not safe for concurrent
// use: callers serialize access through Lock and Unlock.
type TestCase struct {
	sync.Mutex

	name         string
	steps        []Step
	expectations []string
	fulfilled    int
	fails        []string
	vars         map[string]string
}

func newTestCase(name string, steps []Step) *TestCase {
	expectations := make([]string, len(steps))
	for i, step := range steps {
		expectations[i] = step.Description
	}
	return &TestCase{
		name:         name,
		steps:        steps,
		expectations: expectations,
		vars:         make(map[string]string),
	}
}

// Name returns the scenario name.
func (tc *TestCase) Name() string {
	return tc.name
}

// Expectations returns the ordered expectation descriptions.
func (tc *TestCase) Expectations() []string {
	out := make([]string, len(tc.expectations))
	copy(out, tc.expectations)
	return out
}

// Expectation returns the description of the 1-based step n, or "" when n
// is outside the script.
func (tc *TestCase) Expectation(n int) string {
	if n < 1 || n > len(tc.expectations) {
		return ""
	}
	return tc.expectations[n-1]
}

// Fulfilled returns how many requests have been handled so far.
func (tc *TestCase) Fulfilled() int {
	return tc.fulfilled
}

// Failures returns the recorded failure messages.
func (tc *TestCase) Failures() []string {
	out := make([]string, len(tc.fails))
	copy(out, tc.fails)
	return out
}

// Var returns a captured variable.
func (tc *TestCase) Var(name string) (string, bool) {
	v, ok := tc.vars[name]
	return v, ok
}

// Fail records message and returns the matching *CheckError.
func (tc *TestCase) Fail(message string) error {
	tc.fails = append(tc.fails, message)
	return &CheckError{Message: message}
}

// RecordFailure records message without producing a check error. It is used
// for failures that are not scripted mismatches.
func (tc *TestCase) RecordFailure(message string) {
	tc.fails = append(tc.fails, message)
}

// HandleRequest consumes the next step for r and writes its response to w.
// The counter is advanced before validation.
func (tc *TestCase) HandleRequest(w http.ResponseWriter, r *http.Request) error {
	tc.fulfilled++
	n := tc.fulfilled
	if n > len(tc.steps) {
		return tc.Fail("Unexpected extra request")
	}
	step := tc.steps[n-1]

	call := &Call{Request: r, tc: tc, step: n}
	if step.Expect != nil {
		if err := step.Expect(call); err != nil {
			return err
		}
	}

	body, contentType, err := step.Response.render()
	if err != nil {
		return fmt.Errorf("step %d response: %w", n, err)
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(step.Response.status())
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("step %d write response: %w", n, err)
	}

	tc.capture(n, step.Capture, body)
	return nil
}

// Reject consumes the next step without serving it and records message as
// a failure. It is used when a request cannot be handed to its step at all.
func (tc *TestCase) Reject(message string) {
	tc.fulfilled++
	tc.RecordFailure(message)
}

// Check reports every unmet expectation and every recorded failure. Call it
// once the server has stopped.
func (tc *TestCase) Check() error {
	var unmet []string
	for i := tc.fulfilled; i < len(tc.expectations); i++ {
		unmet = append(unmet, tc.expectations[i])
	}
	if len(unmet) == 0 && len(tc.fails) == 0 {
		return nil
	}
	return &ExpectationError{
		Scenario: tc.name,
		Unmet:    unmet,
		Failures: tc.Failures(),
	}
}

func (tc *TestCase) capture(n int, paths map[string]string, body []byte) {
	if len(paths) == 0 {
		return
	}
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		tc.RecordFailure(fmt.Sprintf("Step %d capture: response is not JSON: %v", n, err))
		return
	}

	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value, found, err := lookupPath(doc, paths[name])
		if err != nil {
			tc.RecordFailure(fmt.Sprintf("Step %d capture %s: %v", n, name, err))
			continue
		}
		if !found {
			tc.RecordFailure(fmt.Sprintf("Step %d capture %s: nothing at %s", n, name, paths[name]))
			continue
		}
		tc.vars[name] = formatValue(value)
	}
}

func lookupPath(doc interface{}, path string) (interface{}, bool, error) {
	expr, err := jp.ParseString(path)
	if err != nil {
		return nil, false, fmt.Errorf("invalid JSONPath %q: %w", path, err)
	}
	results := expr.Get(doc)
	if len(results) == 0 {
		return nil, false, nil
	}
	return results[0], true, nil
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

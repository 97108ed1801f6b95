package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/funnyzak/botfake/internal/matcher"
)

// Call is the view of one inbound request that a step validator works with.
// Its Expect helpers record mismatches on the test case and return a
// *CheckError.
type Call struct {
	Request *http.Request

	tc       *TestCase
	step     int
	body     []byte
	bodyRead bool
	doc      interface{}
	parsed   bool
}

// Step returns the 1-based step number being validated.
func (c *Call) Step() int {
	return c.step
}

// Fail records message as a failure of this step.
func (c *Call) Fail(message string) error {
	return c.tc.Fail(message)
}

// Failf is Fail with formatting.
func (c *Call) Failf(format string, args ...interface{}) error {
	return c.tc.Fail(fmt.Sprintf(format, args...))
}

func (c *Call) check(err error) error {
	if err == nil {
		return nil
	}
	return c.tc.Fail(err.Error())
}

var varPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// Expand substitutes ${name} with captured variables. Any other text,
// including a bare $ or a ${name} that was never captured, stays literal.
func (c *Call) Expand(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(ref string) string {
		if v, ok := c.tc.vars[ref[2:len(ref)-1]]; ok {
			return v
		}
		return ref
	})
}

// RequestURI returns the request target as sent by the client.
func (c *Call) RequestURI() string {
	if c.Request.RequestURI != "" {
		return c.Request.RequestURI
	}
	return c.Request.URL.RequestURI()
}

// ExpectURI matches the request target against uri after variable expansion.
func (c *Call) ExpectURI(uri string) error {
	return c.check(matcher.ExpectURI(c.RequestURI(), c.Expand(uri)))
}

// ExpectMethod matches the HTTP verb.
func (c *Call) ExpectMethod(method string) error {
	return c.check(matcher.ExpectMethod(c.Request.Method, method))
}

// ExpectHeader matches one request header after variable expansion.
func (c *Call) ExpectHeader(name, value string) error {
	return c.check(matcher.ExpectHeader(c.Request.Header, name, c.Expand(value)))
}

// Body reads the request body once and caches it.
func (c *Call) Body() ([]byte, error) {
	if c.bodyRead {
		return c.body, nil
	}
	c.bodyRead = true
	if c.Request.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	c.body = data
	return data, nil
}

// JSON decodes the request body into a generic document.
func (c *Call) JSON() (interface{}, error) {
	if c.parsed {
		return c.doc, nil
	}
	body, err := c.Body()
	if err != nil {
		return nil, err
	}
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	c.doc = doc
	c.parsed = true
	return doc, nil
}

// ExpectJSONField checks the first value at a JSONPath in the request body.
// Values are compared by their textual form, so 42 and "42" are equal.
func (c *Call) ExpectJSONField(path string, expected interface{}) error {
	doc, err := c.JSON()
	if err != nil {
		return err
	}
	value, found, err := lookupPath(doc, path)
	if err != nil {
		return err
	}
	if !found {
		return c.Failf("Missing body field %s", path)
	}

	want := formatValue(expected)
	if s, ok := expected.(string); ok {
		want = c.Expand(s)
	}
	if got := formatValue(value); got != want {
		return c.Failf("Invalid body field %s: expected %s, got %s", path, want, got)
	}
	return nil
}

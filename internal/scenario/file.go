package scenario

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/ohler55/ojg/jp"
	"gopkg.in/yaml.v3"

	"github.com/funnyzak/botfake/internal/fixtures"
)

// fileSpec is the YAML layout of a scenario file:
//
//	scenarios:
//	  - name: Echo
//	    steps:
//	      - description: Client sends getMe request
//	        request:
//	          method: GET
//	          uri: /bot123/getMe
//	        response:
//	          status: 200
//	          fixture: getMe
type fileSpec struct {
	Scenarios []scenarioSpec `yaml:"scenarios"`
}

type scenarioSpec struct {
	Name  string     `yaml:"name"`
	Steps []stepSpec `yaml:"steps"`
}

type stepSpec struct {
	Description string            `yaml:"description"`
	Request     requestSpec       `yaml:"request"`
	Response    responseSpec      `yaml:"response"`
	Capture     map[string]string `yaml:"capture"`
}

type requestSpec struct {
	Method  string                 `yaml:"method"`
	URI     string                 `yaml:"uri"`
	Headers map[string]string      `yaml:"headers"`
	JSON    map[string]interface{} `yaml:"json"`
}

type responseSpec struct {
	Status      int    `yaml:"status"`
	Fixture     string `yaml:"fixture"`
	Body        string `yaml:"body"`
	ContentType string `yaml:"content_type"`
}

// LoadFile registers the scenarios defined in a YAML file.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read scenario file: %w", err)
	}
	if err := r.Load(data); err != nil {
		return fmt.Errorf("scenario file %s: %w", path, err)
	}
	return nil
}

// Load registers the scenarios defined in YAML data.
func (r *Registry) Load(data []byte) error {
	var spec fileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("parse scenarios: %w", err)
	}
	if len(spec.Scenarios) == 0 {
		return errors.New("no scenarios defined")
	}

	compiled := make(map[string][]Step, len(spec.Scenarios))
	for i, sc := range spec.Scenarios {
		name := strings.TrimSpace(sc.Name)
		if name == "" {
			return fmt.Errorf("scenario %d: name cannot be empty", i+1)
		}
		if _, dup := compiled[name]; dup {
			return fmt.Errorf("scenario %q defined twice", name)
		}
		if len(sc.Steps) == 0 {
			return fmt.Errorf("scenario %q: no steps", name)
		}
		steps := make([]Step, 0, len(sc.Steps))
		for j, st := range sc.Steps {
			step, err := compileStep(st)
			if err != nil {
				return fmt.Errorf("scenario %q step %d: %w", name, j+1, err)
			}
			steps = append(steps, step)
		}
		compiled[name] = steps
	}
	return r.add(compiled)
}

func compileStep(spec stepSpec) (Step, error) {
	method := strings.ToUpper(strings.TrimSpace(spec.Request.Method))
	if method == "" {
		return Step{}, errors.New("request method cannot be empty")
	}
	if !strings.HasPrefix(spec.Request.URI, "/") {
		return Step{}, errors.New("request uri must start with '/'")
	}

	status := spec.Response.Status
	if status == 0 {
		status = http.StatusOK
	}
	if status < 100 || status > 599 {
		return Step{}, fmt.Errorf("response status %d must be between 100 and 599", status)
	}
	if spec.Response.Fixture != "" {
		if _, err := fixtures.Get(spec.Response.Fixture); err != nil {
			return Step{}, err
		}
	}

	for path := range spec.Request.JSON {
		if _, err := jp.ParseString(path); err != nil {
			return Step{}, fmt.Errorf("request json path %q: %w", path, err)
		}
	}
	for name, path := range spec.Capture {
		if _, err := jp.ParseString(path); err != nil {
			return Step{}, fmt.Errorf("capture %s path %q: %w", name, path, err)
		}
	}

	description := strings.TrimSpace(spec.Description)
	if description == "" {
		description = fmt.Sprintf("Client sends %s %s", method, spec.Request.URI)
	}

	return Step{
		Description: description,
		Expect:      expectSpec(method, spec.Request),
		Response: Response{
			Status:      status,
			Fixture:     spec.Response.Fixture,
			Body:        spec.Response.Body,
			ContentType: spec.Response.ContentType,
		},
		Capture: spec.Capture,
	}, nil
}

func expectSpec(method string, req requestSpec) func(*Call) error {
	headers := sortedKeys(req.Headers)
	fields := make([]string, 0, len(req.JSON))
	for path := range req.JSON {
		fields = append(fields, path)
	}
	sort.Strings(fields)

	return func(c *Call) error {
		if err := expectRequest(method, req.URI)(c); err != nil {
			return err
		}
		for _, name := range headers {
			if err := c.ExpectHeader(name, req.Headers[name]); err != nil {
				return err
			}
		}
		for _, path := range fields {
			if err := c.ExpectJSONField(path, req.JSON[path]); err != nil {
				return err
			}
		}
		return nil
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

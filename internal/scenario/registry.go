package scenario

import (
	"fmt"
	"sort"
	"sync"
)

// Registry resolves scenario names to step tables.
type Registry struct {
	mu        sync.RWMutex
	scenarios map[string][]Step
}

// NewRegistry returns a registry holding the built-in scenarios.
func NewRegistry() *Registry {
	return &Registry{scenarios: builtins()}
}

// New returns a fresh TestCase for the named scenario.
func (r *Registry) New(name string) (*TestCase, error) {
	r.mu.RLock()
	steps, ok := r.scenarios[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	return newTestCase(name, steps), nil
}

// Names lists the registered scenario names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.scenarios))
	for name := range r.scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Expectations returns the expectation descriptions of the named scenario.
func (r *Registry) Expectations(name string) ([]string, error) {
	tc, err := r.New(name)
	if err != nil {
		return nil, err
	}
	return tc.Expectations(), nil
}

func (r *Registry) add(scenarios map[string][]Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name := range scenarios {
		if _, exists := r.scenarios[name]; exists {
			return fmt.Errorf("scenario %q is already registered", name)
		}
	}
	for name, steps := range scenarios {
		r.scenarios[name] = steps
	}
	return nil
}

var defaultRegistry = NewRegistry()

// New returns a fresh TestCase for a built-in scenario.
func New(name string) (*TestCase, error) {
	return defaultRegistry.New(name)
}

// Names lists the built-in scenario names.
func Names() []string {
	return defaultRegistry.Names()
}

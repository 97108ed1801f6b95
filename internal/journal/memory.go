package journal

import (
	"errors"
	"strings"
	"sync"

	"github.com/funnyzak/botfake/pkg/exchange"
)

// Memory keeps recent exchanges in-memory using a ring buffer.
type Memory struct {
	mu    sync.RWMutex
	max   int
	items []*exchange.Exchange
}

// NewMemory creates a Memory journal with the provided capacity.
func NewMemory(max int) *Memory {
	if max < 1 {
		max = 1
	}
	return &Memory{
		max:   max,
		items: make([]*exchange.Exchange, 0, max),
	}
}

// Record stores an exchange, dropping the oldest one when full.
func (m *Memory) Record(ex *exchange.Exchange) error {
	if ex == nil {
		return errors.New("exchange is nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.items) >= m.max {
		copy(m.items, m.items[1:])
		m.items[len(m.items)-1] = ex
	} else {
		m.items = append(m.items, ex)
	}
	return nil
}

// List returns filtered exchanges (newest first) along with the total count.
func (m *Memory) List(opts ListOptions) ([]*exchange.Exchange, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(opts.Search))
	method := strings.ToUpper(strings.TrimSpace(opts.Method))

	filtered := make([]*exchange.Exchange, 0, len(m.items))
	for i := len(m.items) - 1; i >= 0; i-- {
		item := m.items[i]

		if method != "" && strings.ToUpper(item.Method) != method {
			continue
		}
		if opts.Scenario != "" && item.Scenario != opts.Scenario {
			continue
		}
		if opts.Outcome != "" && item.Outcome != opts.Outcome {
			continue
		}
		if search != "" && !matchesSearch(item, search) {
			continue
		}
		filtered = append(filtered, item)
	}

	total := len(filtered)
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if opts.Limit > 0 && offset+opts.Limit < total {
		end = offset + opts.Limit
	}

	return filtered[offset:end], total, nil
}

// Get locates an exchange by id.
func (m *Memory) Get(id string) (*exchange.Exchange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.items) - 1; i >= 0; i-- {
		if m.items[i].ID == id {
			return m.items[i], nil
		}
	}
	return nil, nil
}

// Close implements Store.
func (m *Memory) Close() error {
	return nil
}

func matchesSearch(item *exchange.Exchange, term string) bool {
	target := strings.ToLower(
		item.Path + " " +
			item.Query + " " +
			item.RemoteAddr + " " +
			item.UserAgent + " " +
			item.Expectation + " " +
			item.Failure,
	)
	if strings.Contains(target, term) {
		return true
	}

	for key, values := range item.Headers {
		if strings.Contains(strings.ToLower(key), term) {
			return true
		}
		for _, val := range values {
			if strings.Contains(strings.ToLower(val), term) {
				return true
			}
		}
	}
	return false
}

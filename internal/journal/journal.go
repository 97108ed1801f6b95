// Package journal keeps the exchanges handled by the fake server so they can
// be inspected while a scenario runs. Scenarios never read it back.
package journal

import (
	"errors"
	"fmt"
	"strings"

	"github.com/funnyzak/botfake/internal/config"
	"github.com/funnyzak/botfake/internal/logger"
	"github.com/funnyzak/botfake/pkg/exchange"
)

// ErrUnsupportedDriver indicates the configured driver is not available.
var ErrUnsupportedDriver = errors.New("unsupported journal driver")

// ListOptions controls filtering and pagination when fetching exchanges.
type ListOptions struct {
	Search   string
	Method   string
	Scenario string
	Outcome  exchange.Outcome
	Limit    int
	Offset   int
}

// Store defines the persistence contract for handled exchanges.
type Store interface {
	Record(*exchange.Exchange) error
	// List returns matching exchanges newest first, with the total number
	// of matches before pagination.
	List(ListOptions) ([]*exchange.Exchange, int, error)
	// Get returns nil when no exchange has the id.
	Get(id string) (*exchange.Exchange, error)
	Close() error
}

// New instantiates a Store based on configuration.
func New(cfg *config.JournalConfig, log logger.Logger) (Store, error) {
	if cfg == nil {
		return nil, errors.New("journal config is nil")
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", config.JournalMemory:
		return NewMemory(cfg.MaxRecords), nil
	case config.JournalSQLite, "sqlite3":
		return newSQLiteStore(cfg, log)
	case config.JournalNone:
		return discard{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
}

type discard struct{}

func (discard) Record(*exchange.Exchange) error { return nil }
func (discard) List(ListOptions) ([]*exchange.Exchange, int, error) {
	return nil, 0, nil
}
func (discard) Get(string) (*exchange.Exchange, error) { return nil, nil }
func (discard) Close() error                           { return nil }

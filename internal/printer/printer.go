package printer

import (
	"github.com/funnyzak/botfake/internal/config"
	"github.com/funnyzak/botfake/internal/logger"
	"github.com/funnyzak/botfake/pkg/exchange"
)

// Printer renders exchanges and the final scenario report.
type Printer interface {
	PrintExchange(*exchange.Exchange) error
	PrintReport(Report) error
}

// Report summarizes a finished scenario run.
type Report struct {
	Scenario     string
	Expectations []string
	Fulfilled    int
	// Err is the result of checking the scenario's expectations.
	Err error
}

// Passed reports whether the run met every expectation.
func (r Report) Passed() bool {
	return r.Err == nil
}

// New creates a Printer for the configured output mode.
func New(log logger.Logger, cfg *config.OutputConfig) Printer {
	if cfg == nil {
		cfg = &config.OutputConfig{}
	}
	if cfg.Silence {
		return Discard{}
	}
	switch cfg.Mode {
	case "json":
		return NewJSONPrinter(log)
	default:
		return NewConsolePrinter(log, cfg)
	}
}

// Discard drops everything.
type Discard struct{}

func (Discard) PrintExchange(*exchange.Exchange) error { return nil }
func (Discard) PrintReport(Report) error               { return nil }

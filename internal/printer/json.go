package printer

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/funnyzak/botfake/internal/logger"
	"github.com/funnyzak/botfake/pkg/exchange"
)

// JSONPrinter writes exchanges and the report as JSON lines
type JSONPrinter struct {
	mu      sync.Mutex
	encoder *json.Encoder
	logger  logger.Logger
}

// NewJSONPrinter creates a JSON printer writing to stdout
func NewJSONPrinter(log logger.Logger) *JSONPrinter {
	p := &JSONPrinter{logger: log}
	p.SetOutput(os.Stdout)
	return p
}

// SetOutput replaces the output target
func (p *JSONPrinter) SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)

	p.mu.Lock()
	p.encoder = encoder
	p.mu.Unlock()
}

type jsonExchangeEnvelope struct {
	Type     string             `json:"type"`
	Exchange *exchange.Exchange `json:"exchange"`
	BodyText string             `json:"body_text,omitempty"`
}

type jsonReportEnvelope struct {
	Type         string   `json:"type"`
	Scenario     string   `json:"scenario"`
	Passed       bool     `json:"passed"`
	Expectations []string `json:"expectations"`
	Fulfilled    int      `json:"fulfilled"`
	Problems     []string `json:"problems,omitempty"`
}

// PrintExchange implements Printer
func (p *JSONPrinter) PrintExchange(ex *exchange.Exchange) error {
	env := jsonExchangeEnvelope{Type: "exchange", Exchange: ex}
	if !ex.IsBinary && len(ex.Body) > 0 {
		env.BodyText = string(ex.Body)
	}
	return p.encode(env)
}

// PrintReport implements Printer
func (p *JSONPrinter) PrintReport(r Report) error {
	env := jsonReportEnvelope{
		Type:         "report",
		Scenario:     r.Scenario,
		Passed:       r.Passed(),
		Expectations: r.Expectations,
		Fulfilled:    r.Fulfilled,
	}
	if r.Err != nil {
		env.Problems = strings.Split(r.Err.Error(), "\n")
	}
	return p.encode(env)
}

func (p *JSONPrinter) encode(v interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.encoder.Encode(v); err != nil {
		if p.logger != nil {
			p.logger.Error("Failed to encode JSON output", "error", err)
		}
		return err
	}
	return nil
}

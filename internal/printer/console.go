package printer

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/funnyzak/botfake/internal/config"
	"github.com/funnyzak/botfake/internal/logger"
	"github.com/funnyzak/botfake/pkg/exchange"
)

// ColorScheme color scheme
type ColorScheme struct {
	MethodGET      *color.Color
	MethodPOST     *color.Color
	HeaderKey      *color.Color
	HeaderValue    *color.Color
	Separator      *color.Color
	Timestamp      *color.Color
	BodyContent    *color.Color
	BinaryNotice   *color.Color
	TruncateNotice *color.Color
	RemoteAddr     *color.Color
	Query          *color.Color
	Fulfilled      *color.Color
	Failed         *color.Color
	Expectation    *color.Color
}

// NewColorScheme creates a new color scheme
func NewColorScheme() *ColorScheme {
	return &ColorScheme{
		MethodGET:      color.New(color.FgBlue, color.Bold),
		MethodPOST:     color.New(color.FgGreen, color.Bold),
		HeaderKey:      color.New(color.FgCyan),
		HeaderValue:    color.New(color.FgWhite),
		Separator:      color.New(color.FgYellow, color.Bold),
		Timestamp:      color.New(color.FgHiBlack),
		BodyContent:    color.New(color.FgWhite),
		BinaryNotice:   color.New(color.FgHiRed, color.Bold),
		TruncateNotice: color.New(color.FgHiYellow, color.Bold),
		RemoteAddr:     color.New(color.FgHiBlue),
		Query:          color.New(color.FgHiMagenta),
		Fulfilled:      color.New(color.FgGreen, color.Bold),
		Failed:         color.New(color.FgRed, color.Bold),
		Expectation:    color.New(color.FgHiWhite, color.Italic),
	}
}

// ConsolePrinter console printer
type ConsolePrinter struct {
	colorScheme *ColorScheme
	logger      logger.Logger
	cfg         *config.OutputConfig
	width       int

	mu  sync.Mutex
	out io.Writer
}

// NewConsolePrinter creates a new console printer
func NewConsolePrinter(log logger.Logger, cfg *config.OutputConfig) *ConsolePrinter {
	if cfg == nil {
		cfg = &config.OutputConfig{}
	}
	return &ConsolePrinter{
		colorScheme: NewColorScheme(),
		logger:      log,
		cfg:         cfg,
		out:         os.Stdout,
	}
}

// SetOutput replaces the output target
func (p *ConsolePrinter) SetOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	p.out = w
}

// getTerminalWidth gets the current terminal width with fallback
func (p *ConsolePrinter) getTerminalWidth() int {
	if p.width > 0 {
		return clampWidth(p.width)
	}
	if env := os.Getenv("BOTFAKE_TERM_WIDTH"); env != "" {
		if width, err := strconv.Atoi(env); err == nil {
			return clampWidth(width)
		}
	}
	if f, ok := p.out.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			return clampWidth(width)
		}
	}
	return 80
}

func clampWidth(width int) int {
	switch {
	case width < 40:
		return 40
	case width > 150:
		return 150
	default:
		return width
	}
}

// wrapText wraps text to fit within maxWidth, preserving words
func wrapText(text string, maxWidth int) []string {
	words := strings.Fields(text)
	if maxWidth <= 0 || len(words) == 0 {
		return []string{text}
	}

	var lines []string
	currentLine := words[0]
	currentWidth := utf8.RuneCountInString(currentLine)
	for _, word := range words[1:] {
		wordWidth := utf8.RuneCountInString(word)
		if currentWidth+1+wordWidth > maxWidth {
			lines = append(lines, currentLine)
			currentLine = word
			currentWidth = wordWidth
			continue
		}
		currentLine += " " + word
		currentWidth += 1 + wordWidth
	}
	return append(lines, currentLine)
}

// PrintExchange prints one handled request and the outcome of its step
func (p *ConsolePrinter) PrintExchange(ex *exchange.Exchange) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	width := p.getTerminalWidth()
	separator := strings.Repeat("-", width)

	p.colorScheme.Separator.Fprintln(p.out, separator)
	p.printStepLine(ex)
	p.printMetadataLine(ex)
	p.colorScheme.Separator.Fprintln(p.out, separator)
	fmt.Fprintln(p.out)

	p.printRequestLine(ex)
	p.printHeaders(ex.Headers, width)
	fmt.Fprintln(p.out)
	p.printBody(ex)
	fmt.Fprintln(p.out)
	p.printOutcome(ex)
	fmt.Fprintln(p.out)
	return nil
}

func (p *ConsolePrinter) printStepLine(ex *exchange.Exchange) {
	p.colorScheme.Separator.Fprintf(p.out, "Step #%d  ", ex.Step)
	p.colorScheme.Timestamp.Fprint(p.out, ex.Timestamp.Format(time.RFC3339))
	if ex.Expectation != "" {
		fmt.Fprint(p.out, "  ")
		p.colorScheme.Expectation.Fprint(p.out, ex.Expectation)
	}
	fmt.Fprintln(p.out)
}

func (p *ConsolePrinter) printMetadataLine(ex *exchange.Exchange) {
	first := true
	addSep := func() {
		if first {
			first = false
			return
		}
		fmt.Fprint(p.out, " | ")
	}

	if ex.RemoteAddr != "" {
		addSep()
		fmt.Fprint(p.out, "Remote: ")
		p.colorScheme.RemoteAddr.Fprint(p.out, ex.RemoteAddr)
	}
	if ex.UserAgent != "" {
		addSep()
		fmt.Fprint(p.out, "UA: ")
		p.colorScheme.BodyContent.Fprint(p.out, ex.UserAgent)
	}
	if ex.ContentType != "" {
		addSep()
		fmt.Fprint(p.out, "Content-Type: ")
		p.colorScheme.HeaderValue.Fprint(p.out, ex.ContentType)
	}
	addSep()
	fmt.Fprint(p.out, "Size: ")
	p.colorScheme.BodyContent.Fprint(p.out, humanize.Bytes(uint64(len(ex.Body))))
	fmt.Fprintln(p.out)
}

func (p *ConsolePrinter) printRequestLine(ex *exchange.Exchange) {
	method := strings.ToUpper(ex.Method)
	path := ex.Path
	if path == "" {
		path = "/"
	}

	p.getMethodColor(method).Fprintf(p.out, "%s ", method)
	fmt.Fprint(p.out, path)
	if ex.Query != "" {
		fmt.Fprint(p.out, "?")
		p.colorScheme.Query.Fprint(p.out, ex.Query)
	}
	fmt.Fprintln(p.out)
}

func (p *ConsolePrinter) printHeaders(headers http.Header, width int) {
	keys := make([]string, 0, len(headers))
	for key := range headers {
		if shouldSkipHeader(strings.ToLower(key)) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := strings.Join(headers[key], ", ")
		if isSensitiveHeader(strings.ToLower(key)) {
			value = "[REDACTED]"
		}
		p.printHeaderLine(key, value, width)
	}
}

func (p *ConsolePrinter) printHeaderLine(key, value string, width int) {
	prefix := key + ": "
	available := width - utf8.RuneCountInString(prefix)
	if available < 20 {
		available = 20
	}

	wrapped := wrapText(value, available)
	p.colorScheme.HeaderKey.Fprint(p.out, prefix)
	p.colorScheme.HeaderValue.Fprintln(p.out, wrapped[0])

	indent := strings.Repeat(" ", utf8.RuneCountInString(prefix))
	for _, line := range wrapped[1:] {
		fmt.Fprint(p.out, indent)
		p.colorScheme.HeaderValue.Fprintln(p.out, line)
	}
}

func (p *ConsolePrinter) printBody(ex *exchange.Exchange) {
	bodySize := humanize.Bytes(uint64(len(ex.Body)))
	if len(ex.Body) == 0 {
		p.colorScheme.BodyContent.Fprintf(p.out, "[Empty Body - %s]\n", bodySize)
		return
	}
	if ex.IsBinary {
		p.colorScheme.BinaryNotice.Fprintf(p.out, "[Binary Body: %s, %s. Content skipped.]\n", ex.ContentType, bodySize)
		return
	}

	formatted := formatBody(ex, p.cfg)
	for _, line := range strings.Split(formatted.Text, "\n") {
		p.colorScheme.BodyContent.Fprintln(p.out, strings.TrimRight(line, "\r"))
	}
	for _, notice := range formatted.Notices {
		p.colorScheme.TruncateNotice.Fprintln(p.out, notice)
	}
}

func (p *ConsolePrinter) printOutcome(ex *exchange.Exchange) {
	status := fmt.Sprintf("%d %s", ex.Status, http.StatusText(ex.Status))
	if ex.Status == 0 {
		status = "connection aborted"
	}
	took := ex.Duration.Round(time.Microsecond)

	if !ex.Failed() {
		p.colorScheme.Fulfilled.Fprint(p.out, "✓ fulfilled")
		fmt.Fprintf(p.out, "  -> %s, %s in %s\n", status, humanize.Bytes(uint64(ex.ResponseSize)), took)
		return
	}
	p.colorScheme.Failed.Fprintf(p.out, "✗ %s", ex.Outcome)
	fmt.Fprintf(p.out, "  -> %s in %s\n", status, took)
	if ex.Failure != "" {
		p.colorScheme.Failed.Fprintln(p.out, ex.Failure)
	}
}

// PrintReport prints the scenario verdict
func (p *ConsolePrinter) PrintReport(r Report) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.colorScheme.Separator.Fprintln(p.out, strings.Repeat("=", p.getTerminalWidth()))
	fmt.Fprintf(p.out, "Scenario %q: ", r.Scenario)
	if r.Passed() {
		p.colorScheme.Fulfilled.Fprint(p.out, "PASSED")
	} else {
		p.colorScheme.Failed.Fprint(p.out, "FAILED")
	}
	fmt.Fprintf(p.out, " (%d of %d expected requests received)\n",
		r.Fulfilled, len(r.Expectations))

	for i, desc := range r.Expectations {
		mark := p.colorScheme.Fulfilled.Sprint("✓")
		if i >= r.Fulfilled {
			mark = p.colorScheme.Failed.Sprint("✗")
		}
		fmt.Fprintf(p.out, "  %s %d. %s\n", mark, i+1, desc)
	}
	if r.Err != nil {
		fmt.Fprintln(p.out)
		for _, line := range strings.Split(r.Err.Error(), "\n") {
			p.colorScheme.Failed.Fprintln(p.out, line)
		}
	}
	return nil
}

// getMethodColor gets the corresponding color based on HTTP method
func (p *ConsolePrinter) getMethodColor(method string) *color.Color {
	switch method {
	case http.MethodGet:
		return p.colorScheme.MethodGET
	case http.MethodPost:
		return p.colorScheme.MethodPOST
	default:
		return color.New(color.FgWhite, color.Bold)
	}
}

// isSensitiveHeader checks if it's sensitive header information
func isSensitiveHeader(key string) bool {
	switch key {
	case "authorization", "cookie", "set-cookie", "x-api-key", "x-auth-token":
		return true
	}
	return false
}

// shouldSkipHeader checks if header should be skipped from display
func shouldSkipHeader(key string) bool {
	switch key {
	case "connection", "keep-alive", "proxy-connection", "te", "trailer", "transfer-encoding", "upgrade":
		return true
	}
	return false
}

// Package fakeserver runs a scripted fake Telegram Bot API server for
// client library tests.
//
//	srv := fakeserver.Run(t, "Single getMe", fakeserver.WithPort(0))
//	bot := mybot.New("123", mybot.WithBaseURL(srv.URL()))
//
// Run stops the server when the test finishes and fails the test with the
// aggregated report if the client did not follow the script exactly.
package fakeserver

import (
	"io"
	"strings"
	"testing"

	"github.com/funnyzak/botfake/internal/config"
	"github.com/funnyzak/botfake/internal/logger"
	"github.com/funnyzak/botfake/internal/scenario"
	"github.com/funnyzak/botfake/internal/server"
)

// Built-in scenario names.
const (
	SingleGetMe               = scenario.SingleGetMe
	GetMeErrorHandling        = scenario.GetMeErrorHandling
	GetUpdatesAndSendMessages = scenario.GetUpdatesAndSendMessages
	HandleGetUpdatesOffset    = scenario.HandleGetUpdatesOffset
)

// Server is a fake Bot API server bound to one scenario.
type Server struct {
	*server.Server
}

type options struct {
	cfg       *config.Config
	logWriter io.Writer
}

// Option customizes a Server.
type Option func(*options)

// WithHost sets the listen host. The default is 127.0.0.1.
func WithHost(host string) Option {
	return func(o *options) { o.cfg.Server.Host = host }
}

// WithPort sets the listen port. Port 0 picks a free port; read it back
// from URL.
func WithPort(port int) Option {
	return func(o *options) { o.cfg.Server.Port = port }
}

// WithScenarioFile loads extra YAML scenarios before the name is resolved.
func WithScenarioFile(path string) Option {
	return func(o *options) { o.cfg.Server.ScenarioFile = path }
}

// WithLogLevel enables server logs at level, written to w as JSON lines.
func WithLogLevel(level string, w io.Writer) Option {
	return func(o *options) {
		o.cfg.Log.Level = level
		o.logWriter = w
	}
}

// WithInspect serves the inspection routes and live feed under path. An
// empty path keeps the default prefix; a trailing slash is ignored.
func WithInspect(path string) Option {
	return func(o *options) {
		o.cfg.Live.Enable = true
		if path != "" {
			o.cfg.Live.Path = strings.TrimRight(path, "/")
		}
	}
}

// WithJournal selects the exchange journal driver.
func WithJournal(driver, path string) Option {
	return func(o *options) {
		o.cfg.Journal.Driver = driver
		if path != "" {
			o.cfg.Journal.Path = path
		}
	}
}

// WithConsole prints every exchange and the final report to the console.
func WithConsole() Option {
	return func(o *options) { o.cfg.Output.Silence = false }
}

// New creates a stopped server for the named scenario.
func New(name string, opts ...Option) (*Server, error) {
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Scenario = name
	cfg.Output.Silence = true

	o := &options{cfg: cfg}
	for _, opt := range opts {
		opt(o)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.Nop()
	if o.logWriter != nil {
		log = logger.New(cfg.Log.Level, o.logWriter)
	}

	srv, err := server.New(cfg, log, nil)
	if err != nil {
		return nil, err
	}
	return &Server{Server: srv}, nil
}

// Run creates and starts a server, and registers a cleanup that stops it
// and reports unmet expectations and failures through t.Error.
func Run(t testing.TB, name string, opts ...Option) *Server {
	t.Helper()

	srv, err := New(name, opts...)
	if err != nil {
		t.Fatalf("fake server %q: %v", name, err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("fake server %q: start: %v", name, err)
	}
	t.Cleanup(func() {
		if err := srv.StopAndCheckExpectations(); err != nil {
			t.Errorf("fake server %q:\n%v", name, err)
		}
	})
	return srv
}

// Names lists the built-in scenarios.
func Names() []string {
	return scenario.Names()
}

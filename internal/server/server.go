package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"

	"github.com/funnyzak/botfake/internal/config"
	"github.com/funnyzak/botfake/internal/journal"
	"github.com/funnyzak/botfake/internal/live"
	"github.com/funnyzak/botfake/internal/logger"
	"github.com/funnyzak/botfake/internal/printer"
	"github.com/funnyzak/botfake/internal/scenario"
)

var (
	// ErrAlreadyStarted is returned by Start on a running server.
	ErrAlreadyStarted = errors.New("server already started")
	// ErrStopped is returned by Start on a stopped server.
	ErrStopped = errors.New("server stopped")
)

// State is the lifecycle state of a Server.
type State int

const (
	StateCreated State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Server is a fake Bot API server running one scenario.
type Server struct {
	config   *config.Config
	logger   logger.Logger
	testCase *scenario.TestCase
	handler  *Handler
	journal  journal.Store
	printer  printer.Printer
	hub      *live.Hub

	mu       sync.Mutex
	state    State
	listener net.Listener
	httpSrv  *http.Server
	served   chan struct{}
}

// New creates a server for cfg.Server.Scenario. Scenarios from
// cfg.Server.ScenarioFile are loaded into reg first; a nil reg means the
// built-in scenarios only.
func New(cfg *config.Config, log logger.Logger, reg *scenario.Registry) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config is nil")
	}
	if log == nil {
		log = logger.Nop()
	}
	if reg == nil {
		reg = scenario.NewRegistry()
	}
	if cfg.Server.ScenarioFile != "" {
		if err := reg.LoadFile(cfg.Server.ScenarioFile); err != nil {
			return nil, err
		}
	}

	tc, err := reg.New(cfg.Server.Scenario)
	if err != nil {
		return nil, err
	}
	log = logger.WithScenario(log, tc.Name())

	store, err := journal.New(&cfg.Journal, log)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	var hub *live.Hub
	if cfg.Live.Enable {
		hub = live.NewHub(log)
	}
	p := printer.New(log, &cfg.Output)

	return &Server{
		config:   cfg,
		logger:   log,
		testCase: tc,
		handler:  NewHandler(tc, log, cfg.Server.MaxBodyBytes, store, p, hub),
		journal:  store,
		printer:  p,
		hub:      hub,
		served:   make(chan struct{}),
	}, nil
}

// Start listens on the configured address and serves the scenario in the
// background. It fails on a server that is running or stopped.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateRunning:
		return ErrAlreadyStarted
	case StateStopped:
		return ErrStopped
	}

	addr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	router := mux.NewRouter()
	if s.hub != nil {
		s.registerInspectRoutes(router.PathPrefix(s.config.Live.Path).Subrouter())
	}
	router.PathPrefix("/").Handler(s.handler)

	s.listener = ln
	s.httpSrv = &http.Server{Handler: router}
	s.state = StateRunning

	s.logger.Info("Fake Bot API server started",
		"url", s.urlLocked(),
		"expectations", len(s.testCase.Expectations()),
	)

	go func() {
		defer close(s.served)
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server stopped unexpectedly", "error", err)
		}
	}()
	return nil
}

// Stop closes the listener and every open connection immediately, then
// releases the journal and live feed. It is safe to call more than once.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped {
		return nil
	}
	wasRunning := s.state == StateRunning
	s.state = StateStopped

	var errs []error
	if wasRunning {
		if err := s.httpSrv.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close http server: %w", err))
		}
		<-s.served
	}
	s.handler.drain()

	if s.hub != nil {
		s.hub.Broadcast(live.Event{Type: live.EventStopped, Report: s.reportText()})
		s.hub.Close()
	}
	if err := s.journal.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close journal: %w", err))
	}

	s.logger.Info("Fake Bot API server stopped")
	return errors.Join(errs...)
}

// StopAndCheckExpectations stops the server and reports whether the
// scenario ran to completion without failures.
func (s *Server) StopAndCheckExpectations() error {
	if err := s.Stop(); err != nil {
		s.logger.Warn("Error while stopping server", "error", err)
	}
	return s.Report().Err
}

// Report summarizes the scenario run so far.
func (s *Server) Report() printer.Report {
	tc := s.testCase
	tc.Lock()
	defer tc.Unlock()

	return printer.Report{
		Scenario:     tc.Name(),
		Expectations: tc.Expectations(),
		Fulfilled:    tc.Fulfilled(),
		Err:          tc.Check(),
	}
}

// reportText is the one-line verdict sent to live subscribers on stop.
func (s *Server) reportText() string {
	r := s.Report()
	if r.Passed() {
		return "passed"
	}
	return r.Err.Error()
}

// PrintReport writes Report to the configured printer.
func (s *Server) PrintReport() error {
	return s.printer.PrintReport(s.Report())
}

// URL returns the base URL clients should talk to, with a trailing slash.
func (s *Server) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.urlLocked()
}

func (s *Server) urlLocked() string {
	port := s.config.Server.Port
	if s.listener != nil {
		if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
			port = addr.Port
		}
	}
	return "http://" + net.JoinHostPort(s.config.Server.Host, strconv.Itoa(port)) + "/"
}

// State returns the lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Scenario returns the name of the scenario being served.
func (s *Server) Scenario() string {
	return s.testCase.Name()
}

// Journal returns the exchange journal.
func (s *Server) Journal() journal.Store {
	return s.journal
}

package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/funnyzak/botfake/internal/journal"
	"github.com/funnyzak/botfake/pkg/exchange"
)

// Status is the inspection view of a running scenario.
type Status struct {
	Scenario     string   `json:"scenario"`
	State        string   `json:"state"`
	URL          string   `json:"url"`
	Expectations []string `json:"expectations"`
	Fulfilled    int      `json:"fulfilled"`
	Failures     []string `json:"failures"`
}

type exchangeList struct {
	Items []*exchange.Exchange `json:"items"`
	Total int                  `json:"total"`
}

func (s *Server) registerInspectRoutes(r *mux.Router) {
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/exchanges", s.handleExchanges).Methods(http.MethodGet)
	r.HandleFunc("/exchanges/{id}", s.handleExchange).Methods(http.MethodGet)
	r.Handle("/ws", s.hub).Methods(http.MethodGet)
}

// Status reports the scenario progress.
func (s *Server) Status() Status {
	state := s.State()
	url := s.URL()

	tc := s.testCase
	tc.Lock()
	defer tc.Unlock()
	return Status{
		Scenario:     tc.Name(),
		State:        state.String(),
		URL:          url,
		Expectations: tc.Expectations(),
		Fulfilled:    tc.Fulfilled(),
		Failures:     tc.Failures(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Status())
}

func (s *Server) handleExchanges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := journal.ListOptions{
		Search:   q.Get("search"),
		Method:   q.Get("method"),
		Scenario: q.Get("scenario"),
		Outcome:  exchange.Outcome(q.Get("outcome")),
		Limit:    parseInt(q.Get("limit"), 50),
		Offset:   parseInt(q.Get("offset"), 0),
	}

	items, total, err := s.journal.List(opts)
	if err != nil {
		s.logger.Error("Failed to list exchanges", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list exchanges"})
		return
	}
	if items == nil {
		items = []*exchange.Exchange{}
	}
	s.writeJSON(w, http.StatusOK, exchangeList{Items: items, Total: total})
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ex, err := s.journal.Get(id)
	if err != nil {
		s.logger.Error("Failed to load exchange", "error", err, "exchange_id", id)
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load exchange"})
		return
	}
	if ex == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "exchange not found"})
		return
	}
	s.writeJSON(w, http.StatusOK, ex)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode inspection response", "error", err, "status", status)
	}
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

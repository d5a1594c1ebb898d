// Package web serves run history, the scenario catalogue and metrics over
// HTTP.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/cavarest/elemental-dragon/internal/journal"
	"github.com/cavarest/elemental-dragon/internal/scenario"
)

const defaultLimit = 50

// RunStore is the read side of the run journal. *journal.Journal
// satisfies it.
type RunStore interface {
	Runs(limit int) ([]journal.RunInfo, error)
	Run(id string) (journal.RunInfo, []journal.Record, error)
	History(scenario string, limit int) ([]journal.Record, error)
}

// ScenarioInfo is the JSON representation of a scenario for /api/scenarios.
type ScenarioInfo struct {
	Name        string   `json:"name"`
	Story       string   `json:"story"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	NeedsPlayer bool     `json:"needsPlayer"`
}

// RunDetail is a run with its per-scenario records.
type RunDetail struct {
	journal.RunInfo
	Results []journal.Record `json:"results"`
}

// Server is the status web server.
type Server struct {
	registry *scenario.Registry
	runs     RunStore
	metrics  http.Handler
	logger   *zap.Logger
	mux      *http.ServeMux
}

// NewServer creates a new web server. runs and metrics may be nil, in
// which case their routes answer 503.
func NewServer(reg *scenario.Registry, runs RunStore, metrics http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		registry: reg,
		runs:     runs,
		metrics:  metrics,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})

	s.mux.HandleFunc("GET /api/scenarios", s.handleScenarios)
	s.mux.HandleFunc("GET /api/runs", s.handleRuns)
	s.mux.HandleFunc("GET /api/runs/{id}", s.handleRun)
	s.mux.HandleFunc("GET /api/history/{scenario}", s.handleHistory)

	s.mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			http.Error(w, "metrics disabled", http.StatusServiceUnavailable)
			return
		}
		s.metrics.ServeHTTP(w, r)
	})
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	infos := []ScenarioInfo{}
	if s.registry != nil {
		for _, sc := range s.registry.All() {
			if story := r.URL.Query().Get("story"); story != "" && sc.Story != story {
				continue
			}
			infos = append(infos, ScenarioInfo{
				Name:        sc.Name,
				Story:       sc.Story,
				Description: sc.Description,
				Tags:        sc.Tags,
				NeedsPlayer: sc.NeedsPlayer,
			})
		}
	}
	s.writeJSON(w, infos)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if !s.haveRuns(w) {
		return
	}
	limit, ok := s.limit(w, r)
	if !ok {
		return
	}
	runs, err := s.runs.Runs(limit)
	if err != nil {
		s.fail(w, "list runs", err)
		return
	}
	if runs == nil {
		runs = []journal.RunInfo{}
	}
	s.writeJSON(w, runs)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.haveRuns(w) {
		return
	}
	info, recs, err := s.runs.Run(r.PathValue("id"))
	if errors.Is(err, journal.ErrRunNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.fail(w, "read run", err)
		return
	}
	if recs == nil {
		recs = []journal.Record{}
	}
	s.writeJSON(w, RunDetail{RunInfo: info, Results: recs})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.haveRuns(w) {
		return
	}
	name := r.PathValue("scenario")
	if s.registry != nil {
		if _, ok := s.registry.Lookup(name); !ok {
			http.Error(w, "unknown scenario", http.StatusNotFound)
			return
		}
	}
	limit, ok := s.limit(w, r)
	if !ok {
		return
	}
	recs, err := s.runs.History(name, limit)
	if err != nil {
		s.fail(w, "read history", err)
		return
	}
	if recs == nil {
		recs = []journal.Record{}
	}
	s.writeJSON(w, recs)
}

func (s *Server) haveRuns(w http.ResponseWriter) bool {
	if s.runs == nil {
		http.Error(w, "journal disabled", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *Server) limit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func (s *Server) fail(w http.ResponseWriter, what string, err error) {
	s.logger.Error(what, zap.Error(err))
	http.Error(w, what+" failed", http.StatusInternalServerError)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("status server listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

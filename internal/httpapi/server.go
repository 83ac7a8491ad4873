package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/sitepulse/sitepulse/internal/alert"
	"github.com/sitepulse/sitepulse/internal/domain"
	apimw "github.com/sitepulse/sitepulse/internal/httpapi/middleware"
)

// Server exposes the monitor's snapshots, metrics and history over HTTP.
// Persistence failures surface to clients as empty data, never as 5xx.
type Server struct {
	Logger *zap.Logger
	Engine *alert.Engine
}

func NewServer(l *zap.Logger, e *alert.Engine) *Server {
	return &Server{Logger: l, Engine: e}
}

// Router wires the routes. rpm/burst control the per-IP limit; rpm <= 0
// disables it.
func (s *Server) Router(rpm, burst int) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)
	r.Use(apimw.RateLimit(rpm, burst))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post("/api/checks", s.handleSubmitCheck)
	r.Get("/api/status", s.handleSnapshot)
	r.Get("/api/status/latest", s.handleLatest)
	r.Get("/api/metrics", s.handleAllMetrics)
	r.Get("/api/metrics/site", s.handleSiteMetrics)
	r.Get("/api/metrics/system", s.handleSystemMetrics)
	r.Get("/api/metrics/system/weighted", s.handleWeightedSystemMetrics)
	r.Get("/api/history", s.handleHistory)
	r.Delete("/api/state", s.handleClear)

	return r
}

func (s *Server) handleSubmitCheck(w http.ResponseWriter, r *http.Request) {
	var cr domain.CheckResult
	if err := json.NewDecoder(r.Body).Decode(&cr); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if err := s.Engine.Submit(r.Context(), &cr); err != nil {
		if domain.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		// Read failure aborted the check; the caller may retry.
		s.Logger.Warn("submit_error", zap.String("url", cr.URL), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "check not processed")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.Engine.Snapshot(r.Context())
	if err != nil {
		s.Logger.Warn("snapshot_error", zap.Error(err))
		snap = map[string]domain.CheckResult{}
	}
	writeJSON(w, snap)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "url query parameter required")
		return
	}
	rec, err := s.Engine.Previous(r.Context(), url)
	if err != nil {
		s.Logger.Warn("latest_error", zap.String("url", url), zap.Error(err))
		rec = nil
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "never checked")
		return
	}
	writeJSON(w, rec)
}

func (s *Server) handleAllMetrics(w http.ResponseWriter, r *http.Request) {
	all, err := s.Engine.AllMetrics(r.Context())
	if err != nil {
		s.Logger.Warn("all_metrics_error", zap.Error(err))
		all = map[string]domain.SiteMetrics{}
	}
	writeJSON(w, all)
}

func (s *Server) handleSiteMetrics(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "url query parameter required")
		return
	}
	m, err := s.Engine.SiteMetrics(r.Context(), url)
	if err != nil {
		s.Logger.Warn("site_metrics_error", zap.String("url", url), zap.Error(err))
		m = nil
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "never checked")
		return
	}
	writeJSON(w, m)
}

func (s *Server) handleSystemMetrics(w http.ResponseWriter, r *http.Request) {
	sm, err := s.Engine.SystemMetrics(r.Context())
	if err != nil {
		s.Logger.Warn("system_metrics_error", zap.Error(err))
	}
	writeJSON(w, sm)
}

func (s *Server) handleWeightedSystemMetrics(w http.ResponseWriter, r *http.Request) {
	sm, err := s.Engine.WeightedSystemMetrics(r.Context())
	if err != nil {
		s.Logger.Warn("weighted_system_metrics_error", zap.Error(err))
	}
	writeJSON(w, sm)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	entries, err := s.Engine.History(r.Context(), q.Get("url"), limit)
	if err != nil {
		s.Logger.Warn("history_error", zap.Error(err))
		entries = []domain.CheckResult{}
	}
	writeJSON(w, entries)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.ClearAll(r.Context()); err != nil {
		s.Logger.Warn("clear_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "clear failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"academy-notifications/internal/common/logger"
	"academy-notifications/internal/history"
	"academy-notifications/internal/maintenance"
	"academy-notifications/internal/models"
	"academy-notifications/internal/stats"
)

const defaultStaleMinutes = 15

type RetentionRunner interface {
	SweepExpired(ctx context.Context) (int, error)
}

type TokenSweepRunner interface {
	Sweep(ctx context.Context) (*maintenance.TokenSweepResult, error)
}

type HistorySearcher interface {
	Search(ctx context.Context, q history.Query) ([]history.Document, error)
}

type StatsProvider interface {
	Compute(ctx context.Context) (*stats.Stats, error)
}

type StaleLister interface {
	ListStale(ctx context.Context, olderThan time.Time) ([]models.NotificationRecord, error)
}

// Check is a named readiness probe.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Deps wires the HTTP surface. History may be nil when search is disabled.
type Deps struct {
	Retention    RetentionRunner
	Tokens       TokenSweepRunner
	History      HistorySearcher
	Stale        StaleLister
	Stats        StatsProvider
	Checks       []Check
	StaleMinutes int
}

type Server struct {
	deps   Deps
	now    func() time.Time
	logger logger.Logger
	srv    *http.Server
}

func New(addr string, deps Deps, log logger.Logger) *Server {
	if deps.StaleMinutes <= 0 {
		deps.StaleMinutes = defaultStaleMinutes
	}
	s := &Server{
		deps:   deps,
		now:    time.Now,
		logger: log.WithFields(map[string]interface{}{"component": "http"}),
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /ready", s.ready)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/cleanup/notifications", s.cleanupNotifications)
	mux.HandleFunc("/cleanup/tokens", s.cleanupTokens)
	mux.HandleFunc("GET /notifications/history", s.searchHistory)
	mux.HandleFunc("GET /notifications/stale", s.staleNotifications)
	mux.HandleFunc("GET /notifications/stats", s.notificationStats)
	return mux
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", map[string]interface{}{"address": s.srv.Addr})
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   s.now().Format(time.RFC3339),
	})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := make(map[string]string, len(s.deps.Checks))
	for _, c := range s.deps.Checks {
		if err := c.Probe(ctx); err != nil {
			checks[c.Name] = err.Error()
			status, code = "not_ready", http.StatusServiceUnavailable
			continue
		}
		checks[c.Name] = "ok"
	}

	writeJSON(w, code, map[string]interface{}{
		"status": status,
		"checks": checks,
		"time":   s.now().Format(time.RFC3339),
	})
}

func (s *Server) cleanupNotifications(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.deps.Retention.SweepExpired(r.Context())
	if err != nil {
		s.logger.Error("notification cleanup failed", map[string]interface{}{"error": err})
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	body := map[string]interface{}{"success": true, "deletedCount": deleted}
	if deleted == 0 {
		body["message"] = "No old notifications to clean up"
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) cleanupTokens(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Tokens.Sweep(r.Context())
	if err != nil {
		s.logger.Error("token cleanup failed", map[string]interface{}{"error": err})
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"checkedTokens": res.CheckedTokens,
		"removedTokens": res.RemovedTokens,
	})
}

func (s *Server) searchHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("history search is disabled"))
		return
	}

	q := history.Query{
		Text: r.URL.Query().Get("q"),
		Type: r.URL.Query().Get("type"),
	}
	if raw := r.URL.Query().Get("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			writeError(w, http.StatusBadRequest, errors.New("size must be a positive integer"))
			return
		}
		q.Size = size
	}

	docs, err := s.deps.History.Search(r.Context(), q)
	if err != nil {
		s.logger.Error("history search failed", map[string]interface{}{"error": err})
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(docs),
		"results": docs,
	})
}

func (s *Server) staleNotifications(w http.ResponseWriter, r *http.Request) {
	minutes := s.deps.StaleMinutes
	if raw := r.URL.Query().Get("minutes"); raw != "" {
		m, err := strconv.Atoi(raw)
		if err != nil || m < 0 {
			writeError(w, http.StatusBadRequest, errors.New("minutes must be a non-negative integer"))
			return
		}
		minutes = m
	}

	olderThan := s.now().Add(-time.Duration(minutes) * time.Minute)
	recs, err := s.deps.Stale.ListStale(r.Context(), olderThan)
	if err != nil {
		s.logger.Error("stale listing failed", map[string]interface{}{"error": err})
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if recs == nil {
		recs = []models.NotificationRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"minutes":       minutes,
		"count":         len(recs),
		"notifications": recs,
	})
}

func (s *Server) notificationStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stats == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("statistics are disabled"))
		return
	}
	result, err := s.deps.Stats.Compute(r.Context())
	if err != nil {
		s.logger.Error("statistics query failed", map[string]interface{}{"error": err})
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   result,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
}

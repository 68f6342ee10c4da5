// Package server is the thin HTTP transport over the baseline core. It
// decodes requests, delegates to the core, and maps domain errors to
// status codes; no business rules live here.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/agentfund/baseline/internal/auth"
	"github.com/agentfund/baseline/internal/baseline"
	"github.com/agentfund/baseline/internal/config"
	"github.com/agentfund/baseline/internal/models"
	"github.com/agentfund/baseline/internal/voting"
)

// Server wires the baseline core behind an HTTP router.
type Server struct {
	manager *baseline.Manager
	ledger  *voting.Ledger
	gate    *auth.Gate
	cfg     config.Config
	logger  *zap.Logger
	router  chi.Router
}

// New builds the server and registers all routes.
func New(manager *baseline.Manager, ledger *voting.Ledger, gate *auth.Gate, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		manager: manager,
		ledger:  ledger,
		gate:    gate,
		cfg:     cfg,
		logger:  logger,
		router:  chi.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Use(s.logRequests)
	s.router.Use(corsHeaders)

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/baseline", func(r chi.Router) {
		r.Post("/start", s.handleStart)
		r.Post("/answer", s.handleAnswer)
		r.Post("/complete", s.handleComplete)
		r.Get("/results", s.handleResults)
		r.Get("/sessions", s.handleSessions)
		r.Get("/sessions/{id}", s.handleSession)
	})

	s.router.Get("/allocations", s.handleAllocations)
}

// ── Middleware ──────────────────────────────────────────

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func corsHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ── Helpers ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	if status >= 500 {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// httpStatus maps the domain error taxonomy onto status codes. Unknown
// errors are internal.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAlreadyCompleted),
		errors.Is(err, models.ErrNotCompleted),
		errors.Is(err, models.ErrIdentityConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrZeroWeight):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

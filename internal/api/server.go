// Package api exposes the read-only HTTP surface: task queries with
// filters and pagination, single-task lookup, recent events, and the
// analytics report.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/maestro-ai/maestro/internal/analytics"
	"github.com/maestro-ai/maestro/internal/core"
	"github.com/maestro-ai/maestro/internal/logging"
)

// Reporter produces the analytics report served at /api/report.
type Reporter interface {
	Report() analytics.PerformanceReport
}

// Server serves the query API.
type Server struct {
	router   chi.Router
	tasks    core.TaskRepository
	recent   *EventRing
	reporter Reporter
	logger   *logging.Logger
}

// Option configures the server.
type Option func(*Server)

// WithReporter wires the analytics report endpoint.
func WithReporter(r Reporter) Option {
	return func(s *Server) { s.reporter = r }
}

// WithLogger sets the server logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates the query API server. recent may be nil; the events
// endpoint then serves an empty list.
func NewServer(tasks core.TaskRepository, recent *EventRing, opts ...Option) *Server {
	s := &Server{
		tasks:  tasks,
		recent: recent,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("api")
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.loggingMiddleware)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/tasks", s.handleListTasks)
		r.Get("/tasks/{taskID}", s.handleGetTask)
		r.Get("/events/recent", s.handleRecentEvents)
		r.Get("/report", s.handleReport)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"bytes", ww.BytesWritten())
		}()

		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	if s.reporter == nil {
		respondError(w, core.ErrNotFound("REPORT", "analytics not wired"))
		return
	}
	respondJSON(w, http.StatusOK, s.reporter.Report())
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 50)
	if s.recent == nil {
		respondJSON(w, http.StatusOK, eventListResponse{Events: []RecordedEvent{}})
		return
	}
	respondJSON(w, http.StatusOK, eventListResponse{Events: s.recent.Recent(limit)})
}

type eventListResponse struct {
	Events []RecordedEvent `json:"events"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

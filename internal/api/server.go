// Package api serves a read-only HTTP view over a roadmap's persisted
// state: a heartbeat, the active roadmap's task table, and a tail of its
// audit log. It carries none of the teacher's workflow CRUD or chat
// surface — autopilot's roadmap is driven from the CLI, never the API.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/autopilot-dev/autopilot/internal/core"
)

// RoadmapLoader is satisfied by *store.FileStore. Defined locally so
// internal/api depends on behavior, not on internal/store's concrete type.
type RoadmapLoader interface {
	Load(ctx context.Context) (*core.RoadmapState, error)
	QueryAudit(ctx context.Context, afterSeq int64, limit int) ([]core.AuditEvent, error)
}

// Server serves GET-only status endpoints over a RoadmapLoader.
type Server struct {
	router chi.Router
	store  RoadmapLoader
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a status server over store.
func NewServer(store RoadmapLoader, opts ...Option) *Server {
	s := &Server{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))
	r.Use(s.loggingMiddleware)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		MaxAge:         300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/roadmap", s.handleRoadmap)
		r.Get("/audit", s.handleAuditTail)
	})
	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			s.logger.Info("http request",
				"method", r.Method, "path", r.URL.Path,
				"status", ww.Status(), "duration", time.Since(start))
		}()
		next.ServeHTTP(ww, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleRoadmap(w http.ResponseWriter, r *http.Request) {
	state, err := s.store.Load(r.Context())
	if err != nil {
		respondJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("no active roadmap: %v", err)})
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleAuditTail(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.QueryAudit(r.Context(), 0, 200)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, events)
}

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"git.home.luguber.info/inful/sassc/internal/logfields"
)

// Server is the daemon's admin HTTP API.
type Server struct {
	Addr    string
	router  *chi.Mux
	server  *http.Server
	watches WatchService
	history HistoryService
	metrics http.Handler
	logger  *slog.Logger
}

// ServerOption configures optional endpoints.
type ServerOption func(*Server)

// WithHistory exposes GET /api/history.
func WithHistory(h HistoryService) ServerOption { return func(s *Server) { s.history = h } }

// WithMetricsHandler exposes h at GET /metrics.
func WithMetricsHandler(h http.Handler) ServerOption { return func(s *Server) { s.metrics = h } }

func WithLogger(l *slog.Logger) ServerOption { return func(s *Server) { s.logger = l } }

// NewServer creates a new API server.
func NewServer(addr string, watches WatchService, opts ...ServerOption) *Server {
	s := &Server{
		Addr:    addr,
		router:  chi.NewRouter(),
		watches: watches,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/watches", s.handleListWatches)
		// starting a watch runs a full project compile
		r.With(middleware.Timeout(5*time.Minute)).Post("/watches", s.handleStartWatch)
		r.Delete("/watches", s.handleStopWatch)
		if s.history != nil {
			r.With(middleware.Timeout(30*time.Second)).Get("/history", s.handleHistory)
		}
	})

	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics)
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("Admin API listening", logfields.Addr(l.Addr().String()))
	err := s.server.Serve(l)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Response is the envelope of every API response.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Error writes an error response.
func (s *Server) Error(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Response{Success: false, Error: message})
}

// Success writes a success response.
func (s *Server) Success(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Response{Success: true, Data: data})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alanyoungcy/liquidationbot/internal/server/handler"
	"github.com/alanyoungcy/liquidationbot/internal/server/middleware"
	"github.com/alanyoungcy/liquidationbot/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates the HTTP handlers the server registers. Events and
// Hub are optional.
type Handlers struct {
	Health *handler.HealthHandler
	Events *handler.EventHandler
	Hub    *ws.Hub
}

// Server exposes health, status, the event log and Prometheus metrics.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes. /api/health and /metrics are served
// without authentication.
func NewServer(cfg Config, handlers Handlers, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      routes(cfg, handlers, gatherer, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

func routes(cfg Config, handlers Handlers, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/status", handlers.Health.GetStatus)
	if handlers.Events != nil {
		api.HandleFunc("GET /api/events", handlers.Events.ListEvents)
	}
	if handlers.Hub != nil {
		api.HandleFunc("GET /ws", handlers.Hub.HandleWS)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/", middleware.Auth(cfg.APIKey)(api))

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

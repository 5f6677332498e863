// -----------------------------------------------------------------------
// HTTP Server - ServeMux router wrapped in the middleware chain
// -----------------------------------------------------------------------

package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ternarybob/respondeo/internal/app"
)

// Server wraps the HTTP server with routing and middleware
type Server struct {
	app    *app.App
	router *http.ServeMux
	server *http.Server

	requestTimeout time.Duration
	maxRequestSize int64

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
	limit     rate.Limit
	burst     int
}

// New creates a new server instance
func New(application *app.App) *Server {
	s := &Server{
		app:            application,
		requestTimeout: parseDuration(application.Config.Limits.RequestTimeout, 30*time.Second),
		maxRequestSize: application.Config.Limits.MaxRequestSize,
		limiters:       make(map[string]*rate.Limiter),
	}

	window := parseDuration(application.Config.Limits.RateLimitWindow, 60*time.Second)
	requests := application.Config.Limits.RateLimitRequests
	if requests <= 0 {
		requests = 100
	}
	s.limit = rate.Every(window / time.Duration(requests))
	s.burst = requests

	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", application.Config.Server.Host, application.Config.Server.Port),
		Handler:      s.withMiddleware(s.router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server (blocking)
func (s *Server) Start() error {
	s.app.Logger.Info().
		Str("address", s.server.Addr).
		Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.app.Logger.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the fully wrapped handler for tests
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Package core provides the API chassis for the campaign service. It builds a
// chi router usable both as a standalone HTTP server and behind the Lambda
// proxy integration, and applies the cross-cutting concerns (recovery,
// logging, compression, authentication, error rendering) before requests
// reach domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"wacrm/internal/config"
)

// MetricsCollector records API telemetry.
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Server encapsulates the dependencies of the HTTP API.
type Server struct {
	Config        *config.Config
	Logger        *slog.Logger
	Validator     *Validator
	Metrics       MetricsCollector
	Authenticator Authenticator
	HealthProbes  []HealthProbe

	// V1RouteRegistrars mount domain handlers under /v1. They are supplied
	// by main to avoid an import cycle between core and the handlers.
	V1RouteRegistrars []func(chi.Router)

	// Closers are released in order on Shutdown.
	Closers []func()

	router *chi.Mux
}

// NewServer prepares a server for route mounting. The caller mounts routes
// with MountRoutes after setting the optional fields.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases server resources such as the database pool.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")
	for _, closeFn := range s.Closers {
		closeFn()
	}
	s.Logger.InfoContext(ctx, "server shutdown complete")
	return ctx.Err()
}

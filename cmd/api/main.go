// Package main is the entry point for the campaign API server.
//
// It loads configuration, wires the campaign services against Postgres and the
// external job scheduler, mounts the core chassis (middleware, routing, health
// checks) and serves HTTP until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wacrm/internal/api/handlers"
	"wacrm/internal/app"
	"wacrm/internal/config"
	"wacrm/internal/core"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(app.SecretProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := app.NewLogger(cfg.LogLevel)
	logger.Info("campaign API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv, err := buildServer(a)
	if err != nil {
		a.Close()
		return err
	}

	return runHTTPServer(srv, cfg, logger)
}

// buildServer mounts the campaign, message and batch routes on a core.Server
// backed by a. The server owns a from here on and closes it on Shutdown.
func buildServer(a *app.App) (*core.Server, error) {
	srv, err := core.NewServer(a.Config, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	srv.Metrics = a.Metrics
	srv.Authenticator = a.Authenticator()
	srv.HealthProbes = append(srv.HealthProbes, core.DatabaseProbe{DB: a.Pool})
	srv.Closers = append(srv.Closers, a.Close)

	campaignHandler := handlers.NewCampaignHandler(a.Canceller, a.Reconciler, srv.Validator, a.Logger)
	messageHandler := handlers.NewMessageHandler(a.Canceller, srv.Validator, a.Logger)
	batchHandler := handlers.NewBatchHandler(a.Approvals, a.Expiry, a.Logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		campaignHandler.RegisterRoutes,
		messageHandler.RegisterRoutes,
		batchHandler.RegisterRoutes,
	)
	srv.MountRoutes()

	return srv, nil
}

// runHTTPServer serves srv until a shutdown signal or a listener error.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			_ = srv.Shutdown(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

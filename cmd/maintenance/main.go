// Package main is the entry point for the campaign maintenance Lambda.
//
// EventBridge rules invoke it with a scheduler.MaintenancePayload naming one
// task: expiring batch alerts, the overdue approval sweep or campaign
// reconciliation. The scheduler.Multiplexer takes the job lock, records job
// history and runs the task's service.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"

	"wacrm/internal/app"
	"wacrm/internal/config"
	"wacrm/internal/scheduler"
)

const initTimeout = 10 * time.Second

// taskRunner is satisfied by *scheduler.Multiplexer.
type taskRunner interface {
	Handle(ctx context.Context, payload scheduler.MaintenancePayload) (string, error)
}

// newHandler tags each invocation with its Lambda request id before handing
// the payload to runner.
func newHandler(runner taskRunner, logger *slog.Logger) func(context.Context, scheduler.MaintenancePayload) (string, error) {
	return func(ctx context.Context, payload scheduler.MaintenancePayload) (string, error) {
		l := logger
		if lc, ok := lambdacontext.FromContext(ctx); ok {
			l = l.With("aws_request_id", lc.AwsRequestID)
		}

		start := time.Now()
		result, err := runner.Handle(ctx, payload)
		if err != nil {
			l.ErrorContext(ctx, "maintenance task failed",
				"task", payload.Task,
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err,
			)
			return "", err
		}

		l.InfoContext(ctx, "maintenance task finished",
			"task", payload.Task,
			"duration_ms", time.Since(start).Milliseconds(),
			"result", result,
		)
		return result, nil
	}
}

func main() {
	logger := app.NewLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("maintenance Lambda initializing (cold start)")

	cfg, err := config.LoadConfig(app.SecretProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}

	workerID := uuid.New().String()
	mux := a.Multiplexer(workerID)

	logger.Info("maintenance Lambda initialized",
		"worker_id", workerID,
		"scheduler_configured", cfg.Scheduler.Configured(),
	)

	lambda.Start(newHandler(mux, logger))
}

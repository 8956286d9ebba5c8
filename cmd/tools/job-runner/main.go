// Package main implements the job-runner CLI for invoking campaign
// maintenance tasks directly, bypassing the Lambda shim.
//
// It is intended for local development, manual backfilling and operational
// debugging. It builds a scheduler.MaintenancePayload and runs it through the
// same scheduler.Multiplexer the maintenance Lambda uses, so the job lock and
// job history behave identically.
//
// Usage:
//
//	go run ./cmd/tools/job-runner --task=reconcile_campaigns
//	go run ./cmd/tools/job-runner --task=check_expiring_batches --reference-time=2026-01-15T02:00:00Z
//	go run ./cmd/tools/job-runner --dry-run --task=expire_overdue_batches
//	go run ./cmd/tools/job-runner --list
//
// Configuration is read from the environment (or a .env file via godotenv).
// In --dry-run mode the payload is printed as JSON without executing.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"wacrm/internal/app"
	"wacrm/internal/config"
	"wacrm/internal/scheduler"
)

// taskDescriptions documents every task for --list.
var taskDescriptions = map[scheduler.TaskType]string{
	scheduler.TaskCheckExpiringBatches: "Alert companies about pending batches nearing their run_at",
	scheduler.TaskExpireOverdueBatches: "Mark pending batches past their run_at as expired",
	scheduler.TaskReconcileCampaigns:   "Reconcile open campaigns against the job scheduler",
}

// options is the parsed command line.
type options struct {
	payload scheduler.MaintenancePayload
	list    bool
	dryRun  bool
}

var errUsage = errors.New("usage")

func parseArgs(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("job-runner", flag.ContinueOnError)
	fs.SetOutput(stderr)

	task := fs.String("task", "", "Task type to execute (e.g., reconcile_campaigns)")
	refTime := fs.String("reference-time", "", "Override reference time (RFC3339, e.g., 2026-01-15T02:00:00Z)")
	list := fs.Bool("list", false, "List all available task types and exit")
	dryRun := fs.Bool("dry-run", false, "Print the JSON payload without executing")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: job-runner [flags]\n\n")
		fmt.Fprintf(stderr, "Invoke campaign maintenance tasks directly, bypassing Lambda.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts := options{list: *list, dryRun: *dryRun}
	if opts.list {
		return opts, nil
	}

	if *task == "" {
		fmt.Fprintf(stderr, "error: --task is required\n\n")
		fs.Usage()
		return options{}, errUsage
	}

	tt := scheduler.TaskType(*task)
	if !tt.IsValid() {
		return options{}, fmt.Errorf("unknown task type %q", *task)
	}
	opts.payload.Task = tt

	if *refTime != "" {
		t, err := time.Parse(time.RFC3339, *refTime)
		if err != nil {
			return options{}, fmt.Errorf("invalid --reference-time %q (expected RFC3339): %w", *refTime, err)
		}
		t = t.UTC()
		opts.payload.ReferenceTime = &t
	}

	return opts, nil
}

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "error: %v\n\n", err)
			printTasks(os.Stderr)
		}
		os.Exit(2)
	}

	if opts.list {
		printTasks(os.Stdout)
		return
	}

	if opts.dryRun {
		if err := printPayload(os.Stdout, opts.payload); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "no .env file loaded: %v\n", err)
	}

	if err := execute(opts.payload); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func execute(payload scheduler.MaintenancePayload) error {
	cfg, err := config.LoadConfig(app.SecretProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := app.NewLogger(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	mux := a.Multiplexer("job-runner-" + uuid.New().String())
	result, err := mux.Handle(ctx, payload)
	if err != nil {
		return err
	}

	logger.Info("task execution succeeded",
		"task", payload.Task,
		"result", result,
	)
	return nil
}

// printTasks writes every task with its description in a stable order.
func printTasks(w io.Writer) {
	tasks := scheduler.Tasks()

	width := 0
	for _, t := range tasks {
		if len(t) > width {
			width = len(t)
		}
	}

	fmt.Fprintf(w, "Available task types:\n\n")
	for _, t := range tasks {
		fmt.Fprintf(w, "  %-*s  %s\n", width, t, taskDescriptions[t])
	}
}

func printPayload(w io.Writer, payload scheduler.MaintenancePayload) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// Package app assembles the campaign services from configuration. The API
// server, the maintenance Lambda and the job-runner CLI share this wiring.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"wacrm/internal/auth"
	"wacrm/internal/campaigns"
	"wacrm/internal/config"
	"wacrm/internal/core"
	"wacrm/internal/db"
	"wacrm/internal/external"
	"wacrm/internal/notifications"
	"wacrm/internal/scheduler"
)

// MetricsSink covers both campaign counters and API request telemetry.
type MetricsSink interface {
	campaigns.Metrics
	core.MetricsCollector
}

// App holds the long-lived dependencies of one process.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Pool      *pgxpool.Pool
	Scheduler *external.JobSchedulerClient
	Publisher campaigns.Publisher
	Metrics   MetricsSink

	Schedules     *db.ScheduleRepository
	Batches       *db.BatchRepository
	Messages      *db.MessageRepository
	Notifications *db.NotificationRepository
	APIKeys       *db.APIKeyRepository
	JobLocks      *db.JobLockRepository
	JobHistory    *db.JobHistoryRepository

	Reconciler *campaigns.Reconciler
	Canceller  *campaigns.Canceller
	Expiry     *campaigns.ExpiryNotifier
	Approvals  *campaigns.ApprovalQueue
	Sweeper    *scheduler.CampaignSweeper
}

// New connects to Postgres, builds the AWS clients the configuration asks
// for and wires every service. The caller must Close the App.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	a := &App{Config: cfg, Logger: logger, Pool: pool}

	if err := a.initAWS(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	a.Scheduler = external.NewJobSchedulerClient(nil, external.SchedulerClientConfig{
		BaseURL: cfg.Scheduler.URL,
		APIKey:  cfg.Scheduler.APIKey.Unmask(),
		Timeout: cfg.Scheduler.Timeout,
		Logger:  logger,
	})
	if !a.Scheduler.Configured() {
		logger.Warn("job scheduler not configured; cancellations are local only and status checks report it unavailable",
			"missing", missingSchedulerVars(cfg.Scheduler),
		)
	}

	a.wire()
	return a, nil
}

func (a *App) initAWS(ctx context.Context) error {
	cfg := a.Config
	wantPush := cfg.AWS.PushQueueURL != ""
	wantMetrics := cfg.Observability.EnableMetrics && (cfg.Environment != "local" || cfg.AWS.EndpointURL != "")

	if !wantPush && !wantMetrics {
		a.Publisher = notifications.NoopPublisher{}
		a.Metrics = notifications.NoopMetrics{}
		return nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}

	if wantPush {
		client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		a.Publisher = notifications.NewPushPublisher(client, cfg.AWS.PushQueueURL, a.Logger)
	} else {
		a.Publisher = notifications.NoopPublisher{}
	}

	if wantMetrics {
		client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		a.Metrics = notifications.NewCampaignMetrics(client, cfg.Observability.MetricNamespace, a.Logger)
	} else {
		a.Metrics = notifications.NoopMetrics{}
	}

	return nil
}

func (a *App) wire() {
	a.Schedules = db.NewScheduleRepository(a.Pool)
	a.Batches = db.NewBatchRepository(a.Pool)
	a.Messages = db.NewMessageRepository(a.Pool)
	a.Notifications = db.NewNotificationRepository(a.Pool)
	a.APIKeys = db.NewAPIKeyRepository(a.Pool)
	a.JobLocks = db.NewJobLockRepository(a.Pool)
	a.JobHistory = db.NewJobHistoryRepository(a.Pool)

	a.Reconciler = campaigns.NewReconciler(campaigns.ReconcilerConfig{
		Schedules: a.Schedules,
		Batches:   a.Batches,
		Messages:  a.Messages,
		Scheduler: a.Scheduler,
		Publisher: a.Publisher,
		Metrics:   a.Metrics,
		Logger:    a.Logger,
	})
	a.Canceller = campaigns.NewCanceller(campaigns.CancellerConfig{
		Schedules: a.Schedules,
		Batches:   a.Batches,
		Messages:  a.Messages,
		Scheduler: a.Scheduler,
		Metrics:   a.Metrics,
		Logger:    a.Logger,
	})
	a.Expiry = campaigns.NewExpiryNotifier(campaigns.ExpiryNotifierConfig{
		Schedules:     a.Schedules,
		Batches:       a.Batches,
		Notifications: a.Notifications,
		Publisher:     a.Publisher,
		Metrics:       a.Metrics,
		Logger:        a.Logger,
	})
	a.Approvals = campaigns.NewApprovalQueue(campaigns.ApprovalQueueConfig{
		Schedules: a.Schedules,
		Batches:   a.Batches,
		Logger:    a.Logger,
	})
	a.Sweeper = scheduler.NewCampaignSweeper(a.Schedules, a.Reconciler, a.Logger)
}

// Authenticator returns the bearer API key authenticator.
func (a *App) Authenticator() *auth.APIKeyAuthenticator {
	return auth.NewAPIKeyAuthenticator(auth.APIKeyAuthenticatorConfig{
		Keys:   a.APIKeys,
		Logger: a.Logger,
	})
}

// Multiplexer returns a maintenance task router owned by workerID.
func (a *App) Multiplexer(workerID string) *scheduler.Multiplexer {
	return &scheduler.Multiplexer{
		Services: scheduler.Services{
			Expiry:    a.Expiry,
			Overdue:   a.Approvals,
			Reconcile: a.Sweeper,
		},
		JobLock:    a.JobLocks,
		JobHistory: a.JobHistory,
		WorkerID:   workerID,
		SweepLimit: scheduler.DefaultSweepLimit,
		Logger:     a.Logger,
	}
}

// Close releases the database pool.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}

func missingSchedulerVars(cfg config.SchedulerConfig) []string {
	var missing []string
	if cfg.URL == "" {
		missing = append(missing, "SCHEDULE_URL")
	}
	if cfg.APIKey.IsEmpty() {
		missing = append(missing, "JOBS_API_KEY")
	}
	return missing
}

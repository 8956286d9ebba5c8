package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wacrm/internal/config"
	"wacrm/internal/notifications"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitAWS_NothingConfigured(t *testing.T) {
	a := &App{
		Config: &config.Config{
			Environment:   "local",
			Observability: config.ObservabilityConfig{EnableMetrics: true},
		},
		Logger: discardLogger(),
	}

	require.NoError(t, a.initAWS(context.Background()))
	assert.IsType(t, notifications.NoopPublisher{}, a.Publisher)
	assert.IsType(t, notifications.NoopMetrics{}, a.Metrics)
}

func TestInitAWS_PushQueueAndMetrics(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_CONFIG_FILE", "/dev/null")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", "/dev/null")

	a := &App{
		Config: &config.Config{
			Environment: "local",
			AWS: config.AWSConfig{
				Region:       "us-east-1",
				PushQueueURL: "http://localhost:4566/000000000000/push-updates",
				EndpointURL:  "http://localhost:4566",
			},
			Observability: config.ObservabilityConfig{EnableMetrics: true, MetricNamespace: "Test"},
		},
		Logger: discardLogger(),
	}

	require.NoError(t, a.initAWS(context.Background()))
	assert.IsType(t, &notifications.PushPublisher{}, a.Publisher)
	assert.IsType(t, &notifications.CampaignMetrics{}, a.Metrics)
}

func TestWire_BuildsServices(t *testing.T) {
	a := &App{
		Config:    &config.Config{},
		Logger:    discardLogger(),
		Publisher: notifications.NoopPublisher{},
		Metrics:   notifications.NoopMetrics{},
	}
	a.wire()

	assert.NotNil(t, a.Reconciler)
	assert.NotNil(t, a.Canceller)
	assert.NotNil(t, a.Expiry)
	assert.NotNil(t, a.Approvals)
	assert.NotNil(t, a.Sweeper)

	m := a.Multiplexer("worker-1")
	assert.Equal(t, "worker-1", m.WorkerID)
	assert.NotNil(t, m.JobLock)
	assert.NotNil(t, m.JobHistory)
}

func TestMissingSchedulerVars(t *testing.T) {
	assert.Equal(t, []string{"SCHEDULE_URL", "JOBS_API_KEY"}, missingSchedulerVars(config.SchedulerConfig{}))
	assert.Equal(t, []string{"JOBS_API_KEY"}, missingSchedulerVars(config.SchedulerConfig{URL: "https://jobs.example.com"}))
	assert.Empty(t, missingSchedulerVars(config.SchedulerConfig{URL: "https://jobs.example.com", APIKey: "k"}))
}

func TestNewLogger_Levels(t *testing.T) {
	ctx := context.Background()
	assert.True(t, NewLogger("debug").Enabled(ctx, slog.LevelDebug))
	assert.False(t, NewLogger("warn").Enabled(ctx, slog.LevelInfo))
	assert.True(t, NewLogger("bogus").Enabled(ctx, slog.LevelInfo))
	assert.False(t, NewLogger("bogus").Enabled(ctx, slog.LevelDebug))
}

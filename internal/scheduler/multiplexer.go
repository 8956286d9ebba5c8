package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"wacrm/internal/campaigns"
)

// ExpiryService raises batch expiry alerts.
type ExpiryService interface {
	CheckExpiringBatches(ctx context.Context, now time.Time) (*campaigns.ExpiryReport, error)
}

// OverdueService expires batches whose approval deadline passed.
type OverdueService interface {
	ExpireOverdueBatches(ctx context.Context, now time.Time) (int64, error)
}

// ReconcileService settles open campaigns.
type ReconcileService interface {
	ReconcileOpenCampaigns(ctx context.Context, now time.Time, limit int) (int, error)
}

// Services holds the implementations the multiplexer routes to.
type Services struct {
	Expiry    ExpiryService
	Overdue   OverdueService
	Reconcile ReconcileService
}

// JobLocker abstracts the distributed lock acquisition.
type JobLocker interface {
	Acquire(ctx context.Context, lockID string, workerID string, ttl time.Duration) (bool, error)
}

// JobHistorian abstracts the job history recording.
type JobHistorian interface {
	Start(ctx context.Context, jobType string) (int64, error)
	Finish(ctx context.Context, id int64, status string, items int, err error) error
}

// Multiplexer runs one maintenance task per invocation.
type Multiplexer struct {
	Services   Services
	JobLock    JobLocker
	JobHistory JobHistorian
	WorkerID   string
	SweepLimit int
	Logger     *slog.Logger
	Now        func() time.Time
}

// Handle processes a MaintenancePayload:
//  1. Determine the reference time.
//  2. Acquire the job lock for the task interval; skip if held.
//  3. Record job start in job_history.
//  4. Dispatch to the task's service.
//  5. Record job completion with status and item count.
func (m *Multiplexer) Handle(ctx context.Context, payload MaintenancePayload) (string, error) {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := m.now()
	if payload.ReferenceTime != nil {
		now = payload.ReferenceTime.UTC()
	}

	task := string(payload.Task)
	logger.InfoContext(ctx, "maintenance handler invoked",
		"task", task,
		"reference_time", now.Format(time.RFC3339),
		"worker_id", m.WorkerID,
	)

	if payload.Task == "" {
		return "", fmt.Errorf("empty task type in maintenance payload")
	}
	if !payload.Task.IsValid() {
		return "", fmt.Errorf("unknown task type: %q", payload.Task)
	}

	lockID := LockID(payload.Task, now)
	acquired, err := m.JobLock.Acquire(ctx, lockID, m.WorkerID, payload.Task.Interval())
	if err != nil {
		logger.ErrorContext(ctx, "failed to acquire job lock",
			"lock_id", lockID,
			"error", err,
		)
		return "", fmt.Errorf("acquiring job lock %s: %w", lockID, err)
	}
	if !acquired {
		logger.InfoContext(ctx, "job lock not acquired, another worker is processing",
			"lock_id", lockID,
		)
		return fmt.Sprintf("skipped: lock %s held by another worker", lockID), nil
	}

	jobID, err := m.JobHistory.Start(ctx, task)
	if err != nil {
		logger.ErrorContext(ctx, "failed to start job history",
			"task", task,
			"error", err,
		)
		// jobID 0 skips Finish.
		jobID = 0
	}

	items, execErr := m.dispatch(ctx, payload.Task, now)

	status := "success"
	if execErr != nil {
		status = "failed"
	}
	if jobID != 0 {
		if finishErr := m.JobHistory.Finish(ctx, jobID, status, items, execErr); finishErr != nil {
			logger.ErrorContext(ctx, "failed to finish job history",
				"job_id", jobID,
				"task", task,
				"error", finishErr,
			)
		}
	}

	if execErr != nil {
		logger.ErrorContext(ctx, "task execution failed",
			"task", task,
			"error", execErr,
			"items_before_error", items,
		)
		return "", fmt.Errorf("task %s failed: %w", task, execErr)
	}

	result := fmt.Sprintf("task %s complete: %d items processed", task, items)
	logger.InfoContext(ctx, result,
		"task", task,
		"items", items,
	)
	return result, nil
}

func (m *Multiplexer) dispatch(ctx context.Context, task TaskType, now time.Time) (int, error) {
	switch task {
	case TaskCheckExpiringBatches:
		report, err := m.Services.Expiry.CheckExpiringBatches(ctx, now)
		if err != nil {
			return 0, err
		}
		return len(report.Notifications), nil

	case TaskExpireOverdueBatches:
		n, err := m.Services.Overdue.ExpireOverdueBatches(ctx, now)
		return int(n), err

	case TaskReconcileCampaigns:
		limit := m.SweepLimit
		if limit <= 0 {
			limit = DefaultSweepLimit
		}
		return m.Services.Reconcile.ReconcileOpenCampaigns(ctx, now, limit)

	default:
		return 0, fmt.Errorf("unknown task type: %q", task)
	}
}

func (m *Multiplexer) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

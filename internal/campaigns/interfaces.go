// Package campaigns implements campaign lifecycle operations: cancellation,
// status reconciliation against the external job scheduler, batch expiry
// alerts and the approval queue.
//
// Every operation is a stateless function of the stores and the scheduler.
// Concurrent calls on the same schedule are tolerated because each write is
// derived from observed state and is idempotent.
package campaigns

import (
	"context"
	"time"

	"wacrm/internal/types"
)

// ScheduleStore is the schedules access the services need.
type ScheduleStore interface {
	GetByID(ctx context.Context, id string) (*types.Schedule, error)
	GetNames(ctx context.Context, companyID string, ids []string) (map[string]string, error)
	UpdateStatus(ctx context.Context, id string, status types.ScheduleStatus, cancelledAt, completedAt *time.Time) error
}

// BatchStore is the batch_schedules access the services need.
type BatchStore interface {
	ListPending(ctx context.Context) ([]*types.BatchSchedule, error)
	ListPendingBetween(ctx context.Context, companyID string, fromMs, toMs int64) ([]*types.BatchSchedule, error)
	ExpireOverdue(ctx context.Context, companyID string, beforeMs int64) (int64, error)
	CancelPendingBySchedule(ctx context.Context, companyID, scheduleID string) (int64, error)
	CountPendingBySchedule(ctx context.Context, scheduleID string) (int, error)
}

// MessageStore is the messages access the services need.
type MessageStore interface {
	CancelForSchedule(ctx context.Context, scheduleID string, jobIDs []string, at time.Time) (int64, error)
	CancelByJobIDs(ctx context.Context, companyID string, jobIDs []string, at time.Time) (int64, error)
	MarkDeleted(ctx context.Context, companyID, jobID string, at time.Time) (bool, error)
	CountPendingBySchedule(ctx context.Context, scheduleID string) (int, error)
	GetByJobID(ctx context.Context, companyID, jobID string) (*types.Message, error)
	UpdateStatus(ctx context.Context, id string, status types.MessageStatus, errorDetails *string, at time.Time) error
}

// NotificationStore persists expiry alerts.
type NotificationStore interface {
	ExistsForWindow(ctx context.Context, batchID string, window types.NotificationWindow) (bool, error)
	Create(ctx context.Context, n *types.Notification) (bool, error)
}

// Publisher delivers push updates to connected dashboards. Delivery is best
// effort: callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, update types.PushUpdate) error
}

// Metrics receives campaign counters.
type Metrics interface {
	RecordTransition(ctx context.Context, from, to types.ScheduleStatus)
	RecordNotificationCreated(ctx context.Context, window types.NotificationWindow)
	RecordSchedulerUnavailable(ctx context.Context, operation string)
	RecordCancelChunkFailure(ctx context.Context, ids int)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, types.PushUpdate) error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordTransition(context.Context, types.ScheduleStatus, types.ScheduleStatus) {}
func (nopMetrics) RecordNotificationCreated(context.Context, types.NotificationWindow)          {}
func (nopMetrics) RecordSchedulerUnavailable(context.Context, string)                           {}
func (nopMetrics) RecordCancelChunkFailure(context.Context, int)                                {}

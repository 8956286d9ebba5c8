// Package scheduler implements the cron-driven campaign maintenance tasks.
//
// EventBridge rules invoke the maintenance Lambda with a MaintenancePayload.
// The Multiplexer routes each TaskType to its service behind a distributed
// job lock so overlapping invocations skip rather than run twice.
package scheduler

import (
	"fmt"
	"time"
)

// TaskType identifies which maintenance service should handle an event.
type TaskType string

const (
	TaskCheckExpiringBatches TaskType = "check_expiring_batches"
	TaskExpireOverdueBatches TaskType = "expire_overdue_batches"
	TaskReconcileCampaigns   TaskType = "reconcile_campaigns"
)

// taskIntervals is the cron cadence of each task. Lock ids are truncated to
// this interval.
var taskIntervals = map[TaskType]time.Duration{
	TaskCheckExpiringBatches: 30 * time.Minute,
	TaskExpireOverdueBatches: 15 * time.Minute,
	TaskReconcileCampaigns:   10 * time.Minute,
}

// Tasks returns every known task in a stable order.
func Tasks() []TaskType {
	return []TaskType{TaskCheckExpiringBatches, TaskExpireOverdueBatches, TaskReconcileCampaigns}
}

// IsValid reports whether t is a known task.
func (t TaskType) IsValid() bool {
	_, ok := taskIntervals[t]
	return ok
}

// Interval returns the task cadence, or one hour for unknown tasks.
func (t TaskType) Interval() time.Duration {
	if d, ok := taskIntervals[t]; ok {
		return d
	}
	return time.Hour
}

// LockID returns the job lock key for a run of t at now, in the form
// "task:2006-01-02T15:04" truncated to the task interval.
func LockID(t TaskType, now time.Time) string {
	return fmt.Sprintf("%s:%s", t, now.UTC().Truncate(t.Interval()).Format("2006-01-02T15:04"))
}

// MaintenancePayload is the JSON payload sent by EventBridge to the
// maintenance Lambda:
//
//	{
//	  "task": "check_expiring_batches",
//	  "reference_time": "2026-02-06T03:00:00Z"  // optional
//	}
type MaintenancePayload struct {
	Task TaskType `json:"task"`
	// ReferenceTime overrides "now" for manual invocation and backfilling.
	// If nil, time.Now().UTC() is used.
	ReferenceTime *time.Time `json:"reference_time,omitempty"`
}

package campaigns

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"wacrm/internal/external"
	"wacrm/internal/types"
)

// ReconcilerConfig holds the dependencies of a Reconciler.
type ReconcilerConfig struct {
	Schedules ScheduleStore
	Batches   BatchStore
	Messages  MessageStore
	Scheduler external.JobScheduler
	Publisher Publisher
	Metrics   Metrics
	Logger    *slog.Logger
}

// Reconciler brings local campaign state in line with the job scheduler.
type Reconciler struct {
	schedules ScheduleStore
	batches   BatchStore
	messages  MessageStore
	scheduler external.JobScheduler
	publisher Publisher
	metrics   Metrics
	logger    *slog.Logger
}

// NewReconciler creates a Reconciler. Publisher and Metrics are optional.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var publisher Publisher = nopPublisher{}
	if cfg.Publisher != nil {
		publisher = cfg.Publisher
	}
	var metrics Metrics = nopMetrics{}
	if cfg.Metrics != nil {
		metrics = cfg.Metrics
	}
	return &Reconciler{
		schedules: cfg.Schedules,
		batches:   cfg.Batches,
		messages:  cfg.Messages,
		scheduler: cfg.Scheduler,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// StatusReport is the diagnostic payload of CheckCampaignStatus.
type StatusReport struct {
	ScheduleID                 string               `json:"schedule_id"`
	PreviousStatus             types.ScheduleStatus `json:"previous_status"`
	Status                     types.ScheduleStatus `json:"status"`
	StatusChanged              bool                 `json:"status_changed"`
	CloudflareAvailable        bool                 `json:"cloudflare_available"`
	Summary                    *external.JobSummary `json:"summary,omitempty"`
	ExternalPending            int                  `json:"external_pending"`
	LocalPendingMessages       int                  `json:"local_pending_messages"`
	LocalPendingBatches        int                  `json:"local_pending_batches"`
	HasPending                 bool                 `json:"has_pending"`
	ShouldFinalizeCancellation bool                 `json:"should_finalize_cancellation"`
}

// CheckCampaignStatus decides whether a campaign has finished and persists
// the transition. When the scheduler cannot be reached the report says so
// and nothing is written.
func (r *Reconciler) CheckCampaignStatus(ctx context.Context, companyID, scheduleID string, now time.Time) (*StatusReport, error) {
	if err := requireCompany(companyID); err != nil {
		return nil, err
	}
	if scheduleID == "" {
		return nil, missingField("schedule_id")
	}

	schedule, err := loadOwnedSchedule(ctx, r.schedules, companyID, scheduleID)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		ScheduleID:     schedule.ID,
		PreviousStatus: schedule.Status,
		Status:         schedule.Status,
	}

	if !r.scheduler.Configured() {
		r.metrics.RecordSchedulerUnavailable(ctx, "check_status")
		return report, nil
	}
	jobs, err := r.scheduler.GetJobStatus(ctx, companyID, scheduleID)
	if err != nil {
		r.logger.WarnContext(ctx, "job scheduler status unavailable",
			"schedule_id", scheduleID,
			"company_id", companyID,
			"error", err,
		)
		r.metrics.RecordSchedulerUnavailable(ctx, "check_status")
		return report, nil
	}
	report.CloudflareAvailable = true
	report.Summary = &jobs.Summary

	signals := PendingSignals{External: jobs.PendingCount()}
	if signals.LocalMessages, err = r.messages.CountPendingBySchedule(ctx, scheduleID); err != nil {
		return nil, err
	}
	if signals.LocalBatches, err = r.batches.CountPendingBySchedule(ctx, scheduleID); err != nil {
		return nil, err
	}
	report.ExternalPending = signals.External
	report.LocalPendingMessages = signals.LocalMessages
	report.LocalPendingBatches = signals.LocalBatches
	report.HasPending = signals.Any()
	report.ShouldFinalizeCancellation = ShouldFinalizeCancellation(schedule.Status, schedule.CancelledAt, now)

	t := DecideTransition(schedule.Status, report.HasPending, report.ShouldFinalizeCancellation, schedule.CancelledAt != nil)
	if !t.Changed {
		return report, nil
	}

	var cancelledAt, completedAt *time.Time
	if t.SetCancelledAt {
		cancelledAt = &now
	}
	if t.SetCompletedAt {
		completedAt = &now
	}
	if err := r.schedules.UpdateStatus(ctx, scheduleID, t.Next, cancelledAt, completedAt); err != nil {
		return nil, err
	}

	report.Status = t.Next
	report.StatusChanged = true

	r.logger.InfoContext(ctx, "campaign status changed",
		"schedule_id", scheduleID,
		"company_id", companyID,
		"from", schedule.Status,
		"to", t.Next,
		"forced", report.ShouldFinalizeCancellation,
	)
	r.metrics.RecordTransition(ctx, schedule.Status, t.Next)
	r.publish(ctx, types.PushUpdate{
		CompanyID: companyID,
		Type:      types.PushCampaignStatusChanged,
		Data: map[string]any{
			"schedule_id":     scheduleID,
			"previous_status": schedule.Status,
			"status":          t.Next,
		},
		OccurredAt: now,
	})

	return report, nil
}

// SyncResult counts what SyncCampaignMessages did. Rows with an unknown
// external status or an unchanged status are counted as skipped.
type SyncResult struct {
	ScheduleID          string   `json:"schedule_id"`
	CloudflareAvailable bool     `json:"cloudflare_available"`
	Checked             int      `json:"checked"`
	Updated             int      `json:"updated"`
	Skipped             int      `json:"skipped"`
	NotFound            int      `json:"not_found"`
	Errors              []string `json:"errors"`
}

// SyncCampaignMessages copies job statuses from the scheduler onto local
// messages. Only rows whose status differs are written.
func (r *Reconciler) SyncCampaignMessages(ctx context.Context, companyID, scheduleID string, now time.Time) (*SyncResult, error) {
	if err := requireCompany(companyID); err != nil {
		return nil, err
	}
	if scheduleID == "" {
		return nil, missingField("schedule_id")
	}
	if _, err := loadOwnedSchedule(ctx, r.schedules, companyID, scheduleID); err != nil {
		return nil, err
	}

	result := &SyncResult{ScheduleID: scheduleID, Errors: []string{}}

	if !r.scheduler.Configured() {
		r.metrics.RecordSchedulerUnavailable(ctx, "sync_messages")
		return result, nil
	}
	jobs, err := r.scheduler.GetJobStatus(ctx, companyID, scheduleID)
	if err != nil {
		r.logger.WarnContext(ctx, "job scheduler status unavailable, skipping sync",
			"schedule_id", scheduleID,
			"error", err,
		)
		r.metrics.RecordSchedulerUnavailable(ctx, "sync_messages")
		return result, nil
	}
	result.CloudflareAvailable = true

	for _, row := range jobs.Rows {
		result.Checked++

		status, ok := MapExternalStatus(row.Status)
		if !ok {
			result.Skipped++
			continue
		}

		msg, err := r.messages.GetByJobID(ctx, companyID, row.ID)
		if err != nil {
			if errorCode(err) == types.ErrCodeNotFoundMessage {
				result.NotFound++
				continue
			}
			result.Errors = append(result.Errors, row.ID+": "+err.Error())
			continue
		}
		if msg.Status == status {
			result.Skipped++
			continue
		}

		var details *string
		if text := row.ErrorText(); text != "" {
			details = &text
		}
		if err := r.messages.UpdateStatus(ctx, msg.ID, status, details, now); err != nil {
			if errorCode(err) == types.ErrCodeNotFoundMessage {
				result.NotFound++
				continue
			}
			r.logger.ErrorContext(ctx, "failed to sync message status",
				"message_id", msg.ID,
				"scheduler_job_id", row.ID,
				"error", err,
			)
			result.Errors = append(result.Errors, row.ID+": "+err.Error())
			continue
		}
		result.Updated++
	}

	r.logger.InfoContext(ctx, "campaign messages synced",
		"schedule_id", scheduleID,
		"checked", result.Checked,
		"updated", result.Updated,
		"not_found", result.NotFound,
		"errors", len(result.Errors),
	)
	return result, nil
}

// MapExternalStatus translates a scheduler job status to a message status.
func MapExternalStatus(status string) (types.MessageStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "sent", "success":
		return types.MessageSuccess, true
	case "failed", "error":
		return types.MessageFailed, true
	case "pending", "scheduled", "queued":
		return types.MessagePending, true
	case "cancelled", "canceled":
		return types.MessageCancelled, true
	}
	return "", false
}

func (r *Reconciler) publish(ctx context.Context, update types.PushUpdate) {
	if err := r.publisher.Publish(ctx, update); err != nil {
		r.logger.WarnContext(ctx, "push update failed",
			"company_id", update.CompanyID,
			"type", update.Type,
			"error", err,
		)
	}
}

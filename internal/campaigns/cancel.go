package campaigns

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"wacrm/internal/external"
	"wacrm/internal/types"
)

const (
	// DefaultCancelChunkSize is the number of job ids updated per statement.
	DefaultCancelChunkSize = 100
	// DefaultCancelParallelism bounds concurrent chunk updates.
	DefaultCancelParallelism = 4
)

// CancellerConfig holds the dependencies of a Canceller.
type CancellerConfig struct {
	Schedules   ScheduleStore
	Batches     BatchStore
	Messages    MessageStore
	Scheduler   external.JobScheduler
	Metrics     Metrics
	ChunkSize   int
	Parallelism int
	Clock       func() time.Time
	Logger      *slog.Logger
}

// Canceller stops scheduled sends externally and mirrors the result locally.
type Canceller struct {
	schedules   ScheduleStore
	batches     BatchStore
	messages    MessageStore
	scheduler   external.JobScheduler
	metrics     Metrics
	chunkSize   int
	parallelism int
	clock       func() time.Time
	logger      *slog.Logger
}

// NewCanceller creates a Canceller with defaults applied.
func NewCanceller(cfg CancellerConfig) *Canceller {
	c := &Canceller{
		schedules:   cfg.Schedules,
		batches:     cfg.Batches,
		messages:    cfg.Messages,
		scheduler:   cfg.Scheduler,
		metrics:     cfg.Metrics,
		chunkSize:   cfg.ChunkSize,
		parallelism: cfg.Parallelism,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
	}
	if c.metrics == nil {
		c.metrics = nopMetrics{}
	}
	if c.chunkSize <= 0 {
		c.chunkSize = DefaultCancelChunkSize
	}
	if c.parallelism <= 0 {
		c.parallelism = DefaultCancelParallelism
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// CancelResult is returned by CancelBatch.
type CancelResult struct {
	Success              bool     `json:"success"`
	LocalOnly            bool     `json:"local_only"`
	ScheduleID           string   `json:"schedule_id"`
	Accepted             int      `json:"accepted"`
	SchedulerIDs         []string `json:"scheduler_ids"`
	UpdatedMessagesCount int64    `json:"updated_messages_count"`
	CancelledBatches     int64    `json:"cancelled_batches"`
	Successful           int      `json:"successful"`
	Failed               int      `json:"failed"`
	Errors               []string `json:"errors"`
}

// CancelBatch cancels the given scheduler jobs of a campaign and marks the
// campaign cancelled. Without a configured scheduler the cancellation is
// applied locally only. With one, a failed bulk cancel aborts before any
// local write.
func (c *Canceller) CancelBatch(ctx context.Context, companyID string, jobIDs []string, scheduleID string) (*CancelResult, error) {
	if err := requireCompany(companyID); err != nil {
		return nil, err
	}
	ids := normalizeIDs(jobIDs)
	if len(ids) == 0 {
		return nil, missingField("scheduler_job_ids")
	}
	if scheduleID == "" {
		return nil, missingField("schedule_id")
	}

	if _, err := loadOwnedSchedule(ctx, c.schedules, companyID, scheduleID); err != nil {
		return nil, err
	}

	now := c.clock().UTC()

	if !c.scheduler.Configured() {
		return c.cancelLocalOnly(ctx, companyID, scheduleID, ids, now)
	}

	accepted, err := c.scheduler.CancelBatch(ctx, ids)
	if err != nil {
		c.logger.ErrorContext(ctx, "bulk cancel failed",
			"schedule_id", scheduleID,
			"company_id", companyID,
			"ids", len(ids),
			"error", err,
		)
		return nil, err
	}

	result := &CancelResult{
		Success:      true,
		ScheduleID:   scheduleID,
		Accepted:     accepted.Accepted,
		SchedulerIDs: accepted.IDs,
		Errors:       []string{},
	}
	c.updateChunks(ctx, companyID, ids, now, result)

	if err := c.schedules.UpdateStatus(ctx, scheduleID, types.ScheduleCancelled, &now, nil); err != nil {
		return nil, err
	}
	c.cancelBatches(ctx, companyID, scheduleID, result)

	c.logger.InfoContext(ctx, "campaign cancelled",
		"schedule_id", scheduleID,
		"company_id", companyID,
		"accepted", result.Accepted,
		"updated_messages", result.UpdatedMessagesCount,
		"failed", result.Failed,
	)
	return result, nil
}

func (c *Canceller) cancelLocalOnly(ctx context.Context, companyID, scheduleID string, ids []string, now time.Time) (*CancelResult, error) {
	c.logger.WarnContext(ctx, "job scheduler not configured, cancelling locally",
		"schedule_id", scheduleID,
		"company_id", companyID,
	)
	c.metrics.RecordSchedulerUnavailable(ctx, "cancel_batch")

	// Messages first: a failed update must leave the schedule retryable.
	updated, err := c.messages.CancelForSchedule(ctx, scheduleID, ids, now)
	if err != nil {
		return nil, err
	}
	if err := c.schedules.UpdateStatus(ctx, scheduleID, types.ScheduleCancelled, &now, nil); err != nil {
		return nil, err
	}

	result := &CancelResult{
		Success:              true,
		LocalOnly:            true,
		ScheduleID:           scheduleID,
		SchedulerIDs:         []string{},
		UpdatedMessagesCount: updated,
		Successful:           len(ids),
		Errors:               []string{},
	}
	c.cancelBatches(ctx, companyID, scheduleID, result)
	return result, nil
}

// updateChunks marks messages cancelled chunk by chunk. A failed chunk is
// recorded on the result and does not stop the others.
func (c *Canceller) updateChunks(ctx context.Context, companyID string, ids []string, now time.Time, result *CancelResult) {
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(c.parallelism)

	for i, part := range chunk(ids, c.chunkSize) {
		g.Go(func() error {
			n, err := c.messages.CancelByJobIDs(ctx, companyID, part, now)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.logger.ErrorContext(ctx, "cancel chunk failed",
					"company_id", companyID,
					"chunk", i,
					"ids", len(part),
					"error", err,
				)
				c.metrics.RecordCancelChunkFailure(ctx, len(part))
				result.Failed += len(part)
				result.Errors = append(result.Errors, fmt.Sprintf("chunk %d: %v", i, err))
				return nil
			}
			result.Successful += len(part)
			result.UpdatedMessagesCount += n
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Canceller) cancelBatches(ctx context.Context, companyID, scheduleID string, result *CancelResult) {
	n, err := c.batches.CancelPendingBySchedule(ctx, companyID, scheduleID)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to cancel pending batches",
			"schedule_id", scheduleID,
			"error", err,
		)
		result.Errors = append(result.Errors, "batches: "+err.Error())
		return
	}
	result.CancelledBatches = n
}

// DeleteResult is returned by DeleteScheduledMessages.
type DeleteResult struct {
	Success      bool     `json:"success"`
	Accepted     int      `json:"accepted"`
	SchedulerIDs []string `json:"scheduler_ids"`
	DeletedCount int      `json:"deleted_count"`
	NotFound     int      `json:"not_found"`
	Errors       []string `json:"errors"`
}

// DeleteScheduledMessages cancels individual scheduled messages and soft
// deletes them. It requires a configured scheduler.
func (c *Canceller) DeleteScheduledMessages(ctx context.Context, companyID string, jobIDs []string) (*DeleteResult, error) {
	if err := requireCompany(companyID); err != nil {
		return nil, err
	}
	ids := normalizeIDs(jobIDs)
	if len(ids) == 0 {
		return nil, missingField("scheduler_job_ids")
	}
	if !c.scheduler.Configured() {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeUpstreamSchedulerNotConfig,
			"job scheduler is not configured", nil,
			map[string]any{"required": []string{"SCHEDULE_URL", "JOBS_API_KEY"}})
	}

	accepted, err := c.scheduler.CancelBatch(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := c.clock().UTC()
	result := &DeleteResult{
		Success:      true,
		Accepted:     accepted.Accepted,
		SchedulerIDs: accepted.IDs,
		Errors:       []string{},
	}
	for _, id := range ids {
		found, err := c.messages.MarkDeleted(ctx, companyID, id, now)
		if err != nil {
			c.logger.ErrorContext(ctx, "failed to mark message deleted",
				"scheduler_job_id", id,
				"company_id", companyID,
				"error", err,
			)
			result.Errors = append(result.Errors, id+": "+err.Error())
			continue
		}
		if !found {
			result.NotFound++
			continue
		}
		result.DeletedCount++
	}
	return result, nil
}

package campaigns

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"wacrm/internal/types"
)

// ApprovalHorizon is how far ahead GetPendingApprovals looks.
const ApprovalHorizon = 7 * 24 * time.Hour

// ApprovalQueueConfig holds the dependencies of an ApprovalQueue.
type ApprovalQueueConfig struct {
	Schedules ScheduleStore
	Batches   BatchStore
	Logger    *slog.Logger
}

// ApprovalQueue lists batches awaiting approval.
type ApprovalQueue struct {
	schedules ScheduleStore
	batches   BatchStore
	logger    *slog.Logger
}

// NewApprovalQueue creates an ApprovalQueue.
func NewApprovalQueue(cfg ApprovalQueueConfig) *ApprovalQueue {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ApprovalQueue{
		schedules: cfg.Schedules,
		batches:   cfg.Batches,
		logger:    logger,
	}
}

// PendingApproval is a pending batch joined to its campaign name.
type PendingApproval struct {
	*types.BatchSchedule
	ScheduleName   string  `json:"schedule_name"`
	HoursRemaining float64 `json:"hours_remaining"`
}

// PendingApprovals is returned by GetPendingApprovals.
type PendingApprovals struct {
	Batches      []PendingApproval `json:"batches"`
	ExpiredCount int64             `json:"expired_count"`
}

// GetPendingApprovals expires the company's overdue batches, then returns
// the pending ones due within ApprovalHorizon ordered by run_at. A failed
// sweep is logged and reported as zero expired.
func (q *ApprovalQueue) GetPendingApprovals(ctx context.Context, companyID string, now time.Time) (*PendingApprovals, error) {
	if err := requireCompany(companyID); err != nil {
		return nil, err
	}
	nowMs := types.ToEpochMillis(now)

	expired, err := q.batches.ExpireOverdue(ctx, companyID, nowMs)
	if err != nil {
		q.logger.ErrorContext(ctx, "failed to expire overdue batches",
			"company_id", companyID,
			"error", err,
		)
		expired = 0
	}

	pending, err := q.batches.ListPendingBetween(ctx, companyID, nowMs, nowMs+ApprovalHorizon.Milliseconds())
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(pending))
	for _, b := range pending {
		ids = append(ids, b.ScheduleID)
	}
	ids = normalizeIDs(ids)

	names := map[string]string{}
	if len(ids) > 0 {
		if names, err = q.schedules.GetNames(ctx, companyID, ids); err != nil {
			return nil, err
		}
	}

	out := &PendingApprovals{
		Batches:      make([]PendingApproval, 0, len(pending)),
		ExpiredCount: expired,
	}
	for _, b := range pending {
		out.Batches = append(out.Batches, PendingApproval{
			BatchSchedule:  b,
			ScheduleName:   names[b.ScheduleID],
			HoursRemaining: float64(b.RunAt-nowMs) / float64(time.Hour.Milliseconds()),
		})
	}
	slices.SortStableFunc(out.Batches, func(a, b PendingApproval) int {
		switch {
		case a.RunAt < b.RunAt:
			return -1
		case a.RunAt > b.RunAt:
			return 1
		}
		return 0
	})
	return out, nil
}

// ExpireOverdueBatches expires every company's pending batches whose run_at
// has passed.
func (q *ApprovalQueue) ExpireOverdueBatches(ctx context.Context, now time.Time) (int64, error) {
	n, err := q.batches.ExpireOverdue(ctx, "", types.ToEpochMillis(now))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		q.logger.InfoContext(ctx, "expired overdue batches", "count", n)
	}
	return n, nil
}

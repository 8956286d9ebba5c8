package scheduler

import (
	"context"
	"log/slog"
	"time"

	"wacrm/internal/campaigns"
	"wacrm/internal/types"
)

// DefaultSweepLimit caps how many open campaigns one sweep visits.
const DefaultSweepLimit = 200

// SweeperDB lists campaigns by status and records which ones a sweep visited.
type SweeperDB interface {
	// SQL: SELECT ... FROM schedules WHERE status = ANY($1)
	//      ORDER BY last_reconciled_at ASC NULLS FIRST, updated_at ASC LIMIT $2
	ListByStatus(ctx context.Context, statuses []types.ScheduleStatus, limit int) ([]*types.Schedule, error)

	// TouchReconciled rotates visited campaigns to the back of the queue, so
	// open campaigns beyond one page are reached on later sweeps.
	TouchReconciled(ctx context.Context, ids []string, at time.Time) error
}

// StatusChecker reconciles one campaign.
type StatusChecker interface {
	CheckCampaignStatus(ctx context.Context, companyID, scheduleID string, now time.Time) (*campaigns.StatusReport, error)
}

// CampaignSweeper runs status reconciliation over every open campaign so
// cancelling and active campaigns settle without a dashboard poll.
type CampaignSweeper struct {
	db      SweeperDB
	checker StatusChecker
	logger  *slog.Logger
}

// NewCampaignSweeper creates a CampaignSweeper.
func NewCampaignSweeper(db SweeperDB, checker StatusChecker, logger *slog.Logger) *CampaignSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &CampaignSweeper{db: db, checker: checker, logger: logger}
}

// ReconcileOpenCampaigns checks up to limit active or cancelling campaigns
// and returns how many changed status. Per-campaign failures are logged and
// skipped.
func (s *CampaignSweeper) ReconcileOpenCampaigns(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultSweepLimit
	}

	open, err := s.db.ListByStatus(ctx, []types.ScheduleStatus{types.ScheduleActive, types.ScheduleCancelling}, limit)
	if err != nil {
		return 0, err
	}

	transitions := 0
	unavailable := 0
	visited := make([]string, 0, len(open))
	for _, sch := range open {
		if err := ctx.Err(); err != nil {
			return transitions, err
		}
		// Failed checks are touched too; one broken campaign must not pin
		// the head of the queue.
		visited = append(visited, sch.ID)

		report, err := s.checker.CheckCampaignStatus(ctx, sch.CompanyID, sch.ID, now)
		if err != nil {
			s.logger.ErrorContext(ctx, "campaign reconciliation failed",
				"schedule_id", sch.ID,
				"company_id", sch.CompanyID,
				"error", err,
			)
			continue
		}
		if !report.CloudflareAvailable {
			unavailable++
		}
		if report.StatusChanged {
			transitions++
		}
	}

	if err := s.db.TouchReconciled(ctx, visited, now); err != nil {
		s.logger.ErrorContext(ctx, "failed to record swept campaigns",
			"count", len(visited),
			"error", err,
		)
	}

	s.logger.InfoContext(ctx, "campaign sweep complete",
		"visited", len(open),
		"transitions", transitions,
		"scheduler_unavailable", unavailable,
	)
	return transitions, nil
}

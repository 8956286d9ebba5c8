package db

import (
	"context"

	"wacrm/internal/types"
)

// BatchRepository provides data access for the batch_schedules table.
// run_at is stored as epoch milliseconds (BIGINT, nullable).
type BatchRepository struct {
	db DBTX
}

// NewBatchRepository creates a BatchRepository.
func NewBatchRepository(db DBTX) *BatchRepository {
	return &BatchRepository{db: db}
}

const batchColumns = `id, schedule_id, company_id, status, run_at, batch_number,
	recipient_count, is_dynamic, contact_filters, COALESCE(filter_logic, ''),
	created_at, updated_at`

// ListPending returns every pending batch across all companies.
func (r *BatchRepository) ListPending(ctx context.Context) ([]*types.BatchSchedule, error) {
	return r.list(ctx,
		`SELECT `+batchColumns+` FROM batch_schedules
		 WHERE status = 'pending'
		 ORDER BY run_at ASC NULLS LAST`,
	)
}

// ListPendingBetween returns a company's pending batches with run_at in
// [fromMs, toMs], soonest first.
func (r *BatchRepository) ListPendingBetween(ctx context.Context, companyID string, fromMs, toMs int64) ([]*types.BatchSchedule, error) {
	return r.list(ctx,
		`SELECT `+batchColumns+` FROM batch_schedules
		 WHERE company_id = $1
		   AND status = 'pending'
		   AND run_at >= $2
		   AND run_at <= $3
		 ORDER BY run_at ASC`,
		companyID, fromMs, toMs,
	)
}

// ExpireOverdue moves pending batches whose run_at is before beforeMs to
// expired and returns how many rows changed. An empty companyID sweeps all
// companies.
func (r *BatchRepository) ExpireOverdue(ctx context.Context, companyID string, beforeMs int64) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE batch_schedules
		 SET status = 'expired', updated_at = NOW()
		 WHERE status = 'pending'
		   AND run_at IS NOT NULL
		   AND run_at < $1
		   AND ($2::text IS NULL OR company_id = $2)`,
		beforeMs, nilIfEmptyString(companyID),
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to expire overdue batches", err)
	}
	return tag.RowsAffected(), nil
}

// CancelPendingBySchedule cancels the still pending batches of a schedule.
func (r *BatchRepository) CancelPendingBySchedule(ctx context.Context, companyID, scheduleID string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE batch_schedules
		 SET status = 'cancelled', updated_at = NOW()
		 WHERE company_id = $1 AND schedule_id = $2 AND status = 'pending'`,
		companyID, scheduleID,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to cancel pending batches", err)
	}
	return tag.RowsAffected(), nil
}

// CountPendingBySchedule counts the pending batches of a schedule.
func (r *BatchRepository) CountPendingBySchedule(ctx context.Context, scheduleID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM batch_schedules WHERE schedule_id = $1 AND status = 'pending'`,
		scheduleID,
	).Scan(&n)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count pending batches", err)
	}
	return n, nil
}

func (r *BatchRepository) list(ctx context.Context, query string, args ...any) ([]*types.BatchSchedule, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query batch schedules", err)
	}
	defer rows.Close()

	var out []*types.BatchSchedule
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan batch schedule row", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating batch schedule rows", err)
	}
	return out, nil
}

func scanBatch(row rowScanner) (*types.BatchSchedule, error) {
	var (
		b      types.BatchSchedule
		status string
		runAt  *int64
	)
	if err := row.Scan(
		&b.ID,
		&b.ScheduleID,
		&b.CompanyID,
		&status,
		&runAt,
		&b.BatchNumber,
		&b.RecipientCount,
		&b.IsDynamic,
		&b.ContactFilters,
		&b.FilterLogic,
		&b.CreatedAt,
		&b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.Status = types.BatchStatus(status)
	if runAt != nil {
		b.RunAt = *runAt
	}
	return &b, nil
}

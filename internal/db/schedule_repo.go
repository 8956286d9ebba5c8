package db

import (
	"context"
	"fmt"
	"time"

	"wacrm/internal/types"
)

// ScheduleRepository provides data access for the schedules table.
type ScheduleRepository struct {
	db DBTX
}

// NewScheduleRepository creates a ScheduleRepository.
func NewScheduleRepository(db DBTX) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = `id, company_id, name, status, cancelled_at, completed_at, created_at, updated_at`

// GetByID loads a schedule regardless of tenant. Callers compare CompanyID
// themselves so cross-tenant access can be reported as 403 rather than 404.
func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*types.Schedule, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`,
		id,
	)
	s, err := scanSchedule(row)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSchedule, "schedule not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load schedule", err)
	}
	return s, nil
}

// GetNames returns id -> name for the given schedule ids within a company.
// Unknown ids are absent from the result.
func (r *ScheduleRepository) GetNames(ctx context.Context, companyID string, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, name FROM schedules WHERE company_id = $1 AND id = ANY($2)`,
		companyID, ids,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query schedule names", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan schedule name", err)
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating schedule names", err)
	}
	return names, nil
}

// UpdateStatus sets the status of a schedule. A nil cancelledAt or
// completedAt keeps the stored value.
func (r *ScheduleRepository) UpdateStatus(ctx context.Context, id string, status types.ScheduleStatus, cancelledAt, completedAt *time.Time) error {
	if !status.IsValid() {
		return types.NewAppError(types.ErrCodeValidationInvalidStatus,
			fmt.Sprintf("unknown schedule status %q", status), nil)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE schedules
		 SET status = $2,
		     cancelled_at = COALESCE($3, cancelled_at),
		     completed_at = COALESCE($4, completed_at),
		     updated_at = NOW()
		 WHERE id = $1`,
		id, string(status), cancelledAt, completedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update schedule status", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSchedule, "schedule not found", nil)
	}
	return nil
}

// ListByStatus returns up to limit schedules in any of statuses. Schedules
// never swept come first, then the least recently swept.
func (r *ScheduleRepository) ListByStatus(ctx context.Context, statuses []types.ScheduleStatus, limit int) ([]*types.Schedule, error) {
	if limit <= 0 {
		limit = 200
	}
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+scheduleColumns+` FROM schedules
		 WHERE status = ANY($1)
		 ORDER BY last_reconciled_at ASC NULLS FIRST, updated_at ASC
		 LIMIT $2`,
		values, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list schedules", err)
	}
	defer rows.Close()

	var out []*types.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan schedule row", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating schedule rows", err)
	}
	return out, nil
}

func scanSchedule(row rowScanner) (*types.Schedule, error) {
	var s types.Schedule
	var status string
	if err := row.Scan(
		&s.ID,
		&s.CompanyID,
		&s.Name,
		&status,
		&s.CancelledAt,
		&s.CompletedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Status = types.ScheduleStatus(status)
	return &s, nil
}

// TouchReconciled stamps last_reconciled_at on the given schedules so the
// next sweep starts with campaigns it has not visited yet.
func (r *ScheduleRepository) TouchReconciled(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx,
		`UPDATE schedules SET last_reconciled_at = $2 WHERE id = ANY($1)`,
		ids, at,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record schedule reconciliation", err)
	}
	return nil
}

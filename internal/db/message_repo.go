package db

import (
	"context"
	"fmt"
	"time"

	"wacrm/internal/types"
)

// MessageRepository provides data access for the messages table.
// scheduler_job_id is unique where not null.
type MessageRepository struct {
	db DBTX
}

// NewMessageRepository creates a MessageRepository.
func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `id, company_id, schedule_id, scheduler_job_id, status,
	error_details, deleted, deleted_at, updated_at`

// CancelForSchedule marks the schedule's messages whose job id is in jobIDs
// as cancelled and deleted. It is the local-only cancellation path.
func (r *MessageRepository) CancelForSchedule(ctx context.Context, scheduleID string, jobIDs []string, at time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE messages
		 SET status = 'cancelled', deleted = TRUE, deleted_at = COALESCE(deleted_at, $3), updated_at = $3
		 WHERE schedule_id = $1 AND scheduler_job_id = ANY($2)`,
		scheduleID, jobIDs, at,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to cancel schedule messages", err)
	}
	return tag.RowsAffected(), nil
}

// CancelByJobIDs marks a company's messages with the given job ids as
// cancelled and returns the number of rows written.
func (r *MessageRepository) CancelByJobIDs(ctx context.Context, companyID string, jobIDs []string, at time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE messages
		 SET status = 'cancelled', updated_at = $3
		 WHERE company_id = $1 AND scheduler_job_id = ANY($2)`,
		companyID, jobIDs, at,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to cancel messages", err)
	}
	return tag.RowsAffected(), nil
}

// MarkDeleted soft-deletes the company's message for one job id and reports
// whether a row matched.
func (r *MessageRepository) MarkDeleted(ctx context.Context, companyID, jobID string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE messages
		 SET deleted = TRUE, deleted_at = $3, status = 'cancelled', updated_at = $3
		 WHERE company_id = $1 AND scheduler_job_id = $2`,
		companyID, jobID, at,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to delete message", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CountPendingBySchedule counts the schedule's pending, not deleted messages.
func (r *MessageRepository) CountPendingBySchedule(ctx context.Context, scheduleID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages
		 WHERE schedule_id = $1 AND status = 'pending' AND NOT deleted`,
		scheduleID,
	).Scan(&n)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count pending messages", err)
	}
	return n, nil
}

// GetByJobID loads the company's message for a scheduler job id.
func (r *MessageRepository) GetByJobID(ctx context.Context, companyID, jobID string) (*types.Message, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE company_id = $1 AND scheduler_job_id = $2`,
		companyID, jobID,
	)
	m, err := scanMessage(row)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundMessage, "message not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load message", err)
	}
	return m, nil
}

// UpdateStatus writes a message's status and error details. A missing row
// is reported as not_found_message.
func (r *MessageRepository) UpdateStatus(ctx context.Context, id string, status types.MessageStatus, errorDetails *string, at time.Time) error {
	if !status.IsValid() {
		return types.NewAppError(types.ErrCodeValidationInvalidStatus,
			fmt.Sprintf("unknown message status %q", status), nil)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE messages
		 SET status = $2, error_details = $3, updated_at = $4
		 WHERE id = $1`,
		id, string(status), errorDetails, at,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update message status", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundMessage, "message not found", nil)
	}
	return nil
}

func scanMessage(row rowScanner) (*types.Message, error) {
	var m types.Message
	var status string
	if err := row.Scan(
		&m.ID,
		&m.CompanyID,
		&m.ScheduleID,
		&m.SchedulerJobID,
		&status,
		&m.ErrorDetails,
		&m.Deleted,
		&m.DeletedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m.Status = types.MessageStatus(status)
	return &m, nil
}

package db

import (
	"context"

	"wacrm/internal/types"
)

// NotificationRepository provides data access for the notifications table.
//
// Expiry alerts are unique per (metadata->>'batch_id',
// metadata->>'notification_window') through the partial index
// notifications_batch_window_uniq.
type NotificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a NotificationRepository.
func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// ExistsForWindow reports whether an expiry alert was already raised for
// batchID in window.
func (r *NotificationRepository) ExistsForWindow(ctx context.Context, batchID string, window types.NotificationWindow) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM notifications
		   WHERE type = 'batch_expiring'
		     AND metadata->>'batch_id' = $1
		     AND metadata->>'notification_window' = $2
		 )`,
		batchID, string(window),
	).Scan(&exists)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to check existing notification", err)
	}
	return exists, nil
}

// Create inserts n. It returns false without error when an alert for the
// same batch and window already exists.
func (r *NotificationRepository) Create(ctx context.Context, n *types.Notification) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO notifications
		 (id, company_id, type, title, message, priority, metadata, read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT ((metadata->>'batch_id'), (metadata->>'notification_window'))
		   WHERE type = 'batch_expiring'
		 DO NOTHING`,
		n.ID,
		n.CompanyID,
		string(n.Type),
		n.Title,
		n.Message,
		string(n.Priority),
		n.Metadata,
		n.Read,
		n.CreatedAt,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to create notification", err)
	}
	return tag.RowsAffected() > 0, nil
}

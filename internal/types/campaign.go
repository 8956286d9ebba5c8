package types

import "time"

// ScheduleStatus is the lifecycle state of a campaign.
type ScheduleStatus string

const (
	ScheduleDraft      ScheduleStatus = "draft"
	ScheduleActive     ScheduleStatus = "active"
	ScheduleCancelling ScheduleStatus = "cancelling"
	ScheduleCancelled  ScheduleStatus = "cancelled"
	ScheduleCompleted  ScheduleStatus = "completed"
)

// IsValid reports whether s is a known schedule status.
func (s ScheduleStatus) IsValid() bool {
	switch s {
	case ScheduleDraft, ScheduleActive, ScheduleCancelling, ScheduleCancelled, ScheduleCompleted:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is expected.
func (s ScheduleStatus) IsTerminal() bool {
	return s == ScheduleCancelled || s == ScheduleCompleted
}

// BatchStatus is the approval state of a single campaign batch.
type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchApproved  BatchStatus = "approved"
	BatchExpired   BatchStatus = "expired"
	BatchCancelled BatchStatus = "cancelled"
)

// IsValid reports whether s is a known batch status.
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchPending, BatchApproved, BatchExpired, BatchCancelled:
		return true
	}
	return false
}

// MessageStatus is the delivery state of one WhatsApp message.
type MessageStatus string

const (
	MessagePending   MessageStatus = "pending"
	MessageSuccess   MessageStatus = "success"
	MessageFailed    MessageStatus = "failed"
	MessageCancelled MessageStatus = "cancelled"
)

// IsValid reports whether s is a known message status.
func (s MessageStatus) IsValid() bool {
	switch s {
	case MessagePending, MessageSuccess, MessageFailed, MessageCancelled:
		return true
	}
	return false
}

// NotificationType categorizes user-facing alerts.
type NotificationType string

const (
	NotificationBatchExpiring NotificationType = "batch_expiring"
)

// NotificationPriority controls how prominently an alert is rendered.
type NotificationPriority string

const (
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// NotificationWindow labels the expiry threshold an alert was raised for.
type NotificationWindow string

const (
	Window24h NotificationWindow = "24h"
	Window3h  NotificationWindow = "3h"
	Window1h  NotificationWindow = "1h"
)

// Schedule is a campaign: a named outbound effort that may span many batches.
type Schedule struct {
	ID          string         `json:"id"`
	CompanyID   string         `json:"company_id"`
	Name        string         `json:"name"`
	Status      ScheduleStatus `json:"status"`
	CancelledAt *time.Time     `json:"cancelled_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// BatchSchedule is one approval-gated dispatch of a campaign. RunAt is the
// dispatch deadline in epoch milliseconds; zero means it was never set.
type BatchSchedule struct {
	ID             string         `json:"id"`
	ScheduleID     string         `json:"schedule_id"`
	CompanyID      string         `json:"company_id"`
	Status         BatchStatus    `json:"status"`
	RunAt          int64          `json:"run_at"`
	BatchNumber    int            `json:"batch_number"`
	RecipientCount int            `json:"recipient_count"`
	IsDynamic      bool           `json:"is_dynamic"`
	ContactFilters ContactFilters `json:"contact_filters,omitempty"`
	FilterLogic    string         `json:"filter_logic,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// HasRunAt reports whether a dispatch deadline is set.
func (b *BatchSchedule) HasRunAt() bool {
	return b.RunAt > 0
}

// RunAtTime returns the dispatch deadline as a UTC time.
func (b *BatchSchedule) RunAtTime() time.Time {
	return FromEpochMillis(b.RunAt)
}

// ContactFilter is one predicate of a dynamic batch's recipient query. The
// filters are evaluated by the send pipeline at dispatch time.
type ContactFilter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// ContactFilters is stored as JSONB on batch_schedules.
type ContactFilters []ContactFilter

// Message is one outbound or inbound WhatsApp message. SchedulerJobID is nil
// for received messages.
type Message struct {
	ID             string        `json:"id"`
	CompanyID      string        `json:"company_id"`
	ScheduleID     string        `json:"schedule_id"`
	SchedulerJobID *string       `json:"scheduler_job_id,omitempty"`
	Status         MessageStatus `json:"status"`
	ErrorDetails   *string       `json:"error_details,omitempty"`
	Deleted        bool          `json:"deleted"`
	DeletedAt      *time.Time    `json:"deleted_at,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Notification is a user-facing alert shown in the dashboard.
type Notification struct {
	ID        string               `json:"id"`
	CompanyID string               `json:"company_id"`
	Type      NotificationType     `json:"type"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Priority  NotificationPriority `json:"priority"`
	Metadata  NotificationMetadata `json:"metadata"`
	Read      bool                 `json:"read"`
	CreatedAt time.Time            `json:"created_at"`
}

// NotificationMetadata is stored as JSONB. BatchID and NotificationWindow
// together identify an expiry alert.
type NotificationMetadata struct {
	BatchID            string             `json:"batch_id"`
	ScheduleID         string             `json:"schedule_id,omitempty"`
	NotificationWindow NotificationWindow `json:"notification_window"`
	RunAt              int64              `json:"run_at,omitempty"`
	BatchNumber        int                `json:"batch_number,omitempty"`
	HoursUntilExpiry   float64            `json:"hours_until_expiry,omitempty"`
}

// PushEventType names an event on the push update side channel.
type PushEventType string

const (
	PushBatchExpiring         PushEventType = "batch_expiring"
	PushCampaignStatusChanged PushEventType = "campaign_status_changed"
)

// PushUpdate is delivered to connected dashboards of a company.
type PushUpdate struct {
	CompanyID  string         `json:"company_id"`
	Type       PushEventType  `json:"type"`
	Data       map[string]any `json:"data"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// ToEpochMillis converts t to epoch milliseconds.
func ToEpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromEpochMillis converts epoch milliseconds to a UTC time.
func FromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

package campaigns

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"wacrm/internal/types"
)

// expiryWindow is a half-open (Min, Max] range of hours before run_at.
type expiryWindow struct {
	Window   types.NotificationWindow
	Min, Max float64
	Priority types.NotificationPriority
}

// Checked in order; the first match wins.
var expiryWindows = []expiryWindow{
	{Window: types.Window24h, Min: 23.5, Max: 24, Priority: types.PriorityNormal},
	{Window: types.Window3h, Min: 2.5, Max: 3, Priority: types.PriorityHigh},
	{Window: types.Window1h, Min: 0.5, Max: 1, Priority: types.PriorityUrgent},
}

// MatchWindow returns the alert window for a batch expiring in hours.
func MatchWindow(hours float64) (types.NotificationWindow, types.NotificationPriority, bool) {
	for _, w := range expiryWindows {
		if hours > w.Min && hours <= w.Max {
			return w.Window, w.Priority, true
		}
	}
	return "", "", false
}

// ExpiryNotifierConfig holds the dependencies of an ExpiryNotifier.
type ExpiryNotifierConfig struct {
	Schedules     ScheduleStore
	Batches       BatchStore
	Notifications NotificationStore
	Publisher     Publisher
	Metrics       Metrics
	NewID         func() string
	Logger        *slog.Logger
}

// ExpiryNotifier raises alerts for pending batches close to run_at.
type ExpiryNotifier struct {
	schedules     ScheduleStore
	batches       BatchStore
	notifications NotificationStore
	publisher     Publisher
	metrics       Metrics
	newID         func() string
	logger        *slog.Logger
}

// NewExpiryNotifier creates an ExpiryNotifier.
func NewExpiryNotifier(cfg ExpiryNotifierConfig) *ExpiryNotifier {
	n := &ExpiryNotifier{
		schedules:     cfg.Schedules,
		batches:       cfg.Batches,
		notifications: cfg.Notifications,
		publisher:     cfg.Publisher,
		metrics:       cfg.Metrics,
		newID:         cfg.NewID,
		logger:        cfg.Logger,
	}
	if n.publisher == nil {
		n.publisher = nopPublisher{}
	}
	if n.metrics == nil {
		n.metrics = nopMetrics{}
	}
	if n.newID == nil {
		n.newID = func() string { return "notif_" + uuid.NewString() }
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	return n
}

// ExpiryReport summarizes one CheckExpiringBatches pass.
type ExpiryReport struct {
	Checked              int                              `json:"checked"`
	NotificationsCreated map[types.NotificationWindow]int `json:"notifications_created"`
	Notifications        []*types.Notification            `json:"notifications"`
}

// CheckExpiringBatches scans pending batches and creates at most one alert
// per batch and window. Per-batch failures are logged and skipped.
func (n *ExpiryNotifier) CheckExpiringBatches(ctx context.Context, now time.Time) (*ExpiryReport, error) {
	batches, err := n.batches.ListPending(ctx)
	if err != nil {
		return nil, err
	}

	report := &ExpiryReport{
		NotificationsCreated: map[types.NotificationWindow]int{
			types.Window24h: 0,
			types.Window3h:  0,
			types.Window1h:  0,
		},
		Notifications: []*types.Notification{},
	}
	names := make(map[string]string)
	nowMs := types.ToEpochMillis(now)

	for _, b := range batches {
		report.Checked++
		if !b.HasRunAt() || b.RunAt <= nowMs {
			continue
		}

		hours := float64(b.RunAt-nowMs) / float64(time.Hour.Milliseconds())
		window, priority, ok := MatchWindow(hours)
		if !ok {
			continue
		}

		exists, err := n.notifications.ExistsForWindow(ctx, b.ID, window)
		if err != nil {
			n.logger.ErrorContext(ctx, "notification lookup failed",
				"batch_id", b.ID,
				"window", window,
				"error", err,
			)
			continue
		}
		if exists {
			continue
		}

		notif := n.buildNotification(b, window, priority, hours, n.scheduleName(ctx, names, b.ScheduleID), now)
		created, err := n.notifications.Create(ctx, notif)
		if err != nil {
			n.logger.ErrorContext(ctx, "failed to create expiry notification",
				"batch_id", b.ID,
				"window", window,
				"error", err,
			)
			continue
		}
		if !created {
			// Another run inserted the same alert first.
			continue
		}

		report.NotificationsCreated[window]++
		report.Notifications = append(report.Notifications, notif)
		n.metrics.RecordNotificationCreated(ctx, window)

		if err := n.publisher.Publish(ctx, types.PushUpdate{
			CompanyID: b.CompanyID,
			Type:      types.PushBatchExpiring,
			Data: map[string]any{
				"notification_id": notif.ID,
				"batch_id":        b.ID,
				"schedule_id":     b.ScheduleID,
				"window":          window,
				"run_at":          b.RunAt,
			},
			OccurredAt: now,
		}); err != nil {
			n.logger.WarnContext(ctx, "push update failed",
				"batch_id", b.ID,
				"error", err,
			)
		}
	}

	n.logger.InfoContext(ctx, "expiring batches checked",
		"checked", report.Checked,
		"created_24h", report.NotificationsCreated[types.Window24h],
		"created_3h", report.NotificationsCreated[types.Window3h],
		"created_1h", report.NotificationsCreated[types.Window1h],
	)
	return report, nil
}

// scheduleName resolves a campaign name once per run. An unknown name is
// cached as empty.
func (n *ExpiryNotifier) scheduleName(ctx context.Context, cache map[string]string, scheduleID string) string {
	if name, ok := cache[scheduleID]; ok {
		return name
	}
	var name string
	if s, err := n.schedules.GetByID(ctx, scheduleID); err == nil {
		name = s.Name
	} else {
		n.logger.DebugContext(ctx, "schedule name unavailable",
			"schedule_id", scheduleID,
			"error", err,
		)
	}
	cache[scheduleID] = name
	return name
}

func (n *ExpiryNotifier) buildNotification(b *types.BatchSchedule, window types.NotificationWindow, priority types.NotificationPriority, hours float64, scheduleName string, now time.Time) *types.Notification {
	remaining := FormatTimeRemaining(hours)

	title := fmt.Sprintf("Batch #%d expires in %s", b.BatchNumber, remaining)
	if window == types.Window1h {
		title = fmt.Sprintf("URGENT: batch #%d expires in %s", b.BatchNumber, remaining)
	}

	campaign := ""
	if scheduleName != "" {
		campaign = fmt.Sprintf(" of campaign %q", scheduleName)
	}
	message := fmt.Sprintf("Batch #%d%s (%d recipients) must be approved within %s or it will expire.",
		b.BatchNumber, campaign, b.RecipientCount, remaining)

	return &types.Notification{
		ID:        n.newID(),
		CompanyID: b.CompanyID,
		Type:      types.NotificationBatchExpiring,
		Title:     title,
		Message:   message,
		Priority:  priority,
		Metadata: types.NotificationMetadata{
			BatchID:            b.ID,
			ScheduleID:         b.ScheduleID,
			NotificationWindow: window,
			RunAt:              b.RunAt,
			BatchNumber:        b.BatchNumber,
			HoursUntilExpiry:   math.Round(hours*100) / 100,
		},
		CreatedAt: now,
	}
}

// FormatTimeRemaining renders minutes below one hour and rounded hours
// otherwise.
func FormatTimeRemaining(hours float64) string {
	// Round to minutes first so 59.8 minutes reads as "1 hour".
	if minutes := int(math.Round(hours * 60)); minutes < 60 {
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	h := int(math.Round(hours))
	if h == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", h)
}

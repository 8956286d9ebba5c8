package campaigns

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"wacrm/internal/external"
	"wacrm/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

var errDB = errors.New("connection reset")

// ============================================================
// Mock: ScheduleStore
// ============================================================

type statusWrite struct {
	ID          string
	Status      types.ScheduleStatus
	CancelledAt *time.Time
	CompletedAt *time.Time
}

type mockSchedules struct {
	mu        sync.Mutex
	schedules map[string]*types.Schedule
	writes    []statusWrite
	updateErr error
	getErr    error
}

func newMockSchedules(list ...*types.Schedule) *mockSchedules {
	m := &mockSchedules{schedules: map[string]*types.Schedule{}}
	for _, s := range list {
		m.schedules[s.ID] = s
	}
	return m
}

func (m *mockSchedules) GetByID(_ context.Context, id string) (*types.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	s, ok := m.schedules[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundSchedule, "schedule not found", nil)
	}
	cp := *s
	return &cp, nil
}

func (m *mockSchedules) GetNames(_ context.Context, companyID string, ids []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for _, id := range ids {
		if s, ok := m.schedules[id]; ok && s.CompanyID == companyID {
			out[id] = s.Name
		}
	}
	return out, nil
}

func (m *mockSchedules) UpdateStatus(_ context.Context, id string, status types.ScheduleStatus, cancelledAt, completedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.writes = append(m.writes, statusWrite{ID: id, Status: status, CancelledAt: cancelledAt, CompletedAt: completedAt})
	if s, ok := m.schedules[id]; ok {
		s.Status = status
		if cancelledAt != nil {
			s.CancelledAt = cancelledAt
		}
		if completedAt != nil {
			s.CompletedAt = completedAt
		}
	}
	return nil
}

// ============================================================
// Mock: BatchStore
// ============================================================

type mockBatches struct {
	mu             sync.Mutex
	batches        []*types.BatchSchedule
	listErr        error
	expireErr      error
	cancelErr      error
	expireCalls    []string
	cancelledCalls int
}

func (m *mockBatches) ListPending(_ context.Context) ([]*types.BatchSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*types.BatchSchedule
	for _, b := range m.batches {
		if b.Status == types.BatchPending {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockBatches) ListPendingBetween(_ context.Context, companyID string, fromMs, toMs int64) ([]*types.BatchSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*types.BatchSchedule
	for _, b := range m.batches {
		if b.CompanyID == companyID && b.Status == types.BatchPending && b.RunAt >= fromMs && b.RunAt <= toMs {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockBatches) ExpireOverdue(_ context.Context, companyID string, beforeMs int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expireCalls = append(m.expireCalls, companyID)
	if m.expireErr != nil {
		return 0, m.expireErr
	}
	var n int64
	for _, b := range m.batches {
		if (companyID == "" || b.CompanyID == companyID) && b.Status == types.BatchPending && b.HasRunAt() && b.RunAt < beforeMs {
			b.Status = types.BatchExpired
			n++
		}
	}
	return n, nil
}

func (m *mockBatches) CancelPendingBySchedule(_ context.Context, companyID, scheduleID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelledCalls++
	if m.cancelErr != nil {
		return 0, m.cancelErr
	}
	var n int64
	for _, b := range m.batches {
		if b.CompanyID == companyID && b.ScheduleID == scheduleID && b.Status == types.BatchPending {
			b.Status = types.BatchCancelled
			n++
		}
	}
	return n, nil
}

func (m *mockBatches) CountPendingBySchedule(_ context.Context, scheduleID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		if b.ScheduleID == scheduleID && b.Status == types.BatchPending {
			n++
		}
	}
	return n, nil
}

// ============================================================
// Mock: MessageStore
// ============================================================

type mockMessages struct {
	mu                sync.Mutex
	messages          []*types.Message
	writes            int
	updates           []string
	countErr          error
	cancelErr         func(jobIDs []string) error
	scheduleCancelErr error
	deleteErr         map[string]error
	updateErr         error
}

func jobID(s string) *string { return &s }

func (m *mockMessages) byJob(companyID, id string) *types.Message {
	for _, msg := range m.messages {
		if msg.CompanyID == companyID && msg.SchedulerJobID != nil && *msg.SchedulerJobID == id {
			return msg
		}
	}
	return nil
}

func (m *mockMessages) CancelForSchedule(_ context.Context, scheduleID string, jobIDs []string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scheduleCancelErr != nil {
		return 0, m.scheduleCancelErr
	}
	var n int64
	for _, msg := range m.messages {
		if msg.ScheduleID == scheduleID && msg.SchedulerJobID != nil && slices.Contains(jobIDs, *msg.SchedulerJobID) {
			msg.Status = types.MessageCancelled
			msg.Deleted = true
			msg.UpdatedAt = at
			n++
		}
	}
	m.writes++
	return n, nil
}

func (m *mockMessages) CancelByJobIDs(_ context.Context, companyID string, jobIDs []string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelErr != nil {
		if err := m.cancelErr(jobIDs); err != nil {
			return 0, err
		}
	}
	var n int64
	for _, id := range jobIDs {
		if msg := m.byJob(companyID, id); msg != nil {
			msg.Status = types.MessageCancelled
			msg.UpdatedAt = at
			n++
		}
	}
	m.writes++
	return n, nil
}

func (m *mockMessages) MarkDeleted(_ context.Context, companyID, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.deleteErr[id]; err != nil {
		return false, err
	}
	msg := m.byJob(companyID, id)
	if msg == nil {
		return false, nil
	}
	msg.Status = types.MessageCancelled
	msg.Deleted = true
	msg.DeletedAt = &at
	m.writes++
	return true, nil
}

func (m *mockMessages) CountPendingBySchedule(_ context.Context, scheduleID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return 0, m.countErr
	}
	n := 0
	for _, msg := range m.messages {
		if msg.ScheduleID == scheduleID && msg.Status == types.MessagePending && !msg.Deleted {
			n++
		}
	}
	return n, nil
}

func (m *mockMessages) GetByJobID(_ context.Context, companyID, id string) (*types.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.byJob(companyID, id)
	if msg == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundMessage, "message not found", nil)
	}
	cp := *msg
	return &cp, nil
}

func (m *mockMessages) UpdateStatus(_ context.Context, id string, status types.MessageStatus, errorDetails *string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	for _, msg := range m.messages {
		if msg.ID == id {
			msg.Status = status
			msg.ErrorDetails = errorDetails
			msg.UpdatedAt = at
			m.writes++
			m.updates = append(m.updates, id)
			return nil
		}
	}
	return types.NewAppError(types.ErrCodeNotFoundMessage, "message not found", nil)
}

// ============================================================
// Mock: NotificationStore
// ============================================================

type mockNotifications struct {
	mu        sync.Mutex
	created   []*types.Notification
	existsErr error
	createErr error
	// hidden makes ExistsForWindow miss, as when a concurrent run has not
	// committed yet.
	hidden bool
}

func (m *mockNotifications) ExistsForWindow(_ context.Context, batchID string, window types.NotificationWindow) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	if m.hidden {
		return false, nil
	}
	return m.has(batchID, window), nil
}

func (m *mockNotifications) has(batchID string, window types.NotificationWindow) bool {
	for _, n := range m.created {
		if n.Metadata.BatchID == batchID && n.Metadata.NotificationWindow == window {
			return true
		}
	}
	return false
}

func (m *mockNotifications) Create(_ context.Context, n *types.Notification) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return false, m.createErr
	}
	if m.has(n.Metadata.BatchID, n.Metadata.NotificationWindow) {
		return false, nil
	}
	m.created = append(m.created, n)
	return true, nil
}

// ============================================================
// Mock: JobScheduler
// ============================================================

type mockScheduler struct {
	mu          sync.Mutex
	configured  bool
	status      *external.JobStatusReport
	statusErr   error
	cancelErr   error
	cancelCalls [][]string
}

func (m *mockScheduler) Configured() bool { return m.configured }

func (m *mockScheduler) CancelBatch(_ context.Context, ids []string) (*external.BulkCancelResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelCalls = append(m.cancelCalls, ids)
	if m.cancelErr != nil {
		return nil, m.cancelErr
	}
	return &external.BulkCancelResult{Accepted: len(ids), IDs: ids}, nil
}

func (m *mockScheduler) GetJobStatus(_ context.Context, _, _ string) (*external.JobStatusReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	if m.status == nil {
		return &external.JobStatusReport{}, nil
	}
	return m.status, nil
}

func pendingReport(n int) *external.JobStatusReport {
	r := &external.JobStatusReport{}
	if n > 0 {
		r.Summary.ByStatus = []external.StatusCount{{Status: "pending", Count: n}}
	}
	return r
}

// ============================================================
// Mock: Publisher and Metrics
// ============================================================

type mockPublisher struct {
	mu      sync.Mutex
	updates []types.PushUpdate
	err     error
}

func (m *mockPublisher) Publish(_ context.Context, u types.PushUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, u)
	return m.err
}

type mockMetrics struct {
	mu            sync.Mutex
	transitions   []string
	notifications map[types.NotificationWindow]int
	unavailable   []string
	chunkFailures int
}

func (m *mockMetrics) RecordTransition(_ context.Context, from, to types.ScheduleStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, string(from)+"->"+string(to))
}

func (m *mockMetrics) RecordNotificationCreated(_ context.Context, w types.NotificationWindow) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.notifications == nil {
		m.notifications = map[types.NotificationWindow]int{}
	}
	m.notifications[w]++
}

func (m *mockMetrics) RecordSchedulerUnavailable(_ context.Context, op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = append(m.unavailable, op)
}

func (m *mockMetrics) RecordCancelChunkFailure(_ context.Context, ids int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunkFailures += ids
}

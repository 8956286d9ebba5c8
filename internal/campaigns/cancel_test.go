package campaigns

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wacrm/internal/types"
)

var cancelNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

type cancelFixture struct {
	schedules *mockSchedules
	batches   *mockBatches
	messages  *mockMessages
	scheduler *mockScheduler
	metrics   *mockMetrics
	svc       *Canceller
}

func newCancelFixture(chunkSize int) *cancelFixture {
	f := &cancelFixture{
		schedules: newMockSchedules(schedule(types.ScheduleActive)),
		batches: &mockBatches{batches: []*types.BatchSchedule{
			{ID: "b1", CompanyID: "co_1", ScheduleID: "sch_1", Status: types.BatchPending},
			{ID: "b2", CompanyID: "co_1", ScheduleID: "sch_1", Status: types.BatchApproved},
		}},
		messages:  &mockMessages{},
		scheduler: &mockScheduler{configured: true},
		metrics:   &mockMetrics{},
	}
	f.svc = NewCanceller(CancellerConfig{
		Schedules: f.schedules,
		Batches:   f.batches,
		Messages:  f.messages,
		Scheduler: f.scheduler,
		Metrics:   f.metrics,
		ChunkSize: chunkSize,
		Clock:     func() time.Time { return cancelNow },
		Logger:    testLogger(),
	})
	return f
}

func seedMessages(f *cancelFixture, n int) []string {
	ids := make([]string, 0, n)
	for i := range n {
		id := fmt.Sprintf("job_%02d", i)
		ids = append(ids, id)
		f.messages.messages = append(f.messages.messages, &types.Message{
			ID: fmt.Sprintf("m_%02d", i), CompanyID: "co_1", ScheduleID: "sch_1",
			SchedulerJobID: jobID(id), Status: types.MessagePending,
		})
	}
	return ids
}

func TestCancelBatch_Success(t *testing.T) {
	f := newCancelFixture(0)
	ids := seedMessages(f, 3)

	res, err := f.svc.CancelBatch(context.Background(), "co_1", ids, "sch_1")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.False(t, res.LocalOnly)
	assert.Equal(t, 3, res.Accepted)
	assert.Equal(t, ids, res.SchedulerIDs)
	assert.EqualValues(t, 3, res.UpdatedMessagesCount)
	assert.Equal(t, 3, res.Successful)
	assert.Zero(t, res.Failed)
	assert.EqualValues(t, 1, res.CancelledBatches)

	for _, m := range f.messages.messages {
		assert.Equal(t, types.MessageCancelled, m.Status)
		assert.False(t, m.Deleted)
	}
	require.Len(t, f.schedules.writes, 1)
	assert.Equal(t, types.ScheduleCancelled, f.schedules.writes[0].Status)
	assert.Equal(t, cancelNow, *f.schedules.writes[0].CancelledAt)
	assert.Equal(t, types.BatchCancelled, f.batches.batches[0].Status)
	assert.Equal(t, types.BatchApproved, f.batches.batches[1].Status)
}

func TestCancelBatch_PartialChunkFailure(t *testing.T) {
	f := newCancelFixture(2)
	ids := seedMessages(f, 10)
	f.messages.cancelErr = func(part []string) error {
		if slices.Contains(part, "job_04") {
			return errDB
		}
		return nil
	}

	res, err := f.svc.CancelBatch(context.Background(), "co_1", ids, "sch_1")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 8, res.Successful)
	assert.Equal(t, 2, res.Failed)
	assert.EqualValues(t, 8, res.UpdatedMessagesCount)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "connection reset")
	assert.Equal(t, 2, f.metrics.chunkFailures)

	require.Len(t, f.schedules.writes, 1, "schedule is cancelled despite a failed chunk")
}

func TestCancelBatch_ExternalFailureMakesNoLocalWrites(t *testing.T) {
	f := newCancelFixture(0)
	ids := seedMessages(f, 3)
	f.scheduler.cancelErr = types.NewAppError(types.ErrCodeUpstreamScheduler, "bad gateway", nil)

	_, err := f.svc.CancelBatch(context.Background(), "co_1", ids, "sch_1")
	require.Error(t, err)
	assert.Equal(t, types.ErrCodeUpstreamScheduler, errorCode(err))

	assert.Zero(t, f.messages.writes)
	assert.Empty(t, f.schedules.writes)
	assert.Zero(t, f.batches.cancelledCalls)
}

func TestCancelBatch_LocalOnly(t *testing.T) {
	f := newCancelFixture(0)
	ids := seedMessages(f, 2)
	f.scheduler.configured = false
	f.messages.messages = append(f.messages.messages, &types.Message{
		ID: "m_other", CompanyID: "co_1", ScheduleID: "sch_other",
		SchedulerJobID: jobID("job_00_other"), Status: types.MessagePending,
	})

	res, err := f.svc.CancelBatch(context.Background(), "co_1", ids, "sch_1")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.True(t, res.LocalOnly)
	assert.EqualValues(t, 2, res.UpdatedMessagesCount)
	assert.Empty(t, f.scheduler.cancelCalls)

	for _, m := range f.messages.messages[:2] {
		assert.Equal(t, types.MessageCancelled, m.Status)
		assert.True(t, m.Deleted)
	}
	assert.Equal(t, types.MessagePending, f.messages.messages[2].Status)
	require.Len(t, f.schedules.writes, 1)
	assert.Equal(t, types.ScheduleCancelled, f.schedules.writes[0].Status)
	assert.Equal(t, []string{"cancel_batch"}, f.metrics.unavailable)
}

func TestCancelBatch_LocalOnly_MessageFailureKeepsScheduleOpen(t *testing.T) {
	f := newCancelFixture(0)
	ids := seedMessages(f, 2)
	f.scheduler.configured = false
	f.messages.scheduleCancelErr = types.NewAppError(types.ErrCodeInternalDB, "failed to cancel messages", nil)

	_, err := f.svc.CancelBatch(context.Background(), "co_1", ids, "sch_1")
	require.Error(t, err)

	assert.Empty(t, f.schedules.writes)
	assert.Equal(t, types.ScheduleActive, f.schedules.schedules["sch_1"].Status)
	assert.Zero(t, f.batches.cancelledCalls)
}

func TestCancelBatch_Idempotent(t *testing.T) {
	f := newCancelFixture(0)
	ids := seedMessages(f, 2)

	_, err := f.svc.CancelBatch(context.Background(), "co_1", ids, "sch_1")
	require.NoError(t, err)
	res, err := f.svc.CancelBatch(context.Background(), "co_1", ids, "sch_1")
	require.NoError(t, err)

	assert.True(t, res.Success)
	require.Len(t, f.schedules.writes, 2)
	assert.Equal(t, f.schedules.writes[0], f.schedules.writes[1])
}

func TestCancelBatch_NormalizesIDs(t *testing.T) {
	f := newCancelFixture(0)
	seedMessages(f, 2)

	_, err := f.svc.CancelBatch(context.Background(), "co_1", []string{"job_00", " job_00 ", "", "job_01"}, "sch_1")
	require.NoError(t, err)
	require.Len(t, f.scheduler.cancelCalls, 1)
	assert.Equal(t, []string{"job_00", "job_01"}, f.scheduler.cancelCalls[0])
}

func TestCancelBatch_Errors(t *testing.T) {
	tests := []struct {
		name       string
		companyID  string
		ids        []string
		scheduleID string
		wantCode   types.ErrorCode
	}{
		{"missing company", "", []string{"j1"}, "sch_1", types.ErrCodeAuthNoCompany},
		{"empty ids", "co_1", nil, "sch_1", types.ErrCodeValidationMissingField},
		{"blank ids", "co_1", []string{" ", ""}, "sch_1", types.ErrCodeValidationMissingField},
		{"missing schedule id", "co_1", []string{"j1"}, "", types.ErrCodeValidationMissingField},
		{"unknown schedule", "co_1", []string{"j1"}, "sch_x", types.ErrCodeNotFoundSchedule},
		{"other tenant", "co_2", []string{"j1"}, "sch_1", types.ErrCodePermissionOrgMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCancelFixture(0)
			_, err := f.svc.CancelBatch(context.Background(), tt.companyID, tt.ids, tt.scheduleID)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errorCode(err))
			assert.Equal(t, tt.wantCode.HTTPStatus(), err.(*types.AppError).HTTPStatus())
			assert.Empty(t, f.scheduler.cancelCalls)
		})
	}
}

func TestCancelBatch_BatchCancelFailureIsReported(t *testing.T) {
	f := newCancelFixture(0)
	ids := seedMessages(f, 1)
	f.batches.cancelErr = errDB

	res, err := f.svc.CancelBatch(context.Background(), "co_1", ids, "sch_1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "batches")
}

func TestDeleteScheduledMessages(t *testing.T) {
	f := newCancelFixture(0)
	seedMessages(f, 3)
	f.messages.deleteErr = map[string]error{"job_01": errDB}

	res, err := f.svc.DeleteScheduledMessages(context.Background(), "co_1", []string{"job_00", "job_01", "job_02", "job_99"})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 4, res.Accepted)
	assert.Equal(t, 2, res.DeletedCount)
	assert.Equal(t, 1, res.NotFound)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "job_01")

	m := f.messages.messages[0]
	assert.True(t, m.Deleted)
	assert.Equal(t, types.MessageCancelled, m.Status)
	require.NotNil(t, m.DeletedAt)
	assert.Equal(t, cancelNow, *m.DeletedAt)
	assert.False(t, f.messages.messages[1].Deleted)
}

func TestDeleteScheduledMessages_NotConfigured(t *testing.T) {
	f := newCancelFixture(0)
	f.scheduler.configured = false

	_, err := f.svc.DeleteScheduledMessages(context.Background(), "co_1", []string{"job_00"})
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamSchedulerNotConfig, appErr.Code)
	assert.Equal(t, 500, appErr.HTTPStatus())
	assert.Contains(t, appErr.Details, "required")
}

func TestDeleteScheduledMessages_ExternalFailure(t *testing.T) {
	f := newCancelFixture(0)
	seedMessages(f, 1)
	f.scheduler.cancelErr = types.NewAppError(types.ErrCodeUpstreamScheduler, "timeout", nil)

	_, err := f.svc.DeleteScheduledMessages(context.Background(), "co_1", []string{"job_00"})
	require.Error(t, err)
	assert.Zero(t, f.messages.writes)
}

func TestChunk(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, chunk(ids, 2))
	assert.Equal(t, [][]string{ids}, chunk(ids, 100))
	assert.Nil(t, chunk(nil, 100))
}

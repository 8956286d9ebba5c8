package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wacrm/internal/scheduler"
)

type fakeRunner struct {
	got    []scheduler.MaintenancePayload
	result string
	err    error
}

func (f *fakeRunner) Handle(_ context.Context, p scheduler.MaintenancePayload) (string, error) {
	f.got = append(f.got, p)
	return f.result, f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandler_ForwardsPayload(t *testing.T) {
	runner := &fakeRunner{result: "check_expiring_batches: 3 items"}
	h := newHandler(runner, discardLogger())

	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-1"})
	out, err := h(ctx, scheduler.MaintenancePayload{Task: scheduler.TaskCheckExpiringBatches})

	require.NoError(t, err)
	assert.Equal(t, "check_expiring_batches: 3 items", out)
	require.Len(t, runner.got, 1)
	assert.Equal(t, scheduler.TaskCheckExpiringBatches, runner.got[0].Task)
}

func TestHandler_PropagatesError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("lock store down")}
	h := newHandler(runner, discardLogger())

	out, err := h(context.Background(), scheduler.MaintenancePayload{Task: scheduler.TaskReconcileCampaigns})

	assert.EqualError(t, err, "lock store down")
	assert.Empty(t, out)
}

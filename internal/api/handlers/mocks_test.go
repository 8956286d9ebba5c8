package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"wacrm/internal/campaigns"
	"wacrm/internal/core"
	"wacrm/internal/types"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type mockCanceller struct {
	mu sync.Mutex

	cancelFn func(ctx context.Context, companyID string, jobIDs []string, scheduleID string) (*campaigns.CancelResult, error)
	deleteFn func(ctx context.Context, companyID string, jobIDs []string) (*campaigns.DeleteResult, error)

	cancelCalls []cancelCall
	deleteCalls [][]string
}

type cancelCall struct {
	companyID  string
	scheduleID string
	jobIDs     []string
}

func (m *mockCanceller) CancelBatch(ctx context.Context, companyID string, jobIDs []string, scheduleID string) (*campaigns.CancelResult, error) {
	m.mu.Lock()
	m.cancelCalls = append(m.cancelCalls, cancelCall{companyID: companyID, scheduleID: scheduleID, jobIDs: jobIDs})
	m.mu.Unlock()
	if m.cancelFn != nil {
		return m.cancelFn(ctx, companyID, jobIDs, scheduleID)
	}
	return &campaigns.CancelResult{Success: true, ScheduleID: scheduleID, Successful: len(jobIDs), Errors: []string{}}, nil
}

func (m *mockCanceller) DeleteScheduledMessages(ctx context.Context, companyID string, jobIDs []string) (*campaigns.DeleteResult, error) {
	m.mu.Lock()
	m.deleteCalls = append(m.deleteCalls, jobIDs)
	m.mu.Unlock()
	if m.deleteFn != nil {
		return m.deleteFn(ctx, companyID, jobIDs)
	}
	return &campaigns.DeleteResult{Success: true, DeletedCount: len(jobIDs), Errors: []string{}}, nil
}

type mockReconciler struct {
	statusFn func(ctx context.Context, companyID, scheduleID string, now time.Time) (*campaigns.StatusReport, error)
	syncFn   func(ctx context.Context, companyID, scheduleID string, now time.Time) (*campaigns.SyncResult, error)
}

func (m *mockReconciler) CheckCampaignStatus(ctx context.Context, companyID, scheduleID string, now time.Time) (*campaigns.StatusReport, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx, companyID, scheduleID, now)
	}
	return &campaigns.StatusReport{ScheduleID: scheduleID, Status: types.ScheduleActive}, nil
}

func (m *mockReconciler) SyncCampaignMessages(ctx context.Context, companyID, scheduleID string, now time.Time) (*campaigns.SyncResult, error) {
	if m.syncFn != nil {
		return m.syncFn(ctx, companyID, scheduleID, now)
	}
	return &campaigns.SyncResult{ScheduleID: scheduleID, Errors: []string{}}, nil
}

type mockApprovals struct {
	fn func(ctx context.Context, companyID string, now time.Time) (*campaigns.PendingApprovals, error)
}

func (m *mockApprovals) GetPendingApprovals(ctx context.Context, companyID string, now time.Time) (*campaigns.PendingApprovals, error) {
	if m.fn != nil {
		return m.fn(ctx, companyID, now)
	}
	return &campaigns.PendingApprovals{Batches: []campaigns.PendingApproval{}}, nil
}

type mockExpiry struct {
	calls int
	fn    func(ctx context.Context, now time.Time) (*campaigns.ExpiryReport, error)
}

func (m *mockExpiry) CheckExpiringBatches(ctx context.Context, now time.Time) (*campaigns.ExpiryReport, error) {
	m.calls++
	if m.fn != nil {
		return m.fn(ctx, now)
	}
	return &campaigns.ExpiryReport{NotificationsCreated: map[types.NotificationWindow]int{}}, nil
}

// =============================================================================
// Helpers
// =============================================================================

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var tenantActor = types.Actor{ID: "key_1", Type: types.ActorTypeAPIKey, CompanyID: "co_1"}

var systemActor = types.Actor{ID: "key_cron", Type: types.ActorTypeSystem, CompanyID: "co_ops", Source: "cron"}

// serve routes req through a chi router built by register, with actor (if
// non-nil) injected ahead of the routes.
func serve(t *testing.T, register func(chi.Router), actor *types.Actor, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if actor != nil {
				req = req.WithContext(types.WithActor(req.Context(), *actor))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/v1", register)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	env := struct {
		Data json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp core.APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error.Code
}

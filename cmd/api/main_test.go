package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wacrm/internal/app"
	"wacrm/internal/campaigns"
	"wacrm/internal/config"
	"wacrm/internal/notifications"
)

// testApp wires the services without a database. Routes that reach a store
// are not exercised here.
func testApp() *app.App {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &app.App{
		Config:     &config.Config{Environment: "local"},
		Logger:     logger,
		Publisher:  notifications.NoopPublisher{},
		Metrics:    notifications.NoopMetrics{},
		Reconciler: campaigns.NewReconciler(campaigns.ReconcilerConfig{Logger: logger}),
		Canceller:  campaigns.NewCanceller(campaigns.CancellerConfig{Logger: logger}),
		Expiry:     campaigns.NewExpiryNotifier(campaigns.ExpiryNotifierConfig{Logger: logger}),
		Approvals:  campaigns.NewApprovalQueue(campaigns.ApprovalQueueConfig{Logger: logger}),
	}
}

func TestBuildServer_RegistersCampaignRoutes(t *testing.T) {
	srv, err := buildServer(testApp())
	require.NoError(t, err)

	var routes []string
	err = chi.Walk(srv.Router(), func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, method+" "+route)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(routes)

	for _, want := range []string{
		"GET /health",
		"POST /v1/campaigns/{scheduleID}/cancel",
		"GET /v1/campaigns/{scheduleID}/status",
		"POST /v1/campaigns/{scheduleID}/sync",
		"POST /v1/messages/scheduled/delete",
		"GET /v1/batches/pending-approvals",
		"POST /v1/batches/check-expiring",
	} {
		assert.Contains(t, routes, want)
	}
}

func TestBuildServer_RejectsMissingToken(t *testing.T) {
	srv, err := buildServer(testApp())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/campaigns/sched-1/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "auth_token_missing", body.Error.Code)
}

func TestBuildServer_NilConfig(t *testing.T) {
	a := testApp()
	a.Config = nil

	_, err := buildServer(a)
	assert.Error(t, err)
}

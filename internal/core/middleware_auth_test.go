package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"wacrm/internal/types"
)

func authProtected(t *testing.T, auth Authenticator) (http.Handler, *types.Actor) {
	t.Helper()
	srv := &Server{Logger: testLogger(), Authenticator: auth}
	seen := &types.Actor{}
	h := srv.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor, ok := types.GetActor(r.Context()); ok {
			*seen = actor
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	return h, seen
}

func TestAuthMiddleware_InjectsActor(t *testing.T) {
	auth := tenantAuth()
	h, seen := authProtected(t, auth)

	req := httptest.NewRequest(http.MethodGet, "/v1/campaigns/s1/status", nil)
	req.Header.Set("Authorization", "bearer  wak_live_abc ")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if seen.CompanyID != "co_1" {
		t.Errorf("actor company = %q", seen.CompanyID)
	}
	if len(auth.Calls) != 1 || auth.Calls[0] != "wak_live_abc" {
		t.Errorf("token calls = %v", auth.Calls)
	}
}

func TestAuthMiddleware_Failures(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		err      error
		actor    *types.Actor
		wantCode types.ErrorCode
	}{
		{name: "no header", wantCode: types.ErrCodeAuthTokenMissing},
		{name: "wrong scheme", header: "Basic abc", wantCode: types.ErrCodeAuthTokenMissing},
		{name: "empty bearer", header: "Bearer   ", wantCode: types.ErrCodeAuthTokenMissing},
		{
			name:     "expired",
			header:   "Bearer t",
			err:      types.NewAppError(types.ErrCodeAuthTokenExpired, "expired", nil),
			wantCode: types.ErrCodeAuthTokenExpired,
		},
		{
			name:     "revoked maps to invalid",
			header:   "Bearer t",
			err:      types.NewAppError(types.ErrCodeAuthTokenRevoked, "revoked", nil),
			wantCode: types.ErrCodeAuthTokenInvalid,
		},
		{
			name:     "unexpected error",
			header:   "Bearer t",
			err:      errors.New("db down"),
			wantCode: types.ErrCodeAuthTokenInvalid,
		},
		{name: "nil actor", header: "Bearer t", wantCode: types.ErrCodeAuthTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := authProtected(t, &MockAuthenticator{Actor: tt.actor, Err: tt.err})
			req := httptest.NewRequest(http.MethodGet, "/v1/batches/pending-approvals", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			if got := decodeError(t, rec).Error.Code; got != string(tt.wantCode) {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestAuthMiddleware_NilAuthenticatorPassesThrough(t *testing.T) {
	h, _ := authProtected(t, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/anything", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRequireSystem(t *testing.T) {
	h := RequireSystem(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	run := func(ctx context.Context) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil).WithContext(ctx))
		return rec
	}

	t.Run("system actor allowed", func(t *testing.T) {
		ctx := types.WithActor(context.Background(), types.Actor{ID: "cron", Type: types.ActorTypeSystem})
		if rec := run(ctx); rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("tenant actor forbidden", func(t *testing.T) {
		ctx := types.WithActor(context.Background(), types.Actor{ID: "k", Type: types.ActorTypeAPIKey, CompanyID: "co_1"})
		rec := run(ctx)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
		if got := decodeError(t, rec).Error.Code; got != string(types.ErrCodePermissionSystemOnly) {
			t.Errorf("code = %q", got)
		}
	})

	t.Run("no actor", func(t *testing.T) {
		if rec := run(context.Background()); rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}

func TestExtractBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":    "abc",
		"BEARER abc":    "abc",
		"Bearer  abc  ": "abc",
		"Bearer":        "",
		"Token abc":     "",
	}
	for header, want := range tests {
		if got := extractBearerToken(header); got != want {
			t.Errorf("extractBearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

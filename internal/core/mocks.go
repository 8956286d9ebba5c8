package core

import (
	"context"
	"sync"
	"time"

	"wacrm/internal/types"
)

// MockAuthenticator implements Authenticator for tests.
//
//	mock := &MockAuthenticator{
//	    Actor: &types.Actor{ID: "key_1", Type: types.ActorTypeAPIKey, CompanyID: "co_1"},
//	}
//
// ResolveTokenFunc takes precedence over Err, which takes precedence over
// Actor.
type MockAuthenticator struct {
	Actor            *types.Actor
	Err              error
	ResolveTokenFunc func(ctx context.Context, token string) (*types.Actor, error)

	mu    sync.Mutex
	Calls []string
}

func (m *MockAuthenticator) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, token)
	m.mu.Unlock()

	if m.ResolveTokenFunc != nil {
		return m.ResolveTokenFunc(ctx, token)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Actor, nil
}

// CallCount returns the number of ResolveToken calls.
func (m *MockAuthenticator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockMetricsCollector records RecordRequest calls.
type MockMetricsCollector struct {
	mu       sync.Mutex
	Requests []RecordedRequest
}

// RecordedRequest is one captured RecordRequest call.
type RecordedRequest struct {
	Method   string
	Endpoint string
	Status   string
	Duration time.Duration
}

func (m *MockMetricsCollector) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, RecordedRequest{Method: method, Endpoint: endpoint, Status: status, Duration: duration})
}

// Recorded returns a copy of the captured calls.
func (m *MockMetricsCollector) Recorded() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedRequest, len(m.Requests))
	copy(out, m.Requests)
	return out
}

// MockPinger implements Pinger for health probe tests.
type MockPinger struct {
	Err   error
	Delay time.Duration
}

func (m MockPinger) Ping(ctx context.Context) error {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.Err
}

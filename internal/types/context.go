package types

import (
	"context"
)

// ActorType identifies the kind of authenticated entity making a request.
type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeAPIKey ActorType = "api_key"
	ActorTypeSystem ActorType = "system"
)

// Actor represents the authenticated entity performing an operation.
// CompanyID is the tenant boundary: every campaign read or write is scoped
// to it.
type Actor struct {
	ID        string
	Type      ActorType
	CompanyID string
	Source    string // Origin of the request (e.g., "dashboard", "cron").
}

// IsSystem reports whether the actor is an internal system caller (cron,
// operator tooling) rather than a tenant.
func (a Actor) IsSystem() bool {
	return a.Type == ActorTypeSystem
}

// Context Keys
type contextKey string

const (
	actorKey     contextKey = "actor"
	requestIDKey contextKey = "request_id"
)

// WithActor stores the Actor in the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActor retrieves the Actor from the context.
func GetActor(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}

// CompanyFromContext returns the tenant of the authenticated actor. It fails
// with auth_company_missing when there is no actor or the actor carries no
// company, which the API layer renders as 401.
func CompanyFromContext(ctx context.Context) (string, error) {
	actor, ok := GetActor(ctx)
	if !ok || actor.CompanyID == "" {
		return "", NewAppError(ErrCodeAuthNoCompany, "authenticated company is required", nil)
	}
	return actor.CompanyID, nil
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

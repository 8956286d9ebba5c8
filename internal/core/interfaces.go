package core

import (
	"context"

	"wacrm/internal/types"
)

// Authenticator decouples the HTTP layer from the credential store.
type Authenticator interface {
	// ResolveToken returns the Actor for a bearer token.
	//
	// Distinct error codes:
	//   - auth_token_invalid: malformed, unknown or revoked.
	//   - auth_token_expired: known and not revoked, but past expires_at.
	ResolveToken(ctx context.Context, token string) (*types.Actor, error)
}

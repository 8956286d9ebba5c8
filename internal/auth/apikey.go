// Package auth resolves bearer API keys to tenant actors.
//
// A key has the form "wak_<env>_<secret>". The first KeyPrefixLength
// characters are stored in clear as key_prefix to narrow the lookup; the
// whole key is verified against a bcrypt hash.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"wacrm/internal/types"
)

const (
	// KeyPrefixLength is the number of leading characters stored in clear.
	KeyPrefixLength = 16

	keyScheme = "wak_"

	// bcryptCost matches the cost used for every stored key.
	bcryptCost = 12

	secretBytes = 24
)

// KeyStore is the slice of db.APIKeyRepository the authenticator needs.
type KeyStore interface {
	ListActiveByPrefix(ctx context.Context, prefix string, now time.Time) ([]*types.APIKey, error)
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

// KeyHasher abstracts bcrypt for testability.
type KeyHasher interface {
	CompareHashAndPassword(hashed, plain string) error
	GenerateFromPassword(plain string) (string, error)
}

type bcryptHasher struct{}

func (bcryptHasher) CompareHashAndPassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

func (bcryptHasher) GenerateFromPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// BcryptHasher returns the production KeyHasher.
func BcryptHasher() KeyHasher { return bcryptHasher{} }

// APIKeyAuthenticatorConfig holds the authenticator dependencies. Hasher,
// Clock and Logger are optional.
type APIKeyAuthenticatorConfig struct {
	Keys   KeyStore
	Hasher KeyHasher
	Clock  func() time.Time
	Logger *slog.Logger
}

// APIKeyAuthenticator implements core.Authenticator.
type APIKeyAuthenticator struct {
	keys   KeyStore
	hasher KeyHasher
	clock  func() time.Time
	logger *slog.Logger
}

// NewAPIKeyAuthenticator creates an APIKeyAuthenticator.
func NewAPIKeyAuthenticator(cfg APIKeyAuthenticatorConfig) *APIKeyAuthenticator {
	a := &APIKeyAuthenticator{
		keys:   cfg.Keys,
		hasher: cfg.Hasher,
		clock:  cfg.Clock,
		logger: cfg.Logger,
	}
	if a.hasher == nil {
		a.hasher = bcryptHasher{}
	}
	if a.clock == nil {
		a.clock = time.Now
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// ResolveToken returns the Actor owning token. Malformed and unknown keys
// are auth_token_invalid. A matching key that lapsed after the lookup gets
// auth_token_expired or auth_token_revoked.
func (a *APIKeyAuthenticator) ResolveToken(ctx context.Context, token string) (*types.Actor, error) {
	prefix, ok := KeyPrefix(token)
	if !ok {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "malformed API key", nil)
	}

	now := a.clock()
	candidates, err := a.keys.ListActiveByPrefix(ctx, prefix, now)
	if err != nil {
		return nil, err
	}

	for _, key := range candidates {
		if err := a.hasher.CompareHashAndPassword(key.KeyHash, token); err != nil {
			continue
		}
		if !key.IsActive(now) {
			if key.RevokedAt != nil {
				return nil, types.NewAppError(types.ErrCodeAuthTokenRevoked, "API key has been revoked", nil)
			}
			return nil, types.NewAppError(types.ErrCodeAuthTokenExpired, "API key has expired", nil)
		}

		if err := a.keys.TouchLastUsed(ctx, key.ID, now); err != nil {
			a.logger.WarnContext(ctx, "failed to record API key use",
				"key_id", key.ID,
				"error", err,
			)
		}

		return actorFor(key), nil
	}

	return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid API key", nil)
}

func actorFor(key *types.APIKey) *types.Actor {
	actor := &types.Actor{
		ID:        key.ID,
		Type:      types.ActorTypeAPIKey,
		CompanyID: key.CompanyID,
		Source:    key.Source,
	}
	if key.IsSystem {
		actor.Type = types.ActorTypeSystem
	}
	return actor
}

// KeyPrefix returns the lookup prefix of token, or false when token is not a
// well-formed key.
func KeyPrefix(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if !strings.HasPrefix(token, keyScheme) || len(token) <= KeyPrefixLength {
		return "", false
	}
	return token[:KeyPrefixLength], true
}

// GeneratedKey is a freshly minted key. Plaintext is shown once and never
// stored.
type GeneratedKey struct {
	Plaintext string
	Prefix    string
	Hash      string
}

// GenerateKey mints a key for env (e.g. "live", "test") and hashes it.
func GenerateKey(hasher KeyHasher, env string) (*GeneratedKey, error) {
	if hasher == nil {
		hasher = bcryptHasher{}
	}
	if env == "" || strings.Contains(env, "_") {
		return nil, fmt.Errorf("invalid key environment %q", env)
	}

	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	plaintext := keyScheme + env + "_" + base64.RawURLEncoding.EncodeToString(buf)

	hash, err := hasher.GenerateFromPassword(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash key: %w", err)
	}

	prefix, _ := KeyPrefix(plaintext)
	return &GeneratedKey{Plaintext: plaintext, Prefix: prefix, Hash: hash}, nil
}

package db

import (
	"context"
	"time"

	"wacrm/internal/types"
)

// APIKeyRepository provides data access for the api_keys table. Secrets are
// stored as bcrypt hashes only.
type APIKeyRepository struct {
	db DBTX
}

// NewAPIKeyRepository creates an APIKeyRepository.
func NewAPIKeyRepository(db DBTX) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

const apiKeyColumns = `id, company_id, key_hash, key_prefix, name, COALESCE(source, ''),
	is_system, last_used_at, expires_at, revoked_at, created_at`

// ListActiveByPrefix returns the unrevoked, unexpired keys sharing prefix.
// Several keys may share a prefix; the caller verifies the hash of each.
func (r *APIKeyRepository) ListActiveByPrefix(ctx context.Context, prefix string, now time.Time) ([]*types.APIKey, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys
		 WHERE key_prefix = $1
		   AND revoked_at IS NULL
		   AND (expires_at IS NULL OR expires_at > $2)`,
		prefix, now,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query API keys", err)
	}
	defer rows.Close()

	var keys []*types.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan API key row", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating API key rows", err)
	}
	return keys, nil
}

// TouchLastUsed records that key id authenticated a request.
func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE api_keys SET last_used_at = $2 WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update API key last_used_at", err)
	}
	return nil
}

// Create inserts k. KeyHash must already be a bcrypt hash.
func (r *APIKeyRepository) Create(ctx context.Context, k *types.APIKey) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO api_keys
		 (id, company_id, key_hash, key_prefix, name, source, is_system, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)`,
		k.ID,
		k.CompanyID,
		k.KeyHash,
		k.KeyPrefix,
		k.Name,
		k.Source,
		k.IsSystem,
		k.ExpiresAt,
		k.CreatedAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create API key", err)
	}
	return nil
}

// Revoke marks key id revoked at. Revoking an already revoked key keeps the
// original timestamp and is not an error.
func (r *APIKeyRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE api_keys SET revoked_at = COALESCE(revoked_at, $2) WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to revoke API key", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAPIKey, "API key not found", nil)
	}
	return nil
}

func scanAPIKey(row rowScanner) (*types.APIKey, error) {
	var k types.APIKey
	if err := row.Scan(
		&k.ID,
		&k.CompanyID,
		&k.KeyHash,
		&k.KeyPrefix,
		&k.Name,
		&k.Source,
		&k.IsSystem,
		&k.LastUsedAt,
		&k.ExpiresAt,
		&k.RevokedAt,
		&k.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &k, nil
}

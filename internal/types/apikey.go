package types

import "time"

// APIKey is a tenant credential. Only the bcrypt hash of the secret is
// stored; KeyPrefix is the clear leading part used to find candidates.
type APIKey struct {
	ID         string     `json:"id"`
	CompanyID  string     `json:"company_id"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"key_prefix"`
	Name       string     `json:"name"`
	Source     string     `json:"source,omitempty"`
	IsSystem   bool       `json:"is_system"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IsActive reports whether the key is neither revoked nor expired at now.
func (k *APIKey) IsActive(now time.Time) bool {
	if k.RevokedAt != nil {
		return false
	}
	return k.ExpiresAt == nil || k.ExpiresAt.After(now)
}

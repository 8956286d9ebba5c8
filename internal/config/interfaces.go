package config

import "context"

// SecretProvider resolves secret references to plaintext values. SSMProvider
// serves deployed environments and EnvVarProvider serves local runs.
type SecretProvider interface {
	// GetParametersBatch resolves keys and returns key -> value for every key
	// it found.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}

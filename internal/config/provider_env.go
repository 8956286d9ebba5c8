package config

import (
	"context"
	"os"
)

// EnvVarProvider resolves secret keys as environment variable names. It lets
// local runs use the same *_SSM_PARAM indirection without AWS access.
type EnvVarProvider struct{}

// NewEnvVarProvider creates an EnvVarProvider.
func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{}
}

// GetParametersBatch looks up each key with os.LookupEnv. Keys that are not
// set are left out of the result.
func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := os.LookupEnv(key); ok {
			result[key] = val
		}
	}
	return result, nil
}

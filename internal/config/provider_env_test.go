package config

import (
	"context"
	"testing"
)

func TestEnvVarProviderResolvesSetKeys(t *testing.T) {
	t.Setenv("WACRM_TEST_SECRET", "s3cret")

	result, err := NewEnvVarProvider().GetParametersBatch(context.Background(), []string{
		"WACRM_TEST_SECRET",
		"WACRM_TEST_NOT_SET_ANYWHERE",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["WACRM_TEST_SECRET"] != "s3cret" {
		t.Errorf("WACRM_TEST_SECRET = %q, want s3cret", result["WACRM_TEST_SECRET"])
	}
	if _, ok := result["WACRM_TEST_NOT_SET_ANYWHERE"]; ok {
		t.Error("unset keys should be omitted")
	}
}

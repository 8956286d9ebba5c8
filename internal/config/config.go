// Package config loads the process configuration for the campaign services.
//
// Configuration is read once at startup and treated as immutable. Values
// resolve in priority order:
//
//	OS environment -> .env file -> AWS SSM Parameter Store
//
// A missing required value or a malformed one is reported as a *ConfigError
// so the binary can refuse to start.
package config

import (
	"time"

	"wacrm/internal/types"
)

// SecretString is the redacted secret type used for credentials in Config.
type SecretString = types.SecretString

// Config is the top-level configuration of every wacrm binary. Components
// receive only the sub-struct they need.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"wacrm-campaigns"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	Scheduler     SchedulerConfig
	AWS           AWSConfig
	Security      SecurityConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not read from the environment.
	Build BuildInfo
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
}

// DatabaseConfig holds the Postgres DSN and pool tuning.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// SchedulerConfig points at the external job scheduler. Both URL and APIKey
// are optional; when either is empty the campaign services run in local-only
// mode.
type SchedulerConfig struct {
	URL     string        `envconfig:"SCHEDULE_URL" validate:"omitempty,url"`
	APIKey  SecretString  `envconfig:"JOBS_API_KEY"`
	Timeout time.Duration `envconfig:"SCHEDULER_TIMEOUT" default:"15s"`
}

// Configured reports whether both the scheduler URL and key are present.
func (c SchedulerConfig) Configured() bool {
	return c.URL != "" && !c.APIKey.IsEmpty()
}

// AWSConfig holds AWS resource identifiers.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// PushQueueURL receives dashboard push updates. Empty disables publishing.
	PushQueueURL string `envconfig:"SQS_PUSH_UPDATES" validate:"omitempty,url"`

	// LocalStack support. Empty in prod.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// SecurityConfig holds CORS settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"WACRM/Campaigns"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates an environment value could not be converted to
	// its target type.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)

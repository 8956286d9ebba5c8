package app

import (
	"log/slog"
	"os"

	"wacrm/internal/config"
)

// NewLogger returns a JSON logger on stdout at level (debug, info, warn,
// error). Unknown levels fall back to info.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// SecretProvider returns the SSM provider used outside local development.
// APP_ENV=local skips SSM resolution inside config.LoadConfig.
func SecretProvider(region string) config.SecretProvider {
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	return config.NewSSMProvider(region)
}

package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Setup configures the global logger based on the environment.
// It returns the logger instance, but also sets it as the default global logger.
func Setup(env string) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: levelFromEnv(slog.LevelInfo),
	}

	if env == "production" {
		// JSON for machine parsing (Datadog, Splunk, etc.)
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		// Text for human readability in development
		opts.Level = levelFromEnv(slog.LevelDebug)
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With(slog.String("service", "auth"))
	slog.SetDefault(logger)

	return logger
}

// levelFromEnv lets LOG_LEVEL override the environment default.
func levelFromEnv(fallback slog.Level) slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}

// Package logging configures the process-wide structured logger.
package logging

import (
	"log/slog"
	"os"
)

// Init configures a JSON or text slog.Handler depending on the
// ORCH_JSON_LOG environment variable, sets it as the process default,
// and returns it for callers that want an explicit reference.
func Init(service string) *slog.Logger {
	level := levelFromEnv()
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if os.Getenv("ORCH_JSON_LOG") == "1" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)
	return logger
}

func levelFromEnv() slog.Level {
	switch os.Getenv("ORCH_LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

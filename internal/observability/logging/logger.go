// Package logging builds the slog loggers the three binaries share.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// levelFromEnv reads LOG_LEVEL. Anything unrecognized means info so a
// typo in a deployment manifest never silences the service.
func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
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

// NewLogger returns a JSON logger for the api and worker processes.
// Source locations are attached below info so debug runs are traceable.
func NewLogger() *slog.Logger {
	level := levelFromEnv()
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: level < slog.LevelInfo,
	}))
}

// NewTextLogger returns a text logger. The indexer CLI uses it because
// its output is read by a person, not a collector.
func NewTextLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelFromEnv(),
	}))
}

// Package config reads typed values from the environment with defaults,
// and validates durations. Misconfigured values fall back with a warning
// instead of failing, so a typo in one variable never takes the service
// down with it.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// GetEnvString returns the variable's value, or defaultValue when unset.
func GetEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt parses the variable as an integer. Unset or unparseable values
// fall back with a warning.
func GetEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		warnFallback(key, raw, err)
		return defaultValue
	}
	return value
}

// GetEnvFloat64 parses the variable as a float64. Used for the similarity
// threshold and tie band knobs.
func GetEnvFloat64(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		warnFallback(key, raw, err)
		return defaultValue
	}
	return value
}

// GetEnvBool parses the variable with strconv.ParseBool semantics
// ("1", "t", "true", "0", "f", "false", any casing).
func GetEnvBool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		warnFallback(key, raw, err)
		return defaultValue
	}
	return value
}

// GetEnvDuration parses the variable with time.ParseDuration ("30s",
// "1h30m").
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		warnFallback(key, raw, err)
		return defaultValue
	}
	return value
}

func warnFallback(key, raw string, err error) {
	slog.Warn("invalid environment value, using default",
		slog.String("key", key),
		slog.String("value", raw),
		slog.String("error", err.Error()))
}

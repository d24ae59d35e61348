package worker

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

// Bounds for the tunable fields. A scheduled run that needs more than 32
// workers or 10000 chart tracks should be split, not widened.
const (
	minIngestWorkers = 1
	maxIngestWorkers = 32
	minIngestCount   = 1
	maxIngestCount   = 10000
	minIngestTimeout = time.Minute
	maxIngestTimeout = 12 * time.Hour
)

// WorkerConfig drives the scheduled re-ingestion worker. Every field has a
// safe default: an invalid environment value falls back to it with a logged
// warning and a fallback metric, so a bad deploy degrades to the default
// schedule instead of taking the worker down.
type WorkerConfig struct {
	// RefreshSchedule is the cron expression for scheduled re-ingestion
	// in standard five-field form.
	RefreshSchedule string

	// Timezone is the IANA timezone the schedule is evaluated in.
	Timezone string

	// IngestWorkers is the pipeline pool size for one run.
	IngestWorkers int

	// IngestCount is how many chart tracks each run targets.
	IngestCount int

	// IngestTimeout bounds a single scheduled run.
	IngestTimeout time.Duration
}

// DefaultConfig returns the production defaults: a daily refresh at 5:30
// JST with a four-worker pool and a two-hour cap.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		RefreshSchedule: "30 5 * * *",
		Timezone:        "Asia/Tokyo",
		IngestWorkers:   4,
		IngestCount:     1000,
		IngestTimeout:   2 * time.Hour,
	}
}

// Validate reports every invalid field at once.
func (c *WorkerConfig) Validate() error {
	var errs []error

	if _, err := cron.ParseStandard(c.RefreshSchedule); err != nil {
		errs = append(errs, fmt.Errorf("refresh schedule %q: %w", c.RefreshSchedule, err))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if err := intInRange(c.IngestWorkers, minIngestWorkers, maxIngestWorkers); err != nil {
		errs = append(errs, fmt.Errorf("ingest workers: %w", err))
	}
	if err := intInRange(c.IngestCount, minIngestCount, maxIngestCount); err != nil {
		errs = append(errs, fmt.Errorf("ingest count: %w", err))
	}
	if c.IngestTimeout < minIngestTimeout || c.IngestTimeout > maxIngestTimeout {
		errs = append(errs, fmt.Errorf("ingest timeout: %v outside [%v, %v]",
			c.IngestTimeout, minIngestTimeout, maxIngestTimeout))
	}

	return errors.Join(errs...)
}

// LoadConfigFromEnv builds the worker configuration from environment
// variables, failing open per field: a missing variable keeps the default
// silently, an invalid one keeps the default with a warning and a recorded
// fallback. The returned configuration is always valid.
//
// Variables: REFRESH_SCHEDULE, WORKER_TIMEZONE, INGEST_WORKERS,
// INGEST_COUNT, INGEST_TIMEOUT.
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) *WorkerConfig {
	cfg := DefaultConfig()
	degraded := false

	loadEnv(&cfg.RefreshSchedule, "REFRESH_SCHEDULE", "refresh_schedule",
		parseSchedule, logger, metrics, &degraded)
	loadEnv(&cfg.Timezone, "WORKER_TIMEZONE", "timezone",
		parseTimezone, logger, metrics, &degraded)
	loadEnv(&cfg.IngestWorkers, "INGEST_WORKERS", "ingest_workers",
		parseIntInRange(minIngestWorkers, maxIngestWorkers), logger, metrics, &degraded)
	loadEnv(&cfg.IngestCount, "INGEST_COUNT", "ingest_count",
		parseIntInRange(minIngestCount, maxIngestCount), logger, metrics, &degraded)
	loadEnv(&cfg.IngestTimeout, "INGEST_TIMEOUT", "ingest_timeout",
		parseTimeout, logger, metrics, &degraded)

	metrics.SetConfigDegraded(degraded)
	metrics.RecordConfigLoad()

	return &cfg
}

// loadEnv overwrites *dst with the parsed value of the named variable.
// Parse failures keep the default and mark the configuration degraded.
func loadEnv[T any](dst *T, env, field string, parse func(string) (T, error),
	logger *slog.Logger, metrics *WorkerMetrics, degraded *bool) {
	raw, ok := os.LookupEnv(env)
	if !ok || raw == "" {
		return
	}

	v, err := parse(raw)
	if err != nil {
		*degraded = true
		metrics.RecordConfigFallback(field)
		logger.Warn("invalid worker configuration, using default",
			slog.String("env", env),
			slog.String("field", field),
			slog.Any("error", err))
		return
	}
	*dst = v
}

func parseSchedule(raw string) (string, error) {
	if _, err := cron.ParseStandard(raw); err != nil {
		return "", err
	}
	return raw, nil
}

func parseTimezone(raw string) (string, error) {
	if _, err := time.LoadLocation(raw); err != nil {
		return "", err
	}
	return raw, nil
}

func parseIntInRange(min, max int) func(string) (int, error) {
	return func(raw string) (int, error) {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", raw)
		}
		if err := intInRange(n, min, max); err != nil {
			return 0, err
		}
		return n, nil
	}
}

func parseTimeout(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < minIngestTimeout || d > maxIngestTimeout {
		return 0, fmt.Errorf("%v outside [%v, %v]", d, minIngestTimeout, maxIngestTimeout)
	}
	return d, nil
}

func intInRange(n, min, max int) error {
	if n < min || n > max {
		return fmt.Errorf("%d outside [%d, %d]", n, min, max)
	}
	return nil
}

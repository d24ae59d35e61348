// Package retry wraps transient-failure-prone calls with exponential
// backoff. Every outbound dependency of the service (catalog API, preview
// CDN, transcription, embedding, checkpoint store) has a profile here
// tuned to its cost and latency.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"syscall"
	"time"

	"tunescout/internal/domain/entity"
)

// Config shapes the backoff schedule for one dependency.
type Config struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64

	// OnRetry, when set, is called before each wait with the attempt number
	// and the error that triggered the retry. Used for retry accounting.
	OnRetry func(attempt int, err error)
}

// DefaultConfig is the profile for dependencies without a dedicated one.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// CatalogAPIConfig retries catalog metadata and chart requests hard. The
// calls are cheap and the catalog rate-limits in bursts.
func CatalogAPIConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 5
	return cfg
}

// PreviewDownloadConfig retries preview clip downloads from the catalog
// CDN. Shorter delays: the CDN recovers fast or not at all.
func PreviewDownloadConfig() Config {
	return Config{
		MaxAttempts:    4,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       15 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// EmbedAPIConfig retries embedding inference conservatively. Each call is
// billed.
func EmbedAPIConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   2 * time.Second,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// TranscribeAPIConfig retries speech-to-text calls, same shape as
// embedding for the same billing reason.
func TranscribeAPIConfig() Config {
	return EmbedAPIConfig()
}

// CheckpointDBConfig retries checkpoint store operations with millisecond
// delays. The store is local Postgres, either the connection blips or the
// error is permanent.
func CheckpointDBConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       1 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// WithBackoff runs fn until it succeeds, fails permanently, or exhausts
// the attempt budget. Exhaustion is reported as entity.ErrTransientExhausted
// wrapping the last error, so the ingest pipeline can checkpoint the track
// as retryable rather than permanently failed.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				slog.Info("operation succeeded after retry", slog.Int("attempt", attempt))
			}
			return nil
		}

		if !IsRetryable(lastErr) {
			slog.Warn("non-retryable error, aborting",
				slog.Int("attempt", attempt),
				slog.Any("error", lastErr))
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr)
		}
		slog.Warn("operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.MaxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", lastErr))

		select {
		case <-time.After(jittered(delay, cfg.JitterFraction)):
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}

		delay = min(time.Duration(float64(delay)*cfg.Multiplier), cfg.MaxDelay)
	}

	return fmt.Errorf("%w: max retry attempts (%d) exceeded: %w", entity.ErrTransientExhausted, cfg.MaxAttempts, lastErr)
}

// IsRetryable reports whether err looks transient. Context cancellation
// is final, catalog back-pressure, network timeouts, connection-level
// syscall errors and the retryable HTTP statuses are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, entity.ErrRateLimited) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	for _, errno := range []syscall.Errno{syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT, syscall.ENETUNREACH} {
		if errors.Is(err, errno) {
			return true
		}
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode >= 500 && httpErr.StatusCode < 600:
			return true
		case httpErr.StatusCode == http.StatusTooManyRequests:
			return true
		case httpErr.StatusCode == http.StatusRequestTimeout:
			return true
		}
	}
	return false
}

// HTTPError carries a status code through the retry decision.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// jittered spreads a delay by up to fraction so parallel ingest workers
// that failed together do not retry together.
func jittered(delay time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return delay
	}
	fraction = min(fraction, 1.0)
	// #nosec G404 -- backoff jitter does not need crypto randomness
	return delay + time.Duration(rand.Float64()*float64(delay)*fraction)
}

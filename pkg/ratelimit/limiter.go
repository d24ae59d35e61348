// Package ratelimit provides client-side rate limiting for outbound API calls.
//
// The limiter enforces a hard budget of N requests per rolling window across
// all goroutines sharing it. Callers block in Wait until a slot is free, which
// keeps bursty concurrent pipelines within a third-party API's quota.
package ratelimit

import (
	"context"
	"time"
)

// Limiter grants request slots under a shared rate budget.
//
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Wait blocks until a request slot is available or the context is done.
	// It returns the context error if the caller gave up while waiting.
	Wait(ctx context.Context) error
}

// Metrics defines the interface for recording rate limiter observations.
//
// Implementations can use Prometheus, StatsD, or custom metrics systems.
type Metrics interface {
	// RecordWait records how long a caller blocked before acquiring a slot.
	RecordWait(duration time.Duration)

	// RecordAcquired records that a request slot was granted.
	RecordAcquired()
}

// Clock provides an abstraction for time operations to enable testing.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// SystemClock is a Clock implementation that uses the system time.
type SystemClock struct{}

// Now returns the current system time.
func (c *SystemClock) Now() time.Time {
	return time.Now()
}

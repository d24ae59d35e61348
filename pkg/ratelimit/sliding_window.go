package ratelimit

import (
	"context"
	"sync"
	"time"
)

// SlidingWindow is a blocking rate limiter with a strict sliding window.
//
// It remembers the grant time of every slot handed out during the last
// window. A new slot is granted only when fewer than limit grants fall
// inside the rolling window ending now, so no window of the configured
// length ever contains more than limit grants. There is no burst
// allowance beyond the window budget.
type SlidingWindow struct {
	mu      sync.Mutex
	grants  []time.Time
	limit   int
	window  time.Duration
	clock   Clock
	metrics Metrics
}

// NewSlidingWindow creates a limiter allowing at most limit grants per window.
//
// A nil metrics collector disables instrumentation.
func NewSlidingWindow(limit int, window time.Duration, opts ...Option) *SlidingWindow {
	sw := &SlidingWindow{
		grants:  make([]time.Time, 0, limit),
		limit:   limit,
		window:  window,
		clock:   &SystemClock{},
		metrics: NewNoOpMetrics(),
	}
	for _, opt := range opts {
		opt(sw)
	}
	return sw
}

// Option configures a SlidingWindow.
type Option func(*SlidingWindow)

// WithClock replaces the system clock, mainly for tests.
func WithClock(clock Clock) Option {
	return func(sw *SlidingWindow) {
		sw.clock = clock
	}
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m Metrics) Option {
	return func(sw *SlidingWindow) {
		sw.metrics = m
	}
}

// Wait blocks until a request slot is available or the context is done.
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	start := sw.clock.Now()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		retryIn, ok := sw.tryAcquire()
		if ok {
			sw.metrics.RecordWait(sw.clock.Now().Sub(start))
			sw.metrics.RecordAcquired()
			return nil
		}

		timer := time.NewTimer(retryIn)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Allow reports whether a slot is immediately available and claims it if so.
func (sw *SlidingWindow) Allow() bool {
	_, ok := sw.tryAcquire()
	return ok
}

// tryAcquire claims a slot if the rolling window has room. When the window is
// full it returns how long to wait until the oldest grant expires.
func (sw *SlidingWindow) tryAcquire() (retryIn time.Duration, ok bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.clock.Now()
	cutoff := now.Add(-sw.window)

	// Drop grants that slid out of the window. Grants are appended in
	// order, so the slice stays sorted.
	expired := 0
	for expired < len(sw.grants) && !sw.grants[expired].After(cutoff) {
		expired++
	}
	if expired > 0 {
		sw.grants = append(sw.grants[:0], sw.grants[expired:]...)
	}

	if len(sw.grants) < sw.limit {
		sw.grants = append(sw.grants, now)
		return 0, true
	}

	retryIn = sw.grants[0].Add(sw.window).Sub(now)
	if retryIn <= 0 {
		retryIn = time.Millisecond
	}
	return retryIn, false
}

// InFlight returns the number of grants currently inside the window.
func (sw *SlidingWindow) InFlight() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	cutoff := sw.clock.Now().Add(-sw.window)
	n := 0
	for _, g := range sw.grants {
		if g.After(cutoff) {
			n++
		}
	}
	return n
}

package slo

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tunescout/internal/handler/http/responsewriter"
)

// Published gauges. Targets: 99.9% availability, 0.1% error rate, 200ms
// p95 and 500ms p99 over each window.
var (
	SLOAvailability = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slo_availability_ratio",
		Help: "Share of requests in the last window that avoided a 5xx, target 0.999",
	})

	SLOErrorRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slo_error_rate_ratio",
		Help: "Share of requests in the last window that returned a 5xx, target 0.001",
	})

	SLOLatencyP95 = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slo_latency_p95_seconds",
		Help: "p95 request latency over the last window, target 0.200",
	})

	SLOLatencyP99 = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "slo_latency_p99_seconds",
		Help: "p99 request latency over the last window, target 0.500",
	})
)

// maxLatencySamples bounds the per-window latency buffer. At the default
// one-minute interval this covers well past the request rates this service
// sees; overflow drops the oldest samples.
const maxLatencySamples = 8192

// Tracker accumulates request outcomes over a window and periodically
// publishes the SLO gauges. One instance is created at startup and its
// Middleware is placed in the HTTP chain.
type Tracker struct {
	mu      sync.Mutex
	total   int64
	errors  int64
	latency []float64
}

// NewTracker creates an SLO tracker with an empty window.
func NewTracker() *Tracker {
	return &Tracker{latency: make([]float64, 0, 1024)}
}

// Observe records one completed request.
func (t *Tracker) Observe(statusCode int, duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total++
	if statusCode >= 500 {
		t.errors++
	}
	if len(t.latency) >= maxLatencySamples {
		t.latency = t.latency[1:]
	}
	t.latency = append(t.latency, duration.Seconds())
}

// Middleware records every request passing through it.
func (t *Tracker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := responsewriter.Wrap(w)
		next.ServeHTTP(rw, r)
		t.Observe(rw.StatusCode(), time.Since(start))
	})
}

// Run publishes the SLO gauges at the given interval until the context is
// cancelled. Each publish resets the window.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.publish()
		}
	}
}

// publish computes the window aggregates, updates the gauges, and resets
// the window. An empty window leaves the gauges untouched.
func (t *Tracker) publish() {
	t.mu.Lock()
	total, errors := t.total, t.errors
	samples := t.latency
	t.total, t.errors = 0, 0
	t.latency = make([]float64, 0, 1024)
	t.mu.Unlock()

	if total == 0 {
		return
	}

	SLOAvailability.Set(float64(total-errors) / float64(total))
	SLOErrorRate.Set(float64(errors) / float64(total))

	sort.Float64s(samples)
	SLOLatencyP95.Set(quantile(samples, 0.95))
	SLOLatencyP99.Set(quantile(samples, 0.99))
}

// quantile returns the q-quantile of sorted samples using nearest-rank.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

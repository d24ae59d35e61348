package ratelimit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NoOpMetrics implements the Metrics interface with no-op implementations.
//
// This implementation is useful for:
// - Testing environments where metrics are not needed
// - Disabling metrics collection (e.g., development mode)
// - Benchmarking limiter performance without metrics overhead
type NoOpMetrics struct{}

// NewNoOpMetrics creates a new NoOpMetrics instance.
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

// RecordWait is a no-op implementation.
func (m *NoOpMetrics) RecordWait(duration time.Duration) {
	// No-op
}

// RecordAcquired is a no-op implementation.
func (m *NoOpMetrics) RecordAcquired() {
	// No-op
}

// PrometheusMetrics implements the Metrics interface using Prometheus.
//
// All metrics use a custom registry for better testability and isolation.
// The registry can be passed to promhttp.HandlerFor() to expose metrics.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// waitDuration tracks how long callers blocked before acquiring a slot.
	// Long waits mean the budget is the bottleneck of the pipeline.
	waitDuration prometheus.Histogram

	// acquiredTotal counts granted request slots.
	acquiredTotal prometheus.Counter
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance with a custom
// registry. The name labels the limiter (e.g., "catalog").
func NewPrometheusMetrics(name string) *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	waitDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:        "outbound_rate_limit_wait_duration_seconds",
			Help:        "Time callers spent waiting for an outbound request slot",
			ConstLabels: prometheus.Labels{"limiter": name},
			Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	acquiredTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "outbound_rate_limit_acquired_total",
			Help:        "Total outbound request slots granted",
			ConstLabels: prometheus.Labels{"limiter": name},
		},
	)

	registry.MustRegister(waitDuration, acquiredTotal)

	return &PrometheusMetrics{
		registry:      registry,
		waitDuration:  waitDuration,
		acquiredTotal: acquiredTotal,
	}
}

// Registry returns the Prometheus registry containing all limiter metrics.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordWait records how long a caller blocked before acquiring a slot.
func (m *PrometheusMetrics) RecordWait(duration time.Duration) {
	m.waitDuration.Observe(duration.Seconds())
}

// RecordAcquired records that a request slot was granted.
func (m *PrometheusMetrics) RecordAcquired() {
	m.acquiredTotal.Inc()
}

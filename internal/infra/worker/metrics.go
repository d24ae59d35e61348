package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics exposes the worker's Prometheus metrics: scheduled run
// outcomes plus the configuration fallback counters LoadConfigFromEnv
// feeds. Alert on worker_config_degraded and on a stale
// worker_cron_job_last_success_timestamp.
type WorkerMetrics struct {
	// CronJobRunsTotal counts scheduled runs by status
	// (started, success, failure).
	CronJobRunsTotal *prometheus.CounterVec

	// CronJobDurationSeconds observes run durations. Runs are long; the
	// top bucket is an hour.
	CronJobDurationSeconds prometheus.Histogram

	// CronJobTracksIndexedTotal accumulates newly indexed tracks across
	// all runs.
	CronJobTracksIndexedTotal prometheus.Counter

	// CronJobLastSuccessTimestamp is the Unix time of the last successful
	// run.
	CronJobLastSuccessTimestamp prometheus.Gauge

	// ConfigFallbacksTotal counts per-field environment fallbacks.
	ConfigFallbacksTotal *prometheus.CounterVec

	// ConfigDegraded is 1 while any field runs on its fallback default.
	ConfigDegraded prometheus.Gauge

	// ConfigLoadTimestamp is the Unix time of the last configuration load.
	ConfigLoadTimestamp prometheus.Gauge
}

// NewWorkerMetrics creates and registers the worker metrics on reg.
// Tests pass their own registry so parallel instances don't collide.
func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	factory := promauto.With(reg)

	return &WorkerMetrics{
		CronJobRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_cron_job_runs_total",
			Help: "Scheduled ingestion runs by status",
		}, []string{"status"}),

		CronJobDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_cron_job_duration_seconds",
			Help:    "Duration of scheduled ingestion runs in seconds",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800, 3600},
		}),

		CronJobTracksIndexedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "worker_cron_job_tracks_indexed_total",
			Help: "Tracks indexed across all scheduled runs",
		}),

		CronJobLastSuccessTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "worker_cron_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful scheduled run",
		}),

		ConfigFallbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_config_fallbacks_total",
			Help: "Environment values rejected in favor of the default, by field",
		}, []string{"field"}),

		ConfigDegraded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "worker_config_degraded",
			Help: "1 while any configuration field runs on its fallback default",
		}),

		ConfigLoadTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "worker_config_load_timestamp",
			Help: "Unix timestamp of the last configuration load",
		}),
	}
}

// RecordJobRun counts one scheduled run with the given status.
func (m *WorkerMetrics) RecordJobRun(status string) {
	m.CronJobRunsTotal.WithLabelValues(status).Inc()
}

// RecordJobDuration observes one run's duration in seconds.
func (m *WorkerMetrics) RecordJobDuration(seconds float64) {
	m.CronJobDurationSeconds.Observe(seconds)
}

// RecordTracksIndexed adds a run's newly indexed track count.
func (m *WorkerMetrics) RecordTracksIndexed(count int) {
	m.CronJobTracksIndexedTotal.Add(float64(count))
}

// RecordLastSuccess stamps the last successful run at now.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.CronJobLastSuccessTimestamp.SetToCurrentTime()
}

// RecordConfigFallback counts one rejected environment value.
func (m *WorkerMetrics) RecordConfigFallback(field string) {
	m.ConfigFallbacksTotal.WithLabelValues(field).Inc()
}

// SetConfigDegraded flags whether any field is running on its default.
func (m *WorkerMetrics) SetConfigDegraded(degraded bool) {
	if degraded {
		m.ConfigDegraded.Set(1)
		return
	}
	m.ConfigDegraded.Set(0)
}

// RecordConfigLoad stamps the configuration load at now.
func (m *WorkerMetrics) RecordConfigLoad() {
	m.ConfigLoadTimestamp.SetToCurrentTime()
}

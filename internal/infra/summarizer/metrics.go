package summarizer

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SummaryMetricsRecorder is what the blurb writers report to. The indirection
// keeps Prometheus out of unit tests: inject a capturing fake instead.
type SummaryMetricsRecorder interface {
	// RecordLength observes one blurb's length in characters.
	RecordLength(length int)

	// RecordLimitExceeded counts a blurb that came back over the limit.
	RecordLimitExceeded()

	// RecordCompliance tracks whether the latest blurb fit the limit.
	RecordCompliance(withinLimit bool)

	// RecordDuration observes one generation round trip.
	RecordDuration(duration time.Duration)
}

// PrometheusSummaryMetrics records to the default Prometheus registry.
type PrometheusSummaryMetrics struct {
	length     prometheus.Histogram
	exceeded   prometheus.Counter
	compliance prometheus.Gauge
	duration   prometheus.Histogram
}

var (
	summaryMetrics     *PrometheusSummaryMetrics
	summaryMetricsOnce sync.Once
)

// NewPrometheusSummaryMetrics returns the process-wide recorder. A singleton
// because every Claude client shares the same collectors.
func NewPrometheusSummaryMetrics() *PrometheusSummaryMetrics {
	summaryMetricsOnce.Do(func() {
		summaryMetrics = &PrometheusSummaryMetrics{
			length: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "track_blurb_length_characters",
				Help:    "Distribution of blurb lengths in characters (Unicode runes)",
				Buckets: []float64{100, 300, 500, 700, 900, 1100, 1500, 2000},
			}),
			exceeded: promauto.NewCounter(prometheus.CounterOpts{
				Name: "track_blurb_limit_exceeded_total",
				Help: "Blurbs that came back over the configured character limit",
			}),
			compliance: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "track_blurb_limit_compliance_ratio",
				Help: "Whether the latest blurb fit the character limit (target: >=0.95 over time)",
			}),
			duration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "track_blurb_generation_duration_seconds",
				Help:    "Time taken to generate a blurb via the AI API",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			}),
		}
	})
	return summaryMetrics
}

func (p *PrometheusSummaryMetrics) RecordLength(length int) {
	p.length.Observe(float64(length))
}

func (p *PrometheusSummaryMetrics) RecordLimitExceeded() {
	p.exceeded.Inc()
}

func (p *PrometheusSummaryMetrics) RecordCompliance(withinLimit bool) {
	if withinLimit {
		p.compliance.Set(1.0)
	} else {
		p.compliance.Set(0.0)
	}
}

func (p *PrometheusSummaryMetrics) RecordDuration(duration time.Duration) {
	p.duration.Observe(duration.Seconds())
}

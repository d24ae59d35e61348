// Package metrics declares the application's Prometheus collectors.
// Everything registers against the default registry and is served by
// the /metrics endpoint of the API process.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP surface.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Request bodies are dominated by clip uploads, so the buckets
	// stretch from 100 bytes to the megabyte range.
	HTTPRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)
)

// Ingestion and identification.
var (
	// IndexedTracksTotal is the size of the in-memory vector index.
	IndexedTracksTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexed_tracks_total",
			Help: "Number of tracks currently stored in the vector index",
		},
	)

	// outcome: succeeded, skipped, failed
	TracksIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracks_ingested_total",
			Help: "Total number of tracks processed by the ingestion pipeline",
		},
		[]string{"outcome"},
	)

	IngestRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_retries_total",
			Help: "Total number of transient retries during ingestion",
		},
	)

	// endpoint: search, track, chart
	CatalogRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_requests_total",
			Help: "Total number of catalog API requests",
		},
		[]string{"endpoint", "status"},
	)

	CatalogRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_request_duration_seconds",
			Help:    "Catalog API request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"endpoint"},
	)

	CatalogRateLimitWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_ratelimit_wait_duration_seconds",
			Help:    "Time spent waiting for a catalog rate limit slot",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)

	PreviewDownloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "preview_download_duration_seconds",
			Help:    "Time taken to download a preview clip",
			Buckets: []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8},
		},
	)

	// Preview clips top out around 10MB.
	PreviewDownloadSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "preview_download_size_bytes",
			Help: "Downloaded preview clip size in bytes",
			Buckets: []float64{
				25600, 51200, 102400, 204800, 409600, 819200,
				1638400, 3276800, 6553600, 10485760,
			},
		},
	)

	EmbedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embed_requests_total",
			Help: "Total number of embedding inference requests",
		},
		[]string{"status"},
	)

	EmbedRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "embed_request_duration_seconds",
			Help:    "Time taken to compute one clip embedding",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	KNNQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "knn_query_duration_seconds",
			Help:    "Vector index k-nearest-neighbour query duration",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		},
	)

	// status: success, low_confidence, failure
	IdentifyRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "identify_requests_total",
			Help: "Total number of voice identification requests",
		},
		[]string{"status"},
	)

	TranscriptionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transcription_duration_seconds",
			Help:    "Time taken to transcribe a voice sample",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	// operation: save, load
	SnapshotDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "index_snapshot_duration_seconds",
			Help:    "Vector index snapshot save/load duration",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"operation"},
	)
)

// Checkpoint store.
var (
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Checkpoint store query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active checkpoint store connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle checkpoint store connections",
		},
	)
)

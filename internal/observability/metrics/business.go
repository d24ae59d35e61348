package metrics

import (
	"time"
)

// RecordTrackIngested records the outcome of one ingestion item.
// Outcome should be "succeeded", "skipped", or "failed".
func RecordTrackIngested(outcome string) {
	TracksIngestedTotal.WithLabelValues(outcome).Inc()
}

// RecordIngestRetry records one transient retry during ingestion.
func RecordIngestRetry() {
	IngestRetriesTotal.Inc()
}

// RecordCatalogRequest records a catalog API request with its result.
// Endpoint should describe the call (e.g., "search", "track", "chart").
func RecordCatalogRequest(endpoint, status string, duration time.Duration) {
	CatalogRequestsTotal.WithLabelValues(endpoint, status).Inc()
	CatalogRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordCatalogRateLimitWait records time spent waiting for a catalog
// rate limit slot.
func RecordCatalogRateLimitWait(duration time.Duration) {
	CatalogRateLimitWaitDuration.Observe(duration.Seconds())
}

// RecordPreviewDownload records a completed preview clip download,
// with size given in bytes.
func RecordPreviewDownload(duration time.Duration, size int) {
	PreviewDownloadDuration.Observe(duration.Seconds())
	PreviewDownloadSize.Observe(float64(size))
}

// RecordEmbedRequest records the result of an embedding inference call.
// Status should be either "success" or "failure".
func RecordEmbedRequest(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	EmbedRequestsTotal.WithLabelValues(status).Inc()
	EmbedRequestDuration.Observe(duration.Seconds())
}

// RecordKNNQuery records the duration of one exact nearest-neighbour scan.
func RecordKNNQuery(duration time.Duration) {
	KNNQueryDuration.Observe(duration.Seconds())
}

// RecordIdentifyRequest records the result of a voice identification request.
// Status should be "success", "low_confidence", or "failure".
func RecordIdentifyRequest(status string) {
	IdentifyRequestsTotal.WithLabelValues(status).Inc()
}

// RecordTranscription records the time taken to transcribe a voice sample.
func RecordTranscription(duration time.Duration) {
	TranscriptionDuration.Observe(duration.Seconds())
}

// RecordSnapshot records the duration of an index snapshot operation.
// Operation should be either "save" or "load".
func RecordSnapshot(operation string, duration time.Duration) {
	SnapshotDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateIndexedTracksTotal updates the gauge tracking the number of tracks
// currently stored in the vector index.
func UpdateIndexedTracksTotal(count int) {
	IndexedTracksTotal.Set(float64(count))
}

// RecordDBQuery records the duration of a checkpoint store query.
// Operation should describe the query type (e.g., "select_entries", "upsert_entry").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates checkpoint store connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}

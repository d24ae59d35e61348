package admin

import (
	"net/http"
	"time"
)

// IngestConfig shapes background ingestion runs started over HTTP.
type IngestConfig struct {
	// DefaultCount is applied when a request omits count.
	DefaultCount int

	// Timeout bounds a background run; zero disables the bound.
	Timeout time.Duration

	// AfterRun, when set, is invoked after a background run ends. The
	// server uses it to persist the index snapshot.
	AfterRun func()
}

// Register registers the operator-facing HTTP handlers with the given mux.
func Register(mux *http.ServeMux, pipeline Runner, idx Index, checkpoints CheckpointCounter, cfg IngestConfig) {
	mux.Handle("POST /admin/ingest", IngestHandler{Pipeline: pipeline, Config: cfg})
	mux.Handle("POST /admin/ingest/stop", IngestStopHandler{Pipeline: pipeline})
	mux.Handle("GET /admin/ingest/status", IngestStatusHandler{Pipeline: pipeline})
	mux.Handle("GET /admin/index/stats", StatsHandler{Index: idx, Checkpoints: checkpoints})
}

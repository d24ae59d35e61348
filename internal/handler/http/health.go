// Package http provides HTTP handlers and middleware for the recommendation
// API: track search, recommendation and identification handlers, health
// endpoints, metrics collection and the middleware chain around them.
package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Check status values, from best to worst. Degraded is a warning: the
// service still answers, but something needs attention.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// HealthResponse is the health endpoint's JSON body.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

// CheckStatus reports one dependency.
type CheckStatus struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// IndexStats exposes the read-side statistics of the vector index.
type IndexStats interface {
	Count() int
	Dim() int
}

// EmbedReadiness reports whether the embedding backend is reachable.
type EmbedReadiness interface {
	Ready(ctx context.Context) error
}

// HealthHandler reports on the three dependencies identification needs:
// the checkpoint database, the vector index and the embedding backend.
type HealthHandler struct {
	DB      *sql.DB
	Index   IndexStats
	Embed   EmbedReadiness
	Version string
}

// ServeHTTP answers 200 while every check is at worst degraded, 503 once
// any dependency is unhealthy. An empty index is only degraded: the API
// can still answer identify requests meaningfully while ingestion catches
// up.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]CheckStatus)

	if h.DB != nil {
		checks["checkpoint_db"] = h.checkDatabase(ctx)
	} else {
		checks["checkpoint_db"] = CheckStatus{Status: statusUnhealthy, Message: "not configured"}
	}
	if h.Index != nil {
		checks["index"] = h.checkIndex()
	}
	if h.Embed != nil {
		checks["embedder"] = h.checkEmbedder(ctx)
	}

	status, code := statusHealthy, http.StatusOK
	for _, check := range checks {
		if check.Status == statusUnhealthy {
			status, code = statusUnhealthy, http.StatusServiceUnavailable
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	})
	if err != nil {
		slog.Error("health: failed to encode response", slog.Any("error", err))
	}
}

// checkDatabase pings the checkpoint store and reports pool pressure. A
// pool above 80% utilization degrades before it fails, which is the moment
// to notice.
func (h *HealthHandler) checkDatabase(ctx context.Context) CheckStatus {
	if err := h.DB.PingContext(ctx); err != nil {
		return CheckStatus{Status: statusUnhealthy, Message: err.Error()}
	}

	stats := h.DB.Stats()
	details := map[string]interface{}{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}

	if stats.MaxOpenConnections == 0 {
		return CheckStatus{
			Status:  statusDegraded,
			Message: "connection pool max connections not configured",
			Details: details,
		}
	}

	utilization := float64(stats.InUse) / float64(stats.MaxOpenConnections) * 100
	details["utilization_percent"] = utilization
	if utilization >= 80.0 {
		return CheckStatus{
			Status:  statusDegraded,
			Message: "connection pool utilization above 80%",
			Details: details,
		}
	}
	return CheckStatus{Status: statusHealthy, Details: details}
}

// checkIndex reports index population. Empty means identification cannot
// match anything yet, so degraded until an ingestion run lands.
func (h *HealthHandler) checkIndex() CheckStatus {
	count := h.Index.Count()
	details := map[string]interface{}{
		"indexed_tracks": count,
		"dimension":      h.Index.Dim(),
	}
	if count == 0 {
		return CheckStatus{
			Status:  statusDegraded,
			Message: "index is empty, run ingestion",
			Details: details,
		}
	}
	return CheckStatus{Status: statusHealthy, Details: details}
}

func (h *HealthHandler) checkEmbedder(ctx context.Context) CheckStatus {
	if err := h.Embed.Ready(ctx); err != nil {
		return CheckStatus{Status: statusUnhealthy, Message: err.Error()}
	}
	return CheckStatus{Status: statusHealthy}
}

// ReadyHandler backs the readiness probe: traffic may arrive once the
// checkpoint database answers.
type ReadyHandler struct {
	DB *sql.DB
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.DB == nil {
		http.Error(w, "database not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.DB.PingContext(ctx); err != nil {
		http.Error(w, "database not ready: "+err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// LiveHandler backs the liveness probe. Answering at all is the check.
type LiveHandler struct{}

func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("alive"))
}

package admin

import (
	"context"
	"net/http"

	"tunescout/internal/handler/http/respond"
	"tunescout/internal/infra/checkpoint"
)

// Index exposes the read-side statistics of the vector index.
type Index interface {
	Count() int
	Dim() int
}

// CheckpointCounter reports per-outcome checkpoint totals.
type CheckpointCounter interface {
	Count(ctx context.Context, outcome string) (int, error)
}

type statsResponse struct {
	IndexedTracks        int `json:"indexed_tracks"`
	Dimension            int `json:"dimension"`
	CheckpointsSucceeded int `json:"checkpoints_succeeded"`
	CheckpointsFailed    int `json:"checkpoints_failed"`
}

// StatsHandler reports index population and checkpoint totals.
type StatsHandler struct {
	Index       Index
	Checkpoints CheckpointCounter
}

func (h StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{
		IndexedTracks: h.Index.Count(),
		Dimension:     h.Index.Dim(),
	}

	if h.Checkpoints != nil {
		if n, err := h.Checkpoints.Count(r.Context(), checkpoint.OutcomeSucceeded); err == nil {
			resp.CheckpointsSucceeded = n
		}
		if n, err := h.Checkpoints.Count(r.Context(), checkpoint.OutcomeFailed); err == nil {
			resp.CheckpointsFailed = n
		}
	}

	respond.JSON(w, http.StatusOK, resp)
}

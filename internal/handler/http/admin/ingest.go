// Package admin provides operational HTTP handlers for ingestion control
// and index inspection. These endpoints are meant for operators, not
// listeners, and should be bound behind a private network or port.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"tunescout/internal/handler/http/respond"
	"tunescout/internal/usecase/ingest"

	"tunescout/internal/domain/entity"
)

// Runner is the ingestion pipeline surface the admin handlers need.
type Runner interface {
	Run(ctx context.Context, opts ingest.Options) (*entity.IngestionStats, error)
	Stop()
	State() ingest.State
}

type ingestRequest struct {
	Count  int  `json:"count,omitempty"`
	Resume bool `json:"resume,omitempty"`
	Reset  bool `json:"reset,omitempty"`
}

type ingestResponse struct {
	State string `json:"state"`
}

// IngestHandler starts an ingestion run in the background.
// Returns 409 Conflict when a run is already active.
type IngestHandler struct {
	Pipeline Runner
	Config   IngestConfig
}

func (h IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respond.SafeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	if req.Count < 0 {
		respond.SafeError(w, http.StatusBadRequest, errors.New("count must be positive"))
		return
	}
	if req.Count == 0 {
		req.Count = h.Config.DefaultCount
	}
	if req.Count < 1 {
		respond.SafeError(w, http.StatusBadRequest, errors.New("count is required"))
		return
	}

	if h.Pipeline.State() == ingest.StateRunning {
		respond.SafeError(w, http.StatusConflict, errors.New("ingestion already running"))
		return
	}

	opts := ingest.Options{
		TargetCount: req.Count,
		Resume:      req.Resume,
		Reset:       req.Reset,
	}

	// 取り込みはリクエストより長く走るのでバックグラウンドで実行する
	go func() {
		ctx := context.Background()
		if h.Config.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.Config.Timeout)
			defer cancel()
		}
		if _, err := h.Pipeline.Run(ctx, opts); err != nil {
			if errors.Is(err, ingest.ErrAlreadyRunning) {
				slog.Warn("ingestion start raced with another run")
				return
			}
			slog.Error("background ingestion failed", slog.Any("error", err))
		}
		// 失敗したランでも途中までは索引に入っているので必ず反映する
		if h.Config.AfterRun != nil {
			h.Config.AfterRun()
		}
	}()

	respond.JSON(w, http.StatusAccepted, ingestResponse{State: string(ingest.StateRunning)})
}

// IngestStopHandler requests a cooperative stop of the active run.
// In-flight tracks finish and checkpoint before the pipeline pauses.
type IngestStopHandler struct {
	Pipeline Runner
}

func (h IngestStopHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Pipeline.Stop()
	respond.JSON(w, http.StatusAccepted, ingestResponse{State: string(h.Pipeline.State())})
}

// IngestStatusHandler reports the current pipeline state.
type IngestStatusHandler struct {
	Pipeline Runner
}

func (h IngestStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, ingestResponse{State: string(h.Pipeline.State())})
}

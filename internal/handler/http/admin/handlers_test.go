package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunescout/internal/domain/entity"
	"tunescout/internal/infra/checkpoint"
	"tunescout/internal/usecase/ingest"
)

type fakeRunner struct {
	mu      sync.Mutex
	state   ingest.State
	runOpts *ingest.Options
	runErr  error
	stopped bool
	started chan struct{}
}

func newFakeRunner(state ingest.State) *fakeRunner {
	return &fakeRunner{state: state, started: make(chan struct{}, 1)}
}

func (f *fakeRunner) Run(_ context.Context, opts ingest.Options) (*entity.IngestionStats, error) {
	f.mu.Lock()
	f.runOpts = &opts
	f.mu.Unlock()
	select {
	case f.started <- struct{}{}:
	default:
	}
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &entity.IngestionStats{Target: opts.TargetCount}, nil
}

func (f *fakeRunner) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeRunner) State() ingest.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

type fakeIndex struct {
	count int
	dim   int
}

func (f *fakeIndex) Count() int { return f.count }
func (f *fakeIndex) Dim() int   { return f.dim }

type fakeCounter struct {
	counts map[string]int
}

func (f *fakeCounter) Count(_ context.Context, outcome string) (int, error) {
	return f.counts[outcome], nil
}

func TestIngestHandler_StartsRun(t *testing.T) {
	runner := newFakeRunner(ingest.StateIdle)
	handler := IngestHandler{Pipeline: runner}

	body := strings.NewReader(`{"count":100,"resume":true}`)
	req := httptest.NewRequest(http.MethodPost, "/admin/ingest", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	// バックグラウンド起動を待つ
	select {
	case <-runner.started:
	case <-time.After(time.Second):
		t.Fatal("run was not started")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.NotNil(t, runner.runOpts)
	assert.Equal(t, 100, runner.runOpts.TargetCount)
	assert.True(t, runner.runOpts.Resume)
	assert.False(t, runner.runOpts.Reset)
}

func TestIngestHandler_ConflictWhenRunning(t *testing.T) {
	runner := newFakeRunner(ingest.StateRunning)
	handler := IngestHandler{Pipeline: runner}

	req := httptest.NewRequest(http.MethodPost, "/admin/ingest", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestIngestHandler_EmptyBodyUsesDefaultCount(t *testing.T) {
	runner := newFakeRunner(ingest.StateIdle)
	handler := IngestHandler{Pipeline: runner, Config: IngestConfig{DefaultCount: 500}}

	req := httptest.NewRequest(http.MethodPost, "/admin/ingest", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case <-runner.started:
	case <-time.After(time.Second):
		t.Fatal("run was not started")
	}

	runner.mu.Lock()
	defer runner.mu.Unlock()
	require.NotNil(t, runner.runOpts)
	assert.Equal(t, 500, runner.runOpts.TargetCount)
}

func TestIngestHandler_RejectsBadCount(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "negative count", body: `{"count":-1}`},
		{name: "zero count without default", body: `{"count":0}`},
		{name: "empty body without default", body: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newFakeRunner(ingest.StateIdle)
			handler := IngestHandler{Pipeline: runner}

			req := httptest.NewRequest(http.MethodPost, "/admin/ingest", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			runner.mu.Lock()
			assert.Nil(t, runner.runOpts)
			runner.mu.Unlock()
		})
	}
}

func TestIngestHandler_PersistsIndexAfterRun(t *testing.T) {
	saved := make(chan struct{}, 1)
	runner := newFakeRunner(ingest.StateIdle)
	handler := IngestHandler{Pipeline: runner, Config: IngestConfig{
		DefaultCount: 10,
		AfterRun:     func() { saved <- struct{}{} },
	}}

	req := httptest.NewRequest(http.MethodPost, "/admin/ingest", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	// ランが終わったら索引の永続化フックが必ず呼ばれる
	select {
	case <-saved:
	case <-time.After(time.Second):
		t.Fatal("index was not persisted after the run")
	}
}

func TestIngestHandler_PersistsIndexAfterFailedRun(t *testing.T) {
	saved := make(chan struct{}, 1)
	runner := newFakeRunner(ingest.StateIdle)
	runner.runErr = assert.AnError
	handler := IngestHandler{Pipeline: runner, Config: IngestConfig{
		DefaultCount: 10,
		AfterRun:     func() { saved <- struct{}{} },
	}}

	req := httptest.NewRequest(http.MethodPost, "/admin/ingest", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	// 失敗したランでも途中まで取り込んだ分は索引に入っている
	select {
	case <-saved:
	case <-time.After(time.Second):
		t.Fatal("index was not persisted after the failed run")
	}
}

func TestIngestStopHandler(t *testing.T) {
	runner := newFakeRunner(ingest.StatePaused)
	handler := IngestStopHandler{Pipeline: runner}

	req := httptest.NewRequest(http.MethodPost, "/admin/ingest/stop", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	runner.mu.Lock()
	assert.True(t, runner.stopped)
	runner.mu.Unlock()
}

func TestIngestStatusHandler(t *testing.T) {
	runner := newFakeRunner(ingest.StateCompleted)
	handler := IngestStatusHandler{Pipeline: runner}

	req := httptest.NewRequest(http.MethodGet, "/admin/ingest/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ingestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.State)
}

func TestStatsHandler(t *testing.T) {
	handler := StatsHandler{
		Index: &fakeIndex{count: 987, dim: 512},
		Checkpoints: &fakeCounter{counts: map[string]int{
			checkpoint.OutcomeSucceeded: 987,
			checkpoint.OutcomeFailed:    13,
		}},
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/index/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 987, resp.IndexedTracks)
	assert.Equal(t, 512, resp.Dimension)
	assert.Equal(t, 987, resp.CheckpointsSucceeded)
	assert.Equal(t, 13, resp.CheckpointsFailed)
}

func TestStatsHandler_NoCheckpoints(t *testing.T) {
	handler := StatsHandler{Index: &fakeIndex{count: 5, dim: 8}}

	req := httptest.NewRequest(http.MethodGet, "/admin/index/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 5, resp.IndexedTracks)
	assert.Zero(t, resp.CheckpointsSucceeded)
}

// Package ingest builds the index from the catalog's top tracks. Runs are
// checkpointed per track so an interrupted run resumes where it stopped.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"tunescout/internal/domain/entity"
	"tunescout/internal/infra/checkpoint"
	"tunescout/internal/observability/metrics"
)

// State is the pipeline's job state.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

const (
	defaultWorkers       = 4
	defaultProgressEvery = 10
)

// Catalog supplies ranked candidates and their preview audio.
type Catalog interface {
	TopTracks(ctx context.Context, n int) ([]entity.Track, error)
	FetchPreview(ctx context.Context, id string) ([]byte, error)
}

// Contract turns preview audio into an index-ready embedding.
type Contract interface {
	FromWAV(ctx context.Context, wav []byte) (entity.Embedding, error)
}

// Index stores embeddings with their track snapshots.
type Index interface {
	Upsert(id string, emb entity.Embedding, track entity.Track) error
	Exists(id string) bool
	Count() int
	Reset()
}

// Checkpoints records per-track outcomes durably.
type Checkpoints interface {
	Mark(ctx context.Context, trackID, outcome string) error
	Processed(ctx context.Context) (map[string]string, error)
	Clear(ctx context.Context) error
}

// Options controls one ingestion run.
type Options struct {
	// TargetCount is how many chart tracks to ingest.
	TargetCount int

	// Resume skips tracks already recorded in the checkpoint store:
	// permanent failures always, successes only while the track is still
	// present in the index.
	Resume bool

	// Reset clears the checkpoint store and the index before ingesting.
	Reset bool
}

// Pipeline ingests chart tracks into the index with a bounded worker pool.
// Only one run may be active at a time.
type Pipeline struct {
	catalog       Catalog
	contract      Contract
	index         Index
	checkpoints   Checkpoints
	workers       int
	progressEvery int

	mu     sync.Mutex
	state  State
	stopCh chan struct{}

	retries atomic.Int64
}

// NewPipeline creates an ingestion pipeline. workers <= 0 selects the
// default pool size.
func NewPipeline(catalog Catalog, contract Contract, index Index, checkpoints Checkpoints, workers int) *Pipeline {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Pipeline{
		catalog:       catalog,
		contract:      contract,
		index:         index,
		checkpoints:   checkpoints,
		workers:       workers,
		progressEvery: defaultProgressEvery,
		state:         StateIdle,
	}
}

// State returns the current job state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// NoteRetry records one transient retry observed by a collaborator during
// the active run.
func (p *Pipeline) NoteRetry(attempt int, err error) {
	p.retries.Add(1)
	metrics.RecordIngestRetry()
	slog.Debug("transient error, retrying",
		slog.Int("attempt", attempt),
		slog.Any("error", err))
}

// Stop cooperatively drains the active run: in-flight tracks finish and
// are checkpointed, remaining tracks are left for a resumed run.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateRunning && p.stopCh != nil {
		select {
		case <-p.stopCh:
			// already stopping
		default:
			close(p.stopCh)
		}
	}
}

// Run executes one ingestion run and returns its stats.
// Checkpoint storage failures halt the run; per-track failures never do.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*entity.IngestionStats, error) {
	if err := p.begin(); err != nil {
		return nil, err
	}

	stats := &entity.IngestionStats{Target: opts.TargetCount}
	start := time.Now()

	finalState, runErr := p.run(ctx, opts, stats)

	stats.TransientRetries = p.retries.Load()
	stats.Duration = time.Since(start)
	metrics.UpdateIndexedTracksTotal(p.index.Count())

	p.finish(finalState)

	slog.Info("ingestion run finished",
		slog.String("state", string(finalState)),
		slog.Int("target", stats.Target),
		slog.Int64("succeeded", stats.Succeeded),
		slog.Int64("skipped", stats.SkippedAlreadyIndexed),
		slog.Int64("failed_permanent", stats.FailedPermanent),
		slog.Int64("transient_retries", stats.TransientRetries),
		slog.Duration("duration", stats.Duration))

	return stats, runErr
}

// begin transitions the state machine into running, rejecting concurrent runs.
func (p *Pipeline) begin() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateRunning {
		return ErrAlreadyRunning
	}

	p.state = StateRunning
	p.stopCh = make(chan struct{})
	p.retries.Store(0)
	return nil
}

func (p *Pipeline) finish(state State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
	p.stopCh = nil
}

func (p *Pipeline) run(ctx context.Context, opts Options, stats *entity.IngestionStats) (State, error) {
	stopCh := p.currentStopCh()

	if opts.Reset {
		// チェックポイントを先に消す。逆順だと途中失敗時に
		// 再開処理が消えた索引を参照してしまう
		if err := p.checkpoints.Clear(ctx); err != nil {
			return StateFailed, fmt.Errorf("reset checkpoints: %w", err)
		}
		p.index.Reset()
		slog.Info("ingestion state reset")
	}

	candidates, err := p.catalog.TopTracks(ctx, opts.TargetCount)
	if err != nil {
		return StateFailed, fmt.Errorf("fetch chart candidates: %w", err)
	}

	processed := map[string]string{}
	if opts.Resume && !opts.Reset {
		processed, err = p.checkpoints.Processed(ctx)
		if err != nil {
			return StateFailed, fmt.Errorf("load checkpoints: %w", err)
		}
	}

	var done atomic.Int64
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(p.workers)

	stopped := false
	for _, candidate := range candidates {
		if outcome, ok := processed[candidate.ID]; ok {
			// 成功記録は索引に実在する間だけ信用する。スナップショットが
			// 失われた後も飛ばすと曲が永久に欠けたままになる
			if outcome != checkpoint.OutcomeSucceeded || p.index.Exists(candidate.ID) {
				atomic.AddInt64(&stats.SkippedAlreadyIndexed, 1)
				continue
			}
		}

		select {
		case <-stopCh:
			stopped = true
		default:
		}
		if stopped || egCtx.Err() != nil {
			break
		}

		track := candidate
		eg.Go(func() error {
			// 停止後に起動したタスクは未着手のまま再開に回す
			select {
			case <-stopCh:
				return nil
			default:
			}
			if err := egCtx.Err(); err != nil {
				return err
			}

			outcome, err := p.processTrack(egCtx, track, stats)
			if err != nil {
				// コンテキスト中断は結果を記録しない
				return err
			}

			// 次の曲に進む前にチェックポイントを永続化する
			if err := p.checkpoints.Mark(egCtx, track.ID, outcome); err != nil {
				return fmt.Errorf("checkpoint %s: %w", track.ID, err)
			}

			if n := done.Add(1); n%int64(p.progressEvery) == 0 {
				slog.Info("ingestion progress",
					slog.Int64("processed", n),
					slog.Int("target", opts.TargetCount),
					slog.Int("indexed", p.index.Count()))
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return StateFailed, err
	}

	if stopped || p.stopRequested() {
		return StatePaused, nil
	}
	return StateCompleted, nil
}

// processTrack runs one track through preview fetch, embedding, and index
// upsert. Collaborator errors are terminal for the track (retries already
// happened downstream) and classify it as a permanent failure; context
// interruption propagates instead so the track is not checkpointed.
func (p *Pipeline) processTrack(ctx context.Context, track entity.Track, stats *entity.IngestionStats) (string, error) {
	wav, err := p.catalog.FetchPreview(ctx, track.ID)
	if err != nil {
		return p.classifyFailure(ctx, track, "fetch_preview", err, stats)
	}

	emb, err := p.contract.FromWAV(ctx, wav)
	if err != nil {
		return p.classifyFailure(ctx, track, "embed", err, stats)
	}

	if err := p.index.Upsert(track.ID, emb, track); err != nil {
		return p.classifyFailure(ctx, track, "upsert", err, stats)
	}

	atomic.AddInt64(&stats.Succeeded, 1)
	metrics.RecordTrackIngested("succeeded")
	return checkpoint.OutcomeSucceeded, nil
}

func (p *Pipeline) classifyFailure(ctx context.Context, track entity.Track, stage string, err error, stats *entity.IngestionStats) (string, error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "", err
	}

	atomic.AddInt64(&stats.FailedPermanent, 1)
	metrics.RecordTrackIngested("failed_permanent")
	slog.Warn("track failed permanently, skipping",
		slog.String("track_id", track.ID),
		slog.String("title", track.Title),
		slog.String("stage", stage),
		slog.Bool("permanent", entity.IsPermanent(err)),
		slog.Any("error", err))
	return checkpoint.OutcomeFailed, nil
}

func (p *Pipeline) currentStopCh() chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopCh
}

func (p *Pipeline) stopRequested() bool {
	ch := p.currentStopCh()
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

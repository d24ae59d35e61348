// Package identify orchestrates voice-clip identification: transcribe
// (optional), embed, match against the index, recommend similar tracks,
// and summarize (optional). Optional stage failures degrade the result
// instead of failing the request.
package identify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tunescout/internal/domain/entity"
	"tunescout/internal/index"
	"tunescout/internal/observability/metrics"
	"tunescout/internal/usecase/recommend"
)

// Stage names, logged as each identification progresses.
const (
	StageReceived     = "received"
	StageTranscribing = "transcribing"
	StageEmbedding    = "embedding"
	StageIdentifying  = "identifying"
	StageRecommending = "recommending"
	StageSummarizing  = "summarizing"
	StageDone         = "done"
)

// DefaultConfidenceThreshold flags matches below this similarity as low
// confidence. Matches are never rejected outright.
const DefaultConfidenceThreshold = 0.50

// Defaults for identification options.
const (
	DefaultSimilarCount = 3
)

// Transcriber converts the uploaded clip to text. Optional stage.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// Contract produces the query embedding. Mandatory stage.
type Contract interface {
	FromWAV(ctx context.Context, wav []byte) (entity.Embedding, error)
}

// Summarizer writes a blurb for the identified track. Optional stage.
type Summarizer interface {
	Describe(ctx context.Context, track entity.Track, similar []entity.SimilarityResult) (string, error)
}

// Options controls one identification request.
type Options struct {
	// SimilarCount is how many recommendations to return alongside the
	// match. Zero means DefaultSimilarCount.
	SimilarCount int

	// CandidateDepth overrides the retrieval depth for recommendations.
	CandidateDepth int
}

// Result is the outcome of one identification.
type Result struct {
	// Track is the best index match for the clip.
	Track entity.Track

	// Confidence is the match similarity clamped to [0,1].
	Confidence float64

	// LowConfidence marks matches below the configured threshold.
	LowConfidence bool

	// Similar lists recommendations excluding the identified track.
	Similar []entity.SimilarityResult

	// Transcription is the recognized text, empty when the stage was
	// skipped or failed.
	Transcription string

	// Summary is the optional generated blurb.
	Summary string
}

// Orchestrator runs the identification stages. Transcriber and Summarizer
// may be nil; those stages are then skipped.
type Orchestrator struct {
	transcriber Transcriber
	contract    Contract
	index       *index.Flat
	engine      *recommend.Engine
	summarizer  Summarizer
	threshold   float64
}

// NewOrchestrator creates an identification orchestrator. threshold <= 0
// selects DefaultConfidenceThreshold.
func NewOrchestrator(
	transcriber Transcriber,
	contract Contract,
	idx *index.Flat,
	engine *recommend.Engine,
	summarizer Summarizer,
	threshold float64,
) *Orchestrator {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return &Orchestrator{
		transcriber: transcriber,
		contract:    contract,
		index:       idx,
		engine:      engine,
		summarizer:  summarizer,
		threshold:   threshold,
	}
}

// IdentifyFromAudio identifies the uploaded clip and gathers
// recommendations around the match.
func (o *Orchestrator) IdentifyFromAudio(ctx context.Context, wav []byte, filename string, opts Options) (*Result, error) {
	start := time.Now()
	logger := slog.With(slog.String("filename", filename))
	logger.Info("identification started", slog.String("stage", StageReceived), slog.Int("bytes", len(wav)))

	result := &Result{}

	// 任意ステージ: 失敗しても識別は続行する
	if o.transcriber != nil {
		logger.Debug("identification stage", slog.String("stage", StageTranscribing))
		text, err := o.transcriber.Transcribe(ctx, wav)
		if err != nil {
			logger.Warn("transcription failed, continuing without text",
				slog.String("stage", StageTranscribing),
				slog.Any("error", err))
		} else {
			result.Transcription = text
		}
	}

	logger.Debug("identification stage", slog.String("stage", StageEmbedding))
	query, err := o.contract.FromWAV(ctx, wav)
	if err != nil {
		metrics.RecordIdentifyRequest("failure")
		return nil, fmt.Errorf("%w: embed clip: %v", entity.ErrIdentificationFailed, err)
	}

	logger.Debug("identification stage", slog.String("stage", StageIdentifying))
	best, err := o.bestMatch(query)
	if err != nil {
		metrics.RecordIdentifyRequest("failure")
		return nil, err
	}

	result.Track = best.Entry.Track
	result.Confidence = clamp01(best.Similarity)
	result.LowConfidence = result.Confidence < o.threshold

	logger.Debug("identification stage", slog.String("stage", StageRecommending))
	similar, err := o.engine.Recommend(ctx, query, recommend.Options{
		ExcludeTrackID: best.ID,
		CandidateDepth: opts.CandidateDepth,
		FinalCount:     similarCount(opts),
	})
	if err != nil {
		metrics.RecordIdentifyRequest("failure")
		return nil, fmt.Errorf("recommend for match %s: %w", best.ID, err)
	}
	result.Similar = similar

	// 任意ステージ: 失敗時は要約なしで返す
	if o.summarizer != nil {
		logger.Debug("identification stage", slog.String("stage", StageSummarizing))
		summary, err := o.summarizer.Describe(ctx, result.Track, result.Similar)
		if err != nil {
			logger.Warn("summary failed, continuing without blurb",
				slog.String("stage", StageSummarizing),
				slog.Any("error", err))
		} else {
			result.Summary = summary
		}
	}

	status := "success"
	if result.LowConfidence {
		status = "low_confidence"
	}
	metrics.RecordIdentifyRequest(status)

	logger.Info("identification completed",
		slog.String("stage", StageDone),
		slog.String("track_id", result.Track.ID),
		slog.Float64("confidence", result.Confidence),
		slog.Bool("low_confidence", result.LowConfidence),
		slog.Int("similar", len(result.Similar)),
		slog.Duration("duration", time.Since(start)))

	return result, nil
}

// bestMatch returns the single nearest index entry for the query.
func (o *Orchestrator) bestMatch(query entity.Embedding) (index.Neighbor, error) {
	neighbors, err := o.index.QueryKNN(query, 1)
	if err != nil {
		return index.Neighbor{}, fmt.Errorf("%w: query index: %v", entity.ErrIdentificationFailed, err)
	}
	if len(neighbors) == 0 {
		return index.Neighbor{}, fmt.Errorf("%w: index is empty", entity.ErrIdentificationFailed)
	}
	return neighbors[0], nil
}

func similarCount(opts Options) int {
	if opts.SimilarCount > 0 {
		return opts.SimilarCount
	}
	return DefaultSimilarCount
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

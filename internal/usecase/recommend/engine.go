// Package recommend retrieves similar tracks from the vector index and
// reranks near-ties by popularity.
package recommend

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"tunescout/internal/domain/entity"
	"tunescout/internal/index"
	"tunescout/internal/observability/metrics"
)

// Defaults for retrieval options.
const (
	DefaultCandidateDepth = 10
	DefaultFinalCount     = 3
	DefaultTieBand        = 0.02
)

// Options controls a single retrieval.
type Options struct {
	// ExcludeTrackID removes one track from the results, typically the
	// query track itself.
	ExcludeTrackID string

	// CandidateDepth is how many neighbors to pull from the index before
	// reranking. Zero means DefaultCandidateDepth.
	CandidateDepth int

	// FinalCount is how many results to return. Zero means DefaultFinalCount.
	FinalCount int
}

// Engine runs k-NN retrieval with a popularity rerank over near-ties.
type Engine struct {
	index   *index.Flat
	tieBand float64
}

// NewEngine creates a retrieval engine over the given index.
// tieBand is the similarity distance within which two candidates are
// considered tied; zero or negative selects the default.
func NewEngine(idx *index.Flat, tieBand float64) *Engine {
	if tieBand <= 0 {
		tieBand = DefaultTieBand
	}
	return &Engine{index: idx, tieBand: tieBand}
}

// Recommend returns the reranked similar tracks for the query embedding.
// It returns as many results as the index can provide, which may be fewer
// than FinalCount.
func (e *Engine) Recommend(ctx context.Context, query entity.Embedding, opts Options) ([]entity.SimilarityResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	depth := opts.CandidateDepth
	if depth <= 0 {
		depth = DefaultCandidateDepth
	}
	finalCount := opts.FinalCount
	if finalCount <= 0 {
		finalCount = DefaultFinalCount
	}

	// 除外する1件分を深めに取得する
	k := depth
	if opts.ExcludeTrackID != "" {
		k++
	}

	start := time.Now()
	neighbors, err := e.index.QueryKNN(query, k)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	metrics.RecordKNNQuery(time.Since(start))

	candidates := neighbors[:0:0]
	for _, n := range neighbors {
		if n.ID == opts.ExcludeTrackID {
			continue
		}
		candidates = append(candidates, n)
	}
	if len(candidates) > depth {
		candidates = candidates[:depth]
	}

	e.rerank(candidates)

	if len(candidates) > finalCount {
		candidates = candidates[:finalCount]
	}

	results := make([]entity.SimilarityResult, 0, len(candidates))
	for i, n := range candidates {
		results = append(results, entity.SimilarityResult{
			TrackID:        n.ID,
			Title:          n.Entry.Track.Title,
			Artist:         n.Entry.Track.Artist,
			Similarity:     clampSimilarity(n.Similarity),
			PopularityRank: n.Entry.Track.PopularityRank,
			Position:       i + 1,
			PreviewURL:     n.Entry.Track.PreviewURL,
			CoverURL:       n.Entry.Track.CoverURL,
		})
	}
	return results, nil
}

// rerank sorts candidates so that near-tied similarities prefer the more
// popular track. Candidates arrive sorted by descending similarity; the
// comparison stays transitive because ties are decided pairwise within
// the band and fall back to similarity outside it.
func (e *Engine) rerank(candidates []index.Neighbor) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if math.Abs(a.Similarity-b.Similarity) <= e.tieBand {
			ra, rb := effectiveRank(a.Entry.Track.PopularityRank), effectiveRank(b.Entry.Track.PopularityRank)
			if ra != rb {
				return ra < rb
			}
			return a.ID < b.ID
		}
		return a.Similarity > b.Similarity
	})
}

// effectiveRank orders unranked tracks (rank 0) after every charted track.
func effectiveRank(rank int) int {
	if rank <= 0 {
		return math.MaxInt
	}
	return rank
}

// clampSimilarity floors negative cosine similarity at zero for display.
func clampSimilarity(sim float64) float64 {
	if sim < 0 {
		return 0
	}
	return sim
}

package recommend

import (
	"context"
	"fmt"

	"tunescout/internal/domain/entity"
)

// Catalog resolves track metadata and preview audio.
type Catalog interface {
	TrackMetadata(ctx context.Context, id string) (*entity.Track, error)
	FetchPreview(ctx context.Context, id string) ([]byte, error)
}

// EmbeddingContract turns preview audio into a query embedding.
type EmbeddingContract interface {
	FromWAV(ctx context.Context, wav []byte) (entity.Embedding, error)
}

// Service answers "similar to this catalog track" requests: it resolves
// the track, embeds its preview, and retrieves neighbors with the track
// itself excluded.
type Service struct {
	catalog  Catalog
	contract EmbeddingContract
	engine   *Engine
}

// NewService creates a recommendation service.
func NewService(catalog Catalog, contract EmbeddingContract, engine *Engine) *Service {
	return &Service{catalog: catalog, contract: contract, engine: engine}
}

// RecommendForTrack returns tracks similar to the given catalog track.
// Returns ErrTrackNotFound for unknown IDs and ErrNoPreview for tracks
// without preview audio; the two are distinct so callers can report them
// differently.
func (s *Service) RecommendForTrack(ctx context.Context, trackID string, finalCount int) ([]entity.SimilarityResult, error) {
	track, err := s.catalog.TrackMetadata(ctx, trackID)
	if err != nil {
		return nil, fmt.Errorf("resolve track %s: %w", trackID, err)
	}

	wav, err := s.catalog.FetchPreview(ctx, track.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch preview for %s: %w", trackID, err)
	}

	query, err := s.contract.FromWAV(ctx, wav)
	if err != nil {
		return nil, fmt.Errorf("embed preview for %s: %w", trackID, err)
	}

	return s.engine.Recommend(ctx, query, Options{
		ExcludeTrackID: track.ID,
		FinalCount:     finalCount,
	})
}

package recommend

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunescout/internal/domain/entity"
	"tunescout/internal/index"
)

// vecWithSimilarity builds a unit vector whose dot product with (1,0,0)
// equals sim.
func vecWithSimilarity(sim float64) entity.Embedding {
	return entity.Embedding{float32(sim), float32(math.Sqrt(1 - sim*sim)), 0}
}

var queryVec = entity.Embedding{1, 0, 0}

func addTrack(t *testing.T, idx *index.Flat, id string, sim float64, rank int) {
	t.Helper()
	err := idx.Upsert(id, vecWithSimilarity(sim), entity.Track{
		ID:             id,
		Title:          "Track " + id,
		Artist:         "Artist " + id,
		PopularityRank: rank,
	})
	require.NoError(t, err)
}

func TestEngine_Recommend_OrdersBySimilarity(t *testing.T) {
	idx := index.NewFlat(3)
	addTrack(t, idx, "a", 0.95, 100)
	addTrack(t, idx, "b", 0.80, 1)
	addTrack(t, idx, "c", 0.60, 50)

	engine := NewEngine(idx, 0)

	results, err := engine.Recommend(context.Background(), queryVec, Options{FinalCount: 3})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "a", results[0].TrackID)
	assert.Equal(t, "b", results[1].TrackID)
	assert.Equal(t, "c", results[2].TrackID)

	// Positionは1始まり
	assert.Equal(t, 1, results[0].Position)
	assert.Equal(t, 2, results[1].Position)
	assert.Equal(t, 3, results[2].Position)
}

func TestEngine_Recommend_TieBandPrefersPopular(t *testing.T) {
	idx := index.NewFlat(3)
	// 類似度0.91で500位と、類似度0.90で10位: バンド内なので人気順が勝つ
	addTrack(t, idx, "obscure", 0.91, 500)
	addTrack(t, idx, "popular", 0.90, 10)

	engine := NewEngine(idx, 0.02)

	results, err := engine.Recommend(context.Background(), queryVec, Options{FinalCount: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "popular", results[0].TrackID)
	assert.Equal(t, "obscure", results[1].TrackID)
}

func TestEngine_Recommend_OutsideTieBandKeepsSimilarityOrder(t *testing.T) {
	idx := index.NewFlat(3)
	addTrack(t, idx, "obscure", 0.95, 500)
	addTrack(t, idx, "popular", 0.90, 10)

	engine := NewEngine(idx, 0.02)

	results, err := engine.Recommend(context.Background(), queryVec, Options{FinalCount: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "obscure", results[0].TrackID)
}

func TestEngine_Recommend_UnrankedIsLeastPopular(t *testing.T) {
	idx := index.NewFlat(3)
	addTrack(t, idx, "unranked", 0.91, 0)
	addTrack(t, idx, "charted", 0.90, 90)

	engine := NewEngine(idx, 0.02)

	results, err := engine.Recommend(context.Background(), queryVec, Options{FinalCount: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "charted", results[0].TrackID)
}

func TestEngine_Recommend_TieBreaksByTrackID(t *testing.T) {
	idx := index.NewFlat(3)
	addTrack(t, idx, "20", 0.90, 5)
	addTrack(t, idx, "10", 0.90, 5)

	engine := NewEngine(idx, 0.02)

	results, err := engine.Recommend(context.Background(), queryVec, Options{FinalCount: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "10", results[0].TrackID)
	assert.Equal(t, "20", results[1].TrackID)
}

func TestEngine_Recommend_ExcludesTrack(t *testing.T) {
	idx := index.NewFlat(3)
	addTrack(t, idx, "self", 1.0, 1)
	addTrack(t, idx, "a", 0.9, 2)
	addTrack(t, idx, "b", 0.8, 3)
	addTrack(t, idx, "c", 0.7, 4)

	engine := NewEngine(idx, 0)

	results, err := engine.Recommend(context.Background(), queryVec, Options{
		ExcludeTrackID: "self",
		FinalCount:     3,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	for _, r := range results {
		assert.NotEqual(t, "self", r.TrackID)
	}
	assert.Equal(t, "a", results[0].TrackID)
}

func TestEngine_Recommend_NegativeSimilarityClamped(t *testing.T) {
	idx := index.NewFlat(3)
	addTrack(t, idx, "opposite", -0.5, 1)

	engine := NewEngine(idx, 0)

	results, err := engine.Recommend(context.Background(), queryVec, Options{FinalCount: 3})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, 0.0, results[0].Similarity)
}

func TestEngine_Recommend_SmallIndexReturnsAvailable(t *testing.T) {
	idx := index.NewFlat(3)
	addTrack(t, idx, "only", 0.9, 1)

	engine := NewEngine(idx, 0)

	results, err := engine.Recommend(context.Background(), queryVec, Options{FinalCount: 3})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestEngine_Recommend_Deterministic(t *testing.T) {
	idx := index.NewFlat(3)
	addTrack(t, idx, "a", 0.91, 500)
	addTrack(t, idx, "b", 0.90, 10)
	addTrack(t, idx, "c", 0.895, 10)
	addTrack(t, idx, "d", 0.70, 1)

	engine := NewEngine(idx, 0.02)

	first, err := engine.Recommend(context.Background(), queryVec, Options{FinalCount: 4})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := engine.Recommend(context.Background(), queryVec, Options{FinalCount: 4})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

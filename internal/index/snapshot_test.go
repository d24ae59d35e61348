package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tunescout/internal/domain/entity"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.gob")

	src := NewFlat(4)
	require.NoError(t, src.Upsert("a", unitVec(t, 1, 0, 0, 0), entity.Track{ID: "a", Title: "Alpha", PopularityRank: 3}))
	require.NoError(t, src.Upsert("b", unitVec(t, 0, 1, 0, 0), entity.Track{ID: "b", Title: "Beta", PopularityRank: 1}))

	require.NoError(t, src.SaveSnapshot(path))

	dst := NewFlat(4)
	require.NoError(t, dst.LoadSnapshot(path))

	assert.Equal(t, 2, dst.Count())
	entry, err := dst.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", entry.Track.Title)
	assert.Equal(t, 3, entry.Track.PopularityRank)

	got, err := dst.QueryKNN(unitVec(t, 0, 1, 0, 0), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}

func TestSnapshot_PreservesAllFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.gob")

	tracks := []entity.Track{
		{ID: "3135556", Title: "Harder Better Faster Stronger", Artist: "Daft Punk", PopularityRank: 1, PreviewURL: "https://cdn.example/3135556.mp3", CoverURL: "https://cdn.example/3135556.jpg"},
		{ID: "916424", Title: "One More Time", Artist: "Daft Punk", PopularityRank: 2, PreviewURL: "https://cdn.example/916424.mp3"},
	}
	embeddings := []entity.Embedding{
		unitVec(t, 1, 2, 3, 4),
		unitVec(t, 4, 3, 2, 1),
	}

	src := NewFlat(4)
	for i, tr := range tracks {
		require.NoError(t, src.Upsert(tr.ID, embeddings[i], tr))
	}
	require.NoError(t, src.SaveSnapshot(path))

	dst := NewFlat(4)
	require.NoError(t, dst.LoadSnapshot(path))

	for i, tr := range tracks {
		entry, err := dst.Get(tr.ID)
		require.NoError(t, err)
		if diff := cmp.Diff(tr, entry.Track); diff != "" {
			t.Errorf("track %s mismatch (-want +got):\n%s", tr.ID, diff)
		}
		if diff := cmp.Diff(embeddings[i], entry.Embedding); diff != "" {
			t.Errorf("embedding %s mismatch (-want +got):\n%s", tr.ID, diff)
		}
	}
}

func TestSnapshot_LoadReplacesContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.gob")

	src := NewFlat(4)
	require.NoError(t, src.Upsert("a", unitVec(t, 1, 0, 0, 0), testTrack("a")))
	require.NoError(t, src.SaveSnapshot(path))

	dst := NewFlat(4)
	require.NoError(t, dst.Upsert("stale", unitVec(t, 0, 0, 1, 0), testTrack("stale")))
	require.NoError(t, dst.LoadSnapshot(path))

	assert.True(t, dst.Exists("a"))
	assert.False(t, dst.Exists("stale"))
}

func TestSnapshot_LoadDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.gob")

	src := NewFlat(4)
	require.NoError(t, src.Upsert("a", unitVec(t, 1, 0, 0, 0), testTrack("a")))
	require.NoError(t, src.SaveSnapshot(path))

	dst := NewFlat(8)
	err := dst.LoadSnapshot(path)
	assert.ErrorIs(t, err, entity.ErrIndexCorruption)
}

func TestSnapshot_LoadGarbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.gob")
	require.NoError(t, os.WriteFile(path, []byte("this is not a gob stream"), 0o644))

	f := NewFlat(4)
	f2 := NewFlat(4)
	require.NoError(t, f2.Upsert("keep", unitVec(t, 1, 0, 0, 0), testTrack("keep")))

	err := f.LoadSnapshot(path)
	assert.ErrorIs(t, err, entity.ErrIndexCorruption)

	// 破損スナップショットの読み込みは既存の内容に触れない
	err = f2.LoadSnapshot(path)
	assert.ErrorIs(t, err, entity.ErrIndexCorruption)
	assert.Equal(t, 1, f2.Count())
}

func TestSnapshot_LoadMissingFile(t *testing.T) {
	f := NewFlat(4)
	err := f.LoadSnapshot(filepath.Join(t.TempDir(), "missing.gob"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, entity.ErrIndexCorruption)
}

func TestSnapshot_NoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.gob")

	f := NewFlat(4)
	require.NoError(t, f.Upsert("a", unitVec(t, 1, 0, 0, 0), testTrack("a")))
	require.NoError(t, f.SaveSnapshot(path))
	require.NoError(t, f.SaveSnapshot(path))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "index.gob", files[0].Name())
}

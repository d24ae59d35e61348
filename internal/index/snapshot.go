package index

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tunescout/internal/domain/entity"
)

// snapshotVersion guards against loading snapshots written by an
// incompatible layout.
const snapshotVersion = 1

type snapshotFile struct {
	Version int
	Dim     int
	Entries map[string]snapshotEntry
}

type snapshotEntry struct {
	Track     entity.Track
	Embedding entity.Embedding
	UpdatedAt time.Time
}

// SaveSnapshot writes the full index state to path.
//
// The snapshot is written to a temp file in the same directory and renamed
// into place, so a crash mid-write never leaves a truncated snapshot where
// the loader would find it.
func (f *Flat) SaveSnapshot(path string) error {
	f.mu.RLock()
	snap := snapshotFile{
		Version: snapshotVersion,
		Dim:     f.dim,
		Entries: make(map[string]snapshotEntry, len(f.entries)),
	}
	for id, e := range f.entries {
		snap.Entries[id] = snapshotEntry{
			Track:     e.Track,
			Embedding: e.Embedding,
			UpdatedAt: e.UpdatedAt,
		}
	}
	f.mu.RUnlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := gob.NewEncoder(tmp).Encode(&snap); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close snapshot temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot replaces the index contents with the snapshot at path.
//
// Every loaded embedding is re-checked against the dimension and unit-norm
// invariants; any violation aborts the load with ErrIndexCorruption and
// leaves the current contents untouched.
func (f *Flat) LoadSnapshot(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer func() { _ = file.Close() }()

	var snap snapshotFile
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return fmt.Errorf("%w: decode snapshot: %v", entity.ErrIndexCorruption, err)
	}

	if snap.Version != snapshotVersion {
		return fmt.Errorf("%w: snapshot version %d, want %d", entity.ErrIndexCorruption, snap.Version, snapshotVersion)
	}
	if snap.Dim != f.dim {
		return fmt.Errorf("%w: snapshot dimension %d, index dimension %d", entity.ErrIndexCorruption, snap.Dim, f.dim)
	}

	entries := make(map[string]*Entry, len(snap.Entries))
	for id, se := range snap.Entries {
		if se.Embedding.Dim() != f.dim {
			return fmt.Errorf("%w: entry %s dimension %d", entity.ErrIndexCorruption, id, se.Embedding.Dim())
		}
		if !se.Embedding.IsUnit() {
			return fmt.Errorf("%w: entry %s norm %.6f", entity.ErrIndexCorruption, id, se.Embedding.Norm())
		}
		entries[id] = &Entry{
			Track:     se.Track,
			Embedding: se.Embedding,
			UpdatedAt: se.UpdatedAt,
		}
	}

	f.mu.Lock()
	f.entries = entries
	f.mu.Unlock()
	return nil
}

// Package index implements the in-memory vector index over track embeddings.
//
// The index is an exact flat index: queries scan every entry and compute a
// dot product. At the catalog sizes this service targets (well under 10^5
// entries of dimension ~512) an exact scan answers in single-digit
// milliseconds and never returns approximate results, so no ANN structure
// is used.
package index

import (
	"container/heap"
	"fmt"
	"sort"
	"sync"
	"time"

	"tunescout/internal/domain/entity"
)

// Entry is one indexed track: a metadata snapshot plus its unit-normalized
// embedding. Entries are immutable once stored; Upsert swaps the whole entry
// under the write lock, so readers never observe metadata and embedding from
// different versions.
type Entry struct {
	Track     entity.Track
	Embedding entity.Embedding
	UpdatedAt time.Time
}

// Neighbor is one k-NN result.
type Neighbor struct {
	ID         string
	Similarity float64 // raw dot product, may be negative
	Entry      *Entry
}

// Flat is the exact in-memory index. Safe for concurrent use.
type Flat struct {
	mu      sync.RWMutex
	dim     int
	entries map[string]*Entry
}

// NewFlat creates an empty index for embeddings of the given dimension.
func NewFlat(dim int) *Flat {
	return &Flat{
		dim:     dim,
		entries: make(map[string]*Entry),
	}
}

// Dim returns the embedding dimension the index accepts.
func (f *Flat) Dim() int { return f.dim }

// Upsert stores or replaces the entry for a track ID.
//
// The embedding must match the index dimension and be unit-normalized;
// violations are rejected before anything is stored, so the index never
// holds an invalid vector. The stored embedding is a private copy.
func (f *Flat) Upsert(id string, emb entity.Embedding, track entity.Track) error {
	if id == "" {
		return &entity.ValidationError{Field: "id", Message: "track id is required"}
	}
	if emb.Dim() != f.dim {
		return fmt.Errorf("%w: got %d, index dimension %d", entity.ErrDimensionMismatch, emb.Dim(), f.dim)
	}
	if !emb.IsUnit() {
		return fmt.Errorf("%w: norm %.6f outside unit tolerance", entity.ErrInvalidEmbedding, emb.Norm())
	}

	entry := &Entry{
		Track:     track,
		Embedding: emb.Clone(),
		UpdatedAt: time.Now(),
	}

	f.mu.Lock()
	f.entries[id] = entry
	f.mu.Unlock()
	return nil
}

// Exists reports whether a track ID is indexed.
func (f *Flat) Exists(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.entries[id]
	return ok
}

// Get returns the entry for a track ID, or ErrTrackNotFound.
func (f *Flat) Get(id string) (*Entry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.entries[id]
	if !ok {
		return nil, entity.ErrTrackNotFound
	}
	return entry, nil
}

// Count returns the number of indexed tracks.
func (f *Flat) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// Reset drops every entry.
func (f *Flat) Reset() {
	f.mu.Lock()
	f.entries = make(map[string]*Entry)
	f.mu.Unlock()
}

// QueryKNN returns the k entries most similar to the query embedding,
// ordered by descending similarity with ties broken by ascending track ID.
//
// The query must be unit-normalized like the stored vectors, so the dot
// product equals the cosine similarity and no per-entry normalization
// happens during the scan. When the index holds fewer than k entries all
// of them are returned.
func (f *Flat) QueryKNN(q entity.Embedding, k int) ([]Neighbor, error) {
	if q.Dim() != f.dim {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d", entity.ErrDimensionMismatch, q.Dim(), f.dim)
	}
	if !q.IsUnit() {
		return nil, fmt.Errorf("%w: query norm %.6f outside unit tolerance", entity.ErrInvalidEmbedding, q.Norm())
	}
	if k <= 0 {
		return nil, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	// Bounded min-heap: the root is the current worst result, replaced
	// whenever a better candidate appears.
	h := make(neighborHeap, 0, k)
	heap.Init(&h)

	for id, entry := range f.entries {
		n := Neighbor{ID: id, Similarity: q.Dot(entry.Embedding), Entry: entry}
		if len(h) < k {
			heap.Push(&h, n)
			continue
		}
		if worseThan(h[0], n) {
			h[0] = n
			heap.Fix(&h, 0)
		}
	}

	out := make([]Neighbor, len(h))
	copy(out, h)
	sort.Slice(out, func(i, j int) bool {
		return worseThan(out[j], out[i])
	})
	return out, nil
}

// worseThan reports whether a ranks strictly below b: lower similarity, or
// equal similarity and higher track ID.
func worseThan(a, b Neighbor) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity < b.Similarity
	}
	return a.ID > b.ID
}

type neighborHeap []Neighbor

func (h neighborHeap) Len() int            { return len(h) }
func (h neighborHeap) Less(i, j int) bool  { return worseThan(h[i], h[j]) }
func (h neighborHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *neighborHeap) Push(x interface{}) { *h = append(*h, x.(Neighbor)) }
func (h *neighborHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

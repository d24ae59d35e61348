package entity

import "time"

// Track is a catalog track as exposed by the external music catalog.
//
// PopularityRank is the track's chart position: 1 is the most popular track,
// larger values are less popular. Every ranking decision in the system uses
// this single definition; the raw catalog "rank" score (higher = better) is
// converted to a chart position at acquisition time and never leaks past the
// catalog client.
type Track struct {
	ID             string
	Title          string
	Artist         string
	PopularityRank int
	PreviewURL     string // empty when the catalog has no preview clip
	CoverURL       string // empty when the catalog has no cover image
}

// HasPreview reports whether the catalog exposes a preview clip for the track.
func (t *Track) HasPreview() bool {
	return t.PreviewURL != ""
}

// Validate checks that the track carries the fields the index depends on.
func (t *Track) Validate() error {
	if t.ID == "" {
		return &ValidationError{Field: "id", Message: "track id is required"}
	}
	if t.Title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if t.PopularityRank < 0 {
		return &ValidationError{Field: "popularity_rank", Message: "popularity rank cannot be negative"}
	}
	return nil
}

// SimilarityResult is one entry of a ranked recommendation list.
// Similarity is normalized to [0,1] for display; negative cosine values are
// clamped to 0 before they reach this struct.
type SimilarityResult struct {
	TrackID        string
	Title          string
	Artist         string
	Similarity     float64
	PopularityRank int
	Position       int // final 1-based rank position after reranking
	PreviewURL     string
	CoverURL       string
}

// IngestionStats summarizes one ingestion run.
type IngestionStats struct {
	Target                int
	Succeeded             int64
	SkippedAlreadyIndexed int64
	FailedPermanent       int64
	TransientRetries      int64
	Duration              time.Duration
}

// Package embed turns raw preview audio into unit-normalized embeddings.
// Every vector that enters the index passes through the same contract, so
// ingestion-time and query-time embeddings are always comparable.
package embed

import (
	"context"
	"fmt"
	"time"

	"tunescout/internal/audio"
	"tunescout/internal/domain/entity"
)

// Embedder computes a raw embedding for a fixed-length sample window.
// The implementation must be deterministic: identical samples produce
// identical vectors.
type Embedder interface {
	Embed(ctx context.Context, samples []float32, sampleRate int) (entity.Embedding, error)
	Ready(ctx context.Context) error
}

// Config holds the preprocessing parameters shared by all embeddings.
type Config struct {
	// SampleRate is the model input rate in Hz.
	SampleRate int

	// Window is the fixed clip length the model expects. Shorter clips are
	// zero-padded, longer ones truncated.
	Window time.Duration

	// Dim is the expected embedding dimension.
	Dim int
}

// DefaultConfig returns the preprocessing defaults.
func DefaultConfig() Config {
	return Config{
		SampleRate: 48000,
		Window:     30 * time.Second,
		Dim:        512,
	}
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive, got %v", c.Window)
	}
	if c.Dim <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", c.Dim)
	}
	return nil
}

// Contract applies the full preprocessing pipeline and validates the model
// output. Constructed once at startup and shared by ingestion and queries.
type Contract struct {
	embedder Embedder
	config   Config
}

// NewContract creates the embedding contract.
func NewContract(embedder Embedder, config Config) (*Contract, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embed config: %w", err)
	}
	return &Contract{embedder: embedder, config: config}, nil
}

// Dim returns the embedding dimension this contract produces.
func (c *Contract) Dim() int {
	return c.config.Dim
}

// Ready reports whether the inference backend can serve requests.
func (c *Contract) Ready(ctx context.Context) error {
	return c.embedder.Ready(ctx)
}

// FromWAV decodes a WAV clip and produces its unit-normalized embedding.
//
// Pipeline: decode to mono → resample to the model rate → pad or truncate
// to the fixed window → peak-normalize → model → validate dimension →
// L2-normalize.
func (c *Contract) FromWAV(ctx context.Context, wav []byte) (entity.Embedding, error) {
	clip, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("decode preview audio: %w", err)
	}

	samples := audio.Resample(clip.Samples, clip.SampleRate, c.config.SampleRate)
	windowSamples := int(c.config.Window.Seconds() * float64(c.config.SampleRate))
	samples = audio.PadOrTruncate(samples, windowSamples)
	samples = audio.PeakNormalize(samples)

	return c.FromSamples(ctx, samples)
}

// FromSamples embeds already-preprocessed samples at the model rate.
func (c *Contract) FromSamples(ctx context.Context, samples []float32) (entity.Embedding, error) {
	raw, err := c.embedder.Embed(ctx, samples, c.config.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("embed samples: %w", err)
	}

	if raw.Dim() != c.config.Dim {
		return nil, fmt.Errorf("%w: model returned %d dimensions, expected %d",
			entity.ErrDimensionMismatch, raw.Dim(), c.config.Dim)
	}

	normalized, err := raw.Normalized()
	if err != nil {
		return nil, fmt.Errorf("normalize embedding: %w", err)
	}
	return normalized, nil
}

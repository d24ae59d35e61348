// Package embedder provides the client for the audio embedding inference
// service. The model runs out of process behind an HTTP endpoint; this
// client sends fixed-length sample windows and receives raw embedding
// vectors, leaving normalization and validation to the caller.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"tunescout/internal/domain/entity"
	"tunescout/internal/observability/metrics"
	"tunescout/internal/resilience/circuitbreaker"
	"tunescout/internal/resilience/retry"
)

// Config holds the settings for the inference client.
type Config struct {
	// BaseURL is the inference service root.
	BaseURL string

	// Timeout bounds a single inference call. Embedding a 30-second clip
	// is slow, so this is generous.
	Timeout time.Duration

	// RequestsPerSecond throttles calls to the inference service.
	RequestsPerSecond float64

	// Burst is the token bucket burst size.
	Burst int
}

// DefaultConfig returns inference client defaults.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:           baseURL,
		Timeout:           60 * time.Second,
		RequestsPerSecond: 4,
		Burst:             4,
	}
}

// HTTPClient calls the embedding inference service over HTTP.
type HTTPClient struct {
	baseURL        string
	httpClient     *http.Client
	limiter        *rate.Limiter
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// New creates an inference client from the given configuration.
func New(cfg Config) *HTTPClient {
	return &HTTPClient{
		baseURL:        cfg.BaseURL,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		limiter:        rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		circuitBreaker: circuitbreaker.New(circuitbreaker.EmbedAPIConfig()),
		retryConfig:    retry.EmbedAPIConfig(),
	}
}

type embedRequest struct {
	Samples    []float32 `json:"samples"`
	SampleRate int       `json:"sample_rate"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed computes the raw embedding for one fixed-length sample window.
// The returned vector is the model's direct output; callers validate and
// normalize it.
func (c *HTTPClient) Embed(ctx context.Context, samples []float32, sampleRate int) (entity.Embedding, error) {
	var result entity.Embedding

	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("inference rate limit wait: %w", err)
		}

		cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doEmbed(ctx, samples, sampleRate)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("embed api circuit breaker open, request rejected",
					slog.String("state", c.circuitBreaker.State().String()))
				return fmt.Errorf("embed api unavailable: circuit breaker open")
			}
			return err
		}

		result = cbResult.(entity.Embedding)
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}
	return result, nil
}

// doEmbed performs the actual API call without retry or circuit breaker.
func (c *HTTPClient) doEmbed(ctx context.Context, samples []float32, sampleRate int) (entity.Embedding, error) {
	payload, err := json.Marshal(embedRequest{Samples: samples, SampleRate: sampleRate})
	if err != nil {
		return nil, fmt.Errorf("encode embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordEmbedRequest(false, time.Since(start))
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordEmbedRequest(false, time.Since(start))
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: "embed inference"}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordEmbedRequest(false, time.Since(start))
		return nil, fmt.Errorf("read embed response: %w", err)
	}

	var out embedResponse
	if err := json.Unmarshal(body, &out); err != nil {
		metrics.RecordEmbedRequest(false, time.Since(start))
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(out.Embedding) == 0 {
		metrics.RecordEmbedRequest(false, time.Since(start))
		return nil, fmt.Errorf("%w: inference returned empty vector", entity.ErrInvalidEmbedding)
	}

	metrics.RecordEmbedRequest(true, time.Since(start))
	return entity.Embedding(out.Embedding), nil
}

// Ready probes the inference service health endpoint.
func (c *HTTPClient) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("embed health check: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embed service unhealthy: http %d", resp.StatusCode)
	}
	return nil
}

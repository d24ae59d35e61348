package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"tunescout/internal/domain/entity"
	"tunescout/internal/resilience/circuitbreaker"
	"tunescout/internal/resilience/retry"
)

// newTestClient builds a client with fast retry settings for tests.
func newTestClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(1000), 1000),
		circuitBreaker: circuitbreaker.New(circuitbreaker.Config{
			Name:        "embed-api-test",
			MaxRequests: 100,
			Interval:    time.Minute,
			Timeout:     time.Minute,
			MinRequests: 100,
		}),
		retryConfig: retry.Config{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2.0,
		},
	}
}

func TestHTTPClient_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/embed", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 48000, req.SampleRate)
		assert.Len(t, req.Samples, 4)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embedding": [0.6, 0.8, 0.0]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	emb, err := client.Embed(context.Background(), []float32{0.1, 0.2, 0.3, 0.4}, 48000)
	require.NoError(t, err)
	assert.Equal(t, entity.Embedding{0.6, 0.8, 0.0}, emb)
}

func TestHTTPClient_Embed_RetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"embedding": [1.0, 0.0]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	emb, err := client.Embed(context.Background(), []float32{0.5}, 48000)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, entity.Embedding{1.0, 0.0}, emb)
}

func TestHTTPClient_Embed_ExhaustsRetries(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Embed(context.Background(), []float32{0.5}, 48000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrTransientExhausted))
	assert.Equal(t, 3, calls)
}

func TestHTTPClient_Embed_EmptyVectorIsPermanent(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"embedding": []}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Embed(context.Background(), []float32{0.5}, 48000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrInvalidEmbedding))
	// 恒久エラーはリトライしない
	assert.Equal(t, 1, calls)
}

func TestHTTPClient_Ready(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/health", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		assert.NoError(t, client.Ready(context.Background()))
	})

	t.Run("unhealthy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		assert.Error(t, client.Ready(context.Background()))
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("http://inference:9000")

	assert.Equal(t, "http://inference:9000", cfg.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, 4.0, cfg.RequestsPerSecond)
	assert.Equal(t, 4, cfg.Burst)
}

// Package catalog provides the client for the external music catalog API.
// It wraps every call with a shared outbound rate limit budget, retry with
// exponential backoff, and a circuit breaker, so ingestion workers and live
// queries together never exceed the catalog's quota.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"tunescout/internal/domain/entity"
	"tunescout/internal/observability/metrics"
	"tunescout/internal/resilience/circuitbreaker"
	"tunescout/internal/resilience/retry"
	"tunescout/pkg/ratelimit"
)

// pageSize is the catalog's maximum page size for chart and search requests.
const pageSize = 100

// maxPreviewBytes caps preview downloads. Preview clips are ~30s of
// compressed audio, far below this.
const maxPreviewBytes = 20 << 20

// Config holds the settings for the catalog client.
type Config struct {
	// BaseURL is the catalog API root (e.g., "https://api.deezer.com").
	BaseURL string

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// RateLimit and RateWindow define the shared outbound budget.
	RateLimit  int
	RateWindow time.Duration

	// OnRetry, when set, is notified before each retry wait. The ingestion
	// pipeline uses it to count transient retries per run.
	OnRetry func(attempt int, err error)
}

// DefaultConfig returns the catalog client defaults: 50 requests per
// 5-second window, matching the public API quota.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Timeout:    15 * time.Second,
		RateLimit:  50,
		RateWindow: 5 * time.Second,
	}
}

// Client talks to the catalog API. All methods share one rate limiter, so
// concurrent ingestion workers and query-time lookups draw from the same
// budget.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	limiter        ratelimit.Limiter
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	previewRetry   retry.Config
}

// New creates a catalog client from the given configuration.
func New(cfg Config) *Client {
	retryConfig := retry.CatalogAPIConfig()
	retryConfig.OnRetry = cfg.OnRetry
	previewRetry := retry.PreviewDownloadConfig()
	previewRetry.OnRetry = cfg.OnRetry
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter: ratelimit.NewSlidingWindow(cfg.RateLimit, cfg.RateWindow,
			ratelimit.WithMetrics(ratelimit.NewPrometheusMetrics("catalog"))),
		circuitBreaker: circuitbreaker.New(circuitbreaker.CatalogAPIConfig()),
		retryConfig:    retryConfig,
		previewRetry:   previewRetry,
	}
}

// trackPayload is the catalog's track JSON shape.
type trackPayload struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Rank    int    `json:"rank"`
	Preview string `json:"preview"`
	Artist  struct {
		Name string `json:"name"`
	} `json:"artist"`
	Album struct {
		CoverBig    string `json:"cover_big"`
		CoverMedium string `json:"cover_medium"`
	} `json:"album"`
}

// listPayload is the catalog's paginated list shape.
type listPayload struct {
	Data  []trackPayload `json:"data"`
	Total int            `json:"total"`
	Next  string         `json:"next"`
}

// errorPayload is the catalog's in-band error shape, delivered with HTTP 200.
type errorPayload struct {
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Catalog in-band error codes.
const (
	errCodeQuota  = 4
	errCodeNoData = 800
)

// toTrack converts a catalog payload into a domain track. PopularityRank is
// the chart position when known; 0 means unranked (search and metadata
// lookups), which downstream ranking treats as least popular.
func (p *trackPayload) toTrack(chartPosition int) entity.Track {
	cover := p.Album.CoverBig
	if cover == "" {
		cover = p.Album.CoverMedium
	}
	return entity.Track{
		ID:             strconv.FormatInt(p.ID, 10),
		Title:          p.Title,
		Artist:         p.Artist.Name,
		PopularityRank: chartPosition,
		PreviewURL:     p.Preview,
		CoverURL:       cover,
	}
}

// SearchTrack returns the best catalog match for a free-text query.
func (c *Client) SearchTrack(ctx context.Context, query string) (*entity.Track, error) {
	endpoint := fmt.Sprintf("%s/search?q=%s&limit=1", c.baseURL, url.QueryEscape(query))

	var list listPayload
	if err := c.getJSON(ctx, "search", endpoint, &list); err != nil {
		return nil, err
	}
	if len(list.Data) == 0 {
		return nil, fmt.Errorf("%w: no match for query %q", entity.ErrTrackNotFound, query)
	}

	track := list.Data[0].toTrack(0)
	return &track, nil
}

// TrackMetadata returns the catalog metadata for a track ID.
func (c *Client) TrackMetadata(ctx context.Context, id string) (*entity.Track, error) {
	endpoint := fmt.Sprintf("%s/track/%s", c.baseURL, url.PathEscape(id))

	var payload trackPayload
	if err := c.getJSON(ctx, "track", endpoint, &payload); err != nil {
		return nil, err
	}
	if payload.ID == 0 {
		return nil, fmt.Errorf("%w: id %s", entity.ErrTrackNotFound, id)
	}

	track := payload.toTrack(0)
	return &track, nil
}

// TopTracks returns the n most popular chart tracks. The chart is paginated
// at 100 tracks per request; PopularityRank is assigned from the absolute
// chart position, 1 being the most popular.
func (c *Client) TopTracks(ctx context.Context, n int) ([]entity.Track, error) {
	tracks := make([]entity.Track, 0, n)

	for offset := 0; len(tracks) < n; offset += pageSize {
		limit := n - len(tracks)
		if limit > pageSize {
			limit = pageSize
		}
		endpoint := fmt.Sprintf("%s/chart/0/tracks?limit=%d&index=%d", c.baseURL, limit, offset)

		var list listPayload
		if err := c.getJSON(ctx, "chart", endpoint, &list); err != nil {
			return nil, err
		}
		if len(list.Data) == 0 {
			break // chart exhausted
		}

		for i := range list.Data {
			tracks = append(tracks, list.Data[i].toTrack(offset+i+1))
		}
	}

	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: empty chart", entity.ErrTrackNotFound)
	}
	return tracks, nil
}

// FetchPreview downloads the preview clip bytes for a track.
//
// It resolves the preview URL from the track metadata first, so a deleted
// track and a track without a preview produce distinct errors.
func (c *Client) FetchPreview(ctx context.Context, id string) ([]byte, error) {
	track, err := c.TrackMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	if !track.HasPreview() {
		return nil, fmt.Errorf("%w: track %s", entity.ErrNoPreview, id)
	}
	if err := entity.ValidatePreviewURL(track.PreviewURL); err != nil {
		return nil, fmt.Errorf("preview url for track %s: %w", id, err)
	}

	start := time.Now()
	body, err := c.getBytes(ctx, "preview", track.PreviewURL, c.previewRetry)
	if err != nil {
		return nil, err
	}
	metrics.RecordPreviewDownload(time.Since(start), len(body))
	return body, nil
}

// getJSON performs a rate-limited, retried, breaker-protected GET and
// decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, name, endpoint string, out interface{}) error {
	body, err := c.getBytes(ctx, name, endpoint, c.retryConfig)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode catalog response: %w", err)
	}
	return nil
}

func (c *Client) getBytes(ctx context.Context, name, endpoint string, rc retry.Config) ([]byte, error) {
	var body []byte

	retryErr := retry.WithBackoff(ctx, rc, func() error {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
		metrics.RecordCatalogRateLimitWait(time.Since(waitStart))

		cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doGet(ctx, name, endpoint)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("catalog circuit breaker open, request rejected",
					slog.String("endpoint", name),
					slog.String("state", c.circuitBreaker.State().String()))
				return fmt.Errorf("catalog unavailable: circuit breaker open")
			}
			return err
		}

		body = cbResult.([]byte)
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}
	return body, nil
}

// doGet performs the actual HTTP request without retry or circuit breaker.
func (c *Client) doGet(ctx context.Context, name, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build catalog request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordCatalogRequest(name, "error", time.Since(start))
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.RecordCatalogRequest(name, "not_found", time.Since(start))
		return nil, fmt.Errorf("%w: %s", entity.ErrTrackNotFound, endpoint)
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.RecordCatalogRequest(name, "rate_limited", time.Since(start))
		return nil, fmt.Errorf("%w: http 429", entity.ErrRateLimited)
	case resp.StatusCode >= 400:
		metrics.RecordCatalogRequest(name, "failure", time.Since(start))
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: "catalog " + name}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPreviewBytes))
	if err != nil {
		metrics.RecordCatalogRequest(name, "error", time.Since(start))
		return nil, fmt.Errorf("read catalog response: %w", err)
	}

	// In-band errors arrive with HTTP 200 on the JSON endpoints. Checked
	// here, inside the retry loop, so quota errors still back off.
	if name != "preview" {
		if err := inBandError(body); err != nil {
			metrics.RecordCatalogRequest(name, "failure", time.Since(start))
			return nil, err
		}
	}

	metrics.RecordCatalogRequest(name, "success", time.Since(start))
	return body, nil
}

// inBandError maps the catalog's 200-status error payloads onto sentinels.
func inBandError(body []byte) error {
	var apiErr errorPayload
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error == nil {
		return nil
	}
	switch apiErr.Error.Code {
	case errCodeQuota:
		return fmt.Errorf("%w: %s", entity.ErrRateLimited, apiErr.Error.Message)
	case errCodeNoData:
		return fmt.Errorf("%w: %s", entity.ErrTrackNotFound, apiErr.Error.Message)
	default:
		return fmt.Errorf("catalog error %d: %s", apiErr.Error.Code, apiErr.Error.Message)
	}
}

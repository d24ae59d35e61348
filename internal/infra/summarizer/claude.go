// Package summarizer generates short listener-facing blurbs for identified
// tracks. It includes an adapter for Claude (Anthropic) with reliability
// patterns, plus a deterministic fallback when no API key is configured.
// Blurb length is configurable with observability through structured
// logging and Prometheus metrics.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"tunescout/internal/domain/entity"
	"tunescout/internal/resilience/circuitbreaker"
	"tunescout/internal/resilience/retry"
	"tunescout/internal/utils/text"
)

// ClaudeConfig parameterizes the Claude blurb writer.
type ClaudeConfig struct {
	// CharacterLimit caps blurb length. Read from SUMMARIZER_CHAR_LIMIT,
	// valid range 100-5000, default 400.
	CharacterLimit int

	// Language is the blurb language.
	Language string

	// Model is the Claude model identifier.
	Model string

	// MaxTokens bounds the API response.
	MaxTokens int

	// Timeout bounds one API call.
	Timeout time.Duration
}

// LoadClaudeConfig reads the blurb settings from the environment. An
// invalid character limit falls back to the default with a warning so a
// bad manifest never blocks identification.
func LoadClaudeConfig() ClaudeConfig {
	const defaultCharLimit = 400

	charLimit := defaultCharLimit
	if envLimit := os.Getenv("SUMMARIZER_CHAR_LIMIT"); envLimit != "" {
		switch parsed, err := strconv.Atoi(envLimit); {
		case err != nil:
			slog.Warn("invalid SUMMARIZER_CHAR_LIMIT format, using default",
				slog.String("value", envLimit),
				slog.Int("default", defaultCharLimit),
				slog.String("error", err.Error()))
		case ValidateCharacterLimit(parsed) != nil:
			slog.Warn("SUMMARIZER_CHAR_LIMIT out of valid range, using default",
				slog.Int("value", parsed),
				slog.Int("default", defaultCharLimit))
		default:
			charLimit = parsed
		}
	}

	return ClaudeConfig{
		CharacterLimit: charLimit,
		Language:       "japanese",
		Model:          string(anthropic.ModelClaudeSonnet4_5_20250929),
		MaxTokens:      1024,
		Timeout:        60 * time.Second,
	}
}

// Claude writes track blurbs through Anthropic's API, behind the shared
// retry and circuit breaker policies.
type Claude struct {
	client          anthropic.Client
	circuitBreaker  *circuitbreaker.CircuitBreaker
	retryConfig     retry.Config
	config          ClaudeConfig
	metricsRecorder SummaryMetricsRecorder
}

// NewClaude builds a blurb writer with the given API key.
func NewClaude(apiKey string) *Claude {
	config := LoadClaudeConfig()

	slog.Info("initialized Claude summarizer",
		slog.Int("character_limit", config.CharacterLimit),
		slog.String("language", config.Language),
		slog.String("model", config.Model))

	return &Claude{
		client:          anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker:  circuitbreaker.New(circuitbreaker.SummaryAPIConfig()),
		retryConfig:     retry.DefaultConfig(),
		config:          config,
		metricsRecorder: NewPrometheusSummaryMetrics(),
	}
}

// Describe generates a short blurb about the identified track and why the
// recommended tracks pair with it.
func (c *Claude) Describe(ctx context.Context, track entity.Track, similar []entity.SimilarityResult) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var result string

	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doDescribe(ctx, track, similar)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("claude api circuit breaker open, request rejected",
					slog.String("service", "summary-api"),
					slog.String("state", c.circuitBreaker.State().String()))
				return fmt.Errorf("claude api unavailable: circuit breaker open")
			}
			return err
		}

		result = cbResult.(string)
		return nil
	})
	if retryErr != nil {
		return "", fmt.Errorf("claude describe failed after retries: %w", retryErr)
	}

	return result, nil
}

// buildPrompt constructs the blurb prompt from the track and its
// recommendations, instructing the AI to stay within the character limit.
func (c *Claude) buildPrompt(track entity.Track, similar []entity.SimilarityResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "次の楽曲とおすすめ曲について、日本語で%d文字以内の紹介文を書いてください。\n",
		c.config.CharacterLimit)
	fmt.Fprintf(&sb, "楽曲: %s / %s\n", track.Title, track.Artist)
	if len(similar) > 0 {
		sb.WriteString("おすすめ曲:\n")
		for _, s := range similar {
			fmt.Fprintf(&sb, "- %s / %s\n", s.Title, s.Artist)
		}
	}
	return sb.String()
}

// doDescribe is one bare API call, no retry or breaker.
func (c *Claude) doDescribe(ctx context.Context, track entity.Track, similar []entity.SimilarityResult) (string, error) {
	requestID := uuid.New().String()

	prompt := c.buildPrompt(track, similar)

	slog.InfoContext(ctx, "starting blurb generation",
		slog.String("request_id", requestID),
		slog.String("track_id", track.ID),
		slog.Int("character_limit", c.config.CharacterLimit))

	start := time.Now()

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
	})

	duration := time.Since(start)

	if err != nil {
		slog.ErrorContext(ctx, "blurb generation failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("claude api error: %w", err)
	}

	if len(message.Content) == 0 {
		slog.ErrorContext(ctx, "claude api returned empty response",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration))
		return "", fmt.Errorf("claude api returned empty response")
	}

	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		slog.ErrorContext(ctx, "claude api returned unexpected response type",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration))
		return "", fmt.Errorf("claude api returned unexpected response type")
	}

	blurb := textBlock.Text
	blurbLength := text.CountRunes(blurb)
	withinLimit := blurbLength <= c.config.CharacterLimit

	slog.InfoContext(ctx, "blurb generation completed",
		slog.String("request_id", requestID),
		slog.Int("blurb_length", blurbLength),
		slog.Int("character_limit", c.config.CharacterLimit),
		slog.Bool("within_limit", withinLimit),
		slog.Duration("duration", duration))

	c.metricsRecorder.RecordLength(blurbLength)
	c.metricsRecorder.RecordDuration(duration)
	c.metricsRecorder.RecordCompliance(withinLimit)

	// 超過分は切り詰めて返す。API 側の指示だけでは上限を守れないことがある
	if !withinLimit {
		slog.WarnContext(ctx, "blurb exceeds character limit, truncating",
			slog.String("request_id", requestID),
			slog.Int("blurb_length", blurbLength),
			slog.Int("limit", c.config.CharacterLimit))
		c.metricsRecorder.RecordLimitExceeded()
		blurb = text.TruncateRunes(blurb, c.config.CharacterLimit)
	}

	return blurb, nil
}

// Package transcriber converts voice clips to text. Transcription is an
// optional identification stage; callers treat any error here as a
// degradation, not a failure.
package transcriber

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"tunescout/internal/observability/metrics"
	"tunescout/internal/resilience/circuitbreaker"
	"tunescout/internal/resilience/retry"
)

// Whisper transcribes audio through the OpenAI speech-to-text API.
// It includes circuit breaker and retry logic for improved reliability.
type Whisper struct {
	client         *openai.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	model          string
}

// NewWhisper creates a transcriber with the given API key.
func NewWhisper(apiKey string) *Whisper {
	return &Whisper{
		client:         openai.NewClient(apiKey),
		circuitBreaker: circuitbreaker.New(circuitbreaker.TranscribeAPIConfig()),
		retryConfig:    retry.TranscribeAPIConfig(),
		model:          openai.Whisper1,
	}
}

// Transcribe converts the WAV clip to text.
// It uses circuit breaker and retry logic for improved reliability.
func (w *Whisper) Transcribe(ctx context.Context, wav []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var result string

	retryErr := retry.WithBackoff(ctx, w.retryConfig, func() error {
		cbResult, err := w.circuitBreaker.Execute(func() (interface{}, error) {
			return w.doTranscribe(ctx, wav)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.Warn("transcribe api circuit breaker open, request rejected",
					slog.String("state", w.circuitBreaker.State().String()))
				return fmt.Errorf("transcribe api unavailable: circuit breaker open")
			}
			return err
		}

		result = cbResult.(string)
		return nil
	})
	if retryErr != nil {
		return "", fmt.Errorf("transcription failed after retries: %w", retryErr)
	}

	return result, nil
}

// doTranscribe performs the actual API call without retry or circuit breaker.
func (w *Whisper) doTranscribe(ctx context.Context, wav []byte) (string, error) {
	start := time.Now()

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: "clip.wav",
		Reader:   bytes.NewReader(wav),
	})

	duration := time.Since(start)

	if err != nil {
		slog.ErrorContext(ctx, "transcription failed",
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("transcribe api error: %w", err)
	}

	metrics.RecordTranscription(duration)

	slog.InfoContext(ctx, "transcription completed",
		slog.Int("text_length", len(resp.Text)),
		slog.Duration("duration", duration))

	return resp.Text, nil
}

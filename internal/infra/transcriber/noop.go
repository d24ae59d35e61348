package transcriber

import (
	"context"
)

// NoOp is a transcriber that returns empty text. It is used when no
// speech-to-text API key is configured; identification then relies on
// the audio embedding alone.
type NoOp struct{}

// NewNoOp creates a new NoOp transcriber.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// Transcribe returns an empty transcript.
func (n *NoOp) Transcribe(_ context.Context, _ []byte) (string, error) {
	return "", nil
}

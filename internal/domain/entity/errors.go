package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrTrackNotFound indicates that no catalog track matched the lookup
	ErrTrackNotFound = errors.New("track not found")

	// ErrNoPreview indicates the track exists but carries no preview audio
	ErrNoPreview = errors.New("no preview available")

	// ErrRateLimited indicates the catalog asked the caller to back off
	ErrRateLimited = errors.New("rate limited")

	// ErrTransientExhausted indicates a retryable failure that used up its
	// retry budget and is now treated as permanent for the current item
	ErrTransientExhausted = errors.New("transient failures exhausted retries")

	// ErrInvalidEmbedding indicates a malformed model output (NaN, zero norm)
	ErrInvalidEmbedding = errors.New("invalid embedding")

	// ErrDimensionMismatch indicates a vector of the wrong dimension
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrIndexCorruption indicates a stored entry failed invariant checks on read
	ErrIndexCorruption = errors.New("index entry corrupted")

	// ErrIdentificationFailed indicates the mandatory embedding stage of a
	// voice identification request failed
	ErrIdentificationFailed = errors.New("identification failed")

	// ErrTimeout indicates an operation exceeded its deadline
	ErrTimeout = errors.New("operation timed out")
)

// IsPermanent reports whether an error is terminal for a single ingestion
// item. Permanent failures are recorded in the checkpoint and never retried
// on resume.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrTrackNotFound) ||
		errors.Is(err, ErrNoPreview) ||
		errors.Is(err, ErrTransientExhausted) ||
		errors.Is(err, ErrInvalidEmbedding) ||
		errors.Is(err, ErrDimensionMismatch)
}

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

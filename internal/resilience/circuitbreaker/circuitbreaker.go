// Package circuitbreaker shields the service from dead dependencies. When
// the catalog or an inference backend starts failing, the breaker opens and
// ingest workers fail fast instead of queueing against a corpse. Built on
// github.com/sony/gobreaker.
package circuitbreaker

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Config shapes one breaker.
type Config struct {
	Name string

	// MaxRequests bounds the probe requests allowed through in half-open.
	MaxRequests uint32

	// Interval clears the closed-state counts periodically so old failures
	// do not haunt the ratio.
	Interval time.Duration

	// Timeout is how long an open breaker stays open before probing.
	Timeout time.Duration

	// FailureThreshold is the failure ratio that trips the breaker once
	// MinRequests have been observed.
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultConfig fits most call patterns in this service.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// SummaryAPIConfig protects blurb generation calls to Claude.
func SummaryAPIConfig() Config {
	return DefaultConfig("summary-api")
}

// TranscribeAPIConfig protects speech-to-text calls.
func TranscribeAPIConfig() Config {
	return DefaultConfig("transcribe-api")
}

// CatalogAPIConfig protects catalog traffic. The catalog serves many small
// requests per ingestion run, so the breaker needs a larger sample and a
// longer cooldown before tripping.
func CatalogAPIConfig() Config {
	return Config{
		Name:             "catalog-api",
		MaxRequests:      5,
		Interval:         60 * time.Second,
		Timeout:          120 * time.Second,
		FailureThreshold: 0.7,
		MinRequests:      10,
	}
}

// EmbedAPIConfig protects embedding inference. Conservative: a dead
// inference backend stalls the whole pipeline.
func EmbedAPIConfig() Config {
	cfg := DefaultConfig("embed-api")
	cfg.Interval = 60 * time.Second
	cfg.Timeout = 120 * time.Second
	return cfg
}

// CircuitBreaker wraps one gobreaker instance with our trip policy and
// state-change logging.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New builds a breaker from cfg.
func New(cfg Config) *CircuitBreaker {
	return &CircuitBreaker{
		name: cfg.Name,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: cfg.MaxRequests,
			Interval:    cfg.Interval,
			Timeout:     cfg.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < cfg.MinRequests {
					return false
				}
				return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("circuit breaker state changed",
					slog.String("circuit", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()))
			},
		}),
	}
}

// Execute runs fn through the breaker. An open breaker returns
// gobreaker.ErrOpenState without calling fn.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return cb.breaker.Execute(fn)
}

// State reports the current breaker state.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Name returns the breaker's name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsOpen reports whether calls are currently being rejected.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.breaker.State() == gobreaker.StateOpen
}

// Package checkpoint persists ingestion progress. Every processed track is
// recorded with its outcome before the pipeline moves to the next one, so
// an interrupted run can resume without refetching finished work.
package checkpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"tunescout/internal/observability/metrics"
	"tunescout/internal/resilience/circuitbreaker"
	"tunescout/internal/resilience/retry"
)

// Outcome values recorded per processed track.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed_permanent"
)

// Record is one checkpoint row.
type Record struct {
	TrackID   string    `db:"track_id"`
	Outcome   string    `db:"outcome"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Store reads and writes ingestion checkpoints in SQLite.
// Writes go through a circuit breaker and a short retry budget so a
// transient lock does not abort the whole run.
type Store struct {
	db          *sqlx.DB
	breaker     *circuitbreaker.DBCircuitBreaker
	retryConfig retry.Config
}

// NewStore creates a checkpoint store on the given database.
func NewStore(conn *sqlx.DB) *Store {
	return &Store{
		db:          conn,
		breaker:     circuitbreaker.NewDBCircuitBreaker(conn.DB),
		retryConfig: retry.CheckpointDBConfig(),
	}
}

// Mark durably records that a track finished processing with the given
// outcome. It must return before the pipeline starts the next track.
func (s *Store) Mark(ctx context.Context, trackID, outcome string) error {
	start := time.Now()

	err := retry.WithBackoff(ctx, s.retryConfig, func() error {
		_, execErr := s.breaker.ExecContext(ctx, `
INSERT INTO checkpoints (track_id, outcome, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(track_id) DO UPDATE SET outcome = excluded.outcome, updated_at = excluded.updated_at`,
			trackID, outcome)
		return execErr
	})

	metrics.RecordDBQuery("mark_checkpoint", time.Since(start))
	if err != nil {
		return fmt.Errorf("mark checkpoint %s: %w", trackID, err)
	}
	return nil
}

// Processed returns every recorded track ID mapped to its outcome.
func (s *Store) Processed(ctx context.Context) (map[string]string, error) {
	start := time.Now()

	rows, err := s.breaker.QueryContext(ctx, `SELECT track_id, outcome FROM checkpoints`)
	if err != nil {
		metrics.RecordDBQuery("load_checkpoints", time.Since(start))
		return nil, fmt.Errorf("load checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	processed := make(map[string]string)
	for rows.Next() {
		var trackID, outcome string
		if err := rows.Scan(&trackID, &outcome); err != nil {
			metrics.RecordDBQuery("load_checkpoints", time.Since(start))
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		processed[trackID] = outcome
	}
	if err := rows.Err(); err != nil {
		metrics.RecordDBQuery("load_checkpoints", time.Since(start))
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}

	metrics.RecordDBQuery("load_checkpoints", time.Since(start))
	return processed, nil
}

// Count returns the number of recorded checkpoints with the given outcome.
func (s *Store) Count(ctx context.Context, outcome string) (int, error) {
	start := time.Now()

	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM checkpoints WHERE outcome = ?`, outcome)

	metrics.RecordDBQuery("count_checkpoints", time.Since(start))
	if err != nil {
		return 0, fmt.Errorf("count checkpoints: %w", err)
	}
	return count, nil
}

// Clear removes every checkpoint inside a transaction. A reset that fails
// halfway must not leave a partially cleared table behind.
func (s *Store) Clear(ctx context.Context) error {
	start := time.Now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		metrics.RecordDBQuery("clear_checkpoints", time.Since(start))
		return fmt.Errorf("begin clear: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoints`); err != nil {
		_ = tx.Rollback()
		metrics.RecordDBQuery("clear_checkpoints", time.Since(start))
		return fmt.Errorf("clear checkpoints: %w", err)
	}

	if err := tx.Commit(); err != nil {
		metrics.RecordDBQuery("clear_checkpoints", time.Since(start))
		return fmt.Errorf("commit clear: %w", err)
	}

	metrics.RecordDBQuery("clear_checkpoints", time.Since(start))
	return nil
}

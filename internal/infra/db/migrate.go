package db

import (
	"database/sql"
)

// MigrateUp creates the checkpoint schema if it does not exist.
// One row per processed track; outcome records how the track left the
// ingestion pipeline so a resumed run can skip it.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS checkpoints (
    track_id   TEXT PRIMARY KEY,
    outcome    TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`); err != nil {
		return err
	}

	// 再開時の集計用
	if _, err := db.Exec(
		`CREATE INDEX IF NOT EXISTS idx_checkpoints_outcome ON checkpoints(outcome)`); err != nil {
		return err
	}

	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS geofences (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		type       TEXT NOT NULL,
		geometry   JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS transition_events (
		id          UUID PRIMARY KEY,
		device_id   TEXT NOT NULL,
		geofence_id TEXT NOT NULL,
		event_type  TEXT NOT NULL,
		latitude    DOUBLE PRECISION NOT NULL,
		longitude   DOUBLE PRECISION NOT NULL,
		distance    DOUBLE PRECISION,
		timestamp   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS transition_events_device_ts ON transition_events (device_id, timestamp)`,
}

// Migrate creates the tables used by the repositories if they are missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

package schedule

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements create the schedule table and, for local development, the
// upstream tables it reads from. Every statement is idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS addresses (
		id         UUID PRIMARY KEY,
		line       TEXT NOT NULL,
		longitude  DOUBLE PRECISION NOT NULL,
		latitude   DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS contracts (
		id                  UUID PRIMARY KEY,
		address_id          UUID NOT NULL REFERENCES addresses(id),
		day_of_week         TEXT NOT NULL,
		active              BOOLEAN NOT NULL DEFAULT TRUE,
		approved_externally BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE TABLE IF NOT EXISTS drivers (
		id              UUID PRIMARY KEY,
		name            TEXT NOT NULL,
		home_longitude  DOUBLE PRECISION NOT NULL,
		home_latitude   DOUBLE PRECISION NOT NULL,
		capacity        INTEGER NOT NULL CHECK (capacity > 0),
		active          BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS schedule_entries (
		id              UUID PRIMARY KEY,
		scheduled_for   DATE NOT NULL,
		driver_id       TEXT NOT NULL,
		address_id      TEXT NOT NULL,
		route_sequence  INTEGER NOT NULL CHECK (route_sequence > 0),
		collected       BOOLEAN NOT NULL DEFAULT FALSE,
		notes           TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (scheduled_for, driver_id, route_sequence)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_schedulable
		ON contracts (lower(day_of_week)) WHERE active AND approved_externally`,
	`CREATE INDEX IF NOT EXISTS idx_schedule_entries_date
		ON schedule_entries (scheduled_for)`,
}

// EnsureSchema creates the tables used by this package if they are missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ensure schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() //nolint:errcheck // no-op after commit

	for _, stmt := range schemaStatements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ensure schema: commit: %w", err)
	}
	return nil
}

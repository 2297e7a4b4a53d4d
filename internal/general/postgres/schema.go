package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const openSessionIndex = "uq_route_sessions_open_employee"

// Execer is the part of a pool or tx Migrate needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Migrate ensures the tracking tables exist. Every statement is idempotent.
func Migrate(ctx context.Context, db Execer) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS route_sessions (
			id TEXT PRIMARY KEY,
			employee_id TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('active', 'paused', 'completed')),
			start_latitude DOUBLE PRECISION NOT NULL,
			start_longitude DOUBLE PRECISION NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_latitude DOUBLE PRECISION,
			end_longitude DOUBLE PRECISION,
			end_time TIMESTAMPTZ,
			total_distance_km DOUBLE PRECISION NOT NULL DEFAULT 0,
			shipments_completed INTEGER NOT NULL DEFAULT 0,
			shipment_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ` + openSessionIndex + `
			ON route_sessions (employee_id) WHERE status IN ('active', 'paused')`,
		`CREATE TABLE IF NOT EXISTS route_coordinates (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES route_sessions (id) ON DELETE CASCADE,
			employee_id TEXT NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			accuracy DOUBLE PRECISION,
			speed DOUBLE PRECISION,
			recorded_at TIMESTAMPTZ NOT NULL,
			received_at TIMESTAMPTZ NOT NULL,
			cumulative_km DOUBLE PRECISION NOT NULL DEFAULT 0,
			CONSTRAINT uq_route_coordinates_key UNIQUE (session_id, recorded_at, latitude, longitude)
		)`,
		`CREATE TABLE IF NOT EXISTS shipment_events (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES route_sessions (id) ON DELETE CASCADE,
			employee_id TEXT NOT NULL,
			shipment_id TEXT NOT NULL,
			event_type TEXT NOT NULL CHECK (event_type IN ('pickup', 'delivery')),
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_shipment_events_session ON shipment_events (session_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}

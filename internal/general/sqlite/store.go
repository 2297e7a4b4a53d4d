package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"rider-tracking/internal/ports"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database connection and schema lifecycle.
type Store struct {
	db *sql.DB
}

// Open initializes the database connection, creating directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// one writer; transactions queue on the pool instead of failing with SQLITE_BUSY
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping reports whether the database file is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Ports bundles the sqlite repositories into a ports.Store.
func (s *Store) Ports() *ports.Store {
	return &ports.Store{
		UoW:         NewUnitOfWork(s.db),
		Sessions:    NewSessionRepo(),
		Coordinates: NewCoordinateRepo(),
		Events:      NewShipmentEventRepo(),
		Health:      s,
		Close:       func() { _ = s.Close() },
	}
}

// InitSchema ensures the tracking tables exist. Times are stored as unix nanoseconds.
func (s *Store) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS route_sessions (
			id TEXT PRIMARY KEY,
			employee_id TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('active', 'paused', 'completed')),
			start_latitude REAL NOT NULL,
			start_longitude REAL NOT NULL,
			start_time INTEGER NOT NULL,
			end_latitude REAL,
			end_longitude REAL,
			end_time INTEGER,
			total_distance_km REAL NOT NULL DEFAULT 0,
			shipments_completed INTEGER NOT NULL DEFAULT 0,
			shipment_id TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_route_sessions_open_employee
			ON route_sessions(employee_id) WHERE status IN ('active', 'paused');`,
		`CREATE TABLE IF NOT EXISTS route_coordinates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES route_sessions(id) ON DELETE CASCADE,
			employee_id TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			accuracy REAL,
			speed REAL,
			recorded_at INTEGER NOT NULL,
			received_at INTEGER NOT NULL,
			cumulative_km REAL NOT NULL DEFAULT 0,
			UNIQUE (session_id, recorded_at, latitude, longitude)
		);`,
		`CREATE TABLE IF NOT EXISTS shipment_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES route_sessions(id) ON DELETE CASCADE,
			employee_id TEXT NOT NULL,
			shipment_id TEXT NOT NULL,
			event_type TEXT NOT NULL CHECK (event_type IN ('pickup', 'delivery')),
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			recorded_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_shipment_events_session ON shipment_events(session_id);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func toNanos(t time.Time) int64 { return t.UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

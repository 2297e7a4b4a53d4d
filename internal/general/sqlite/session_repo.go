package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"rider-tracking/internal/domain/geo"
	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/ports"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sessionColumns = `id, employee_id, status, start_latitude, start_longitude, start_time,
	end_latitude, end_longitude, end_time, total_distance_km, shipments_completed,
	shipment_id, created_at, updated_at`

// SessionRepo persists route sessions in SQLite.
type SessionRepo struct{}

// NewSessionRepo constructs a new SessionRepo.
func NewSessionRepo() ports.SessionRepository {
	return &SessionRepo{}
}

// Create inserts a new route_sessions row.
func (repo *SessionRepo) Create(ctx context.Context, s *route.Session) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	if err := s.Validate(); err != nil {
		return err
	}

	endLat, endLng, endTime := endColumns(s)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO route_sessions (id, employee_id, status, start_latitude, start_longitude, start_time,
			end_latitude, end_longitude, end_time, total_distance_km, shipments_completed, shipment_id,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.ID,
		s.EmployeeID,
		s.Status.String(),
		s.StartPosition.Latitude,
		s.StartPosition.Longitude,
		toNanos(s.StartTime),
		endLat,
		endLng,
		endTime,
		s.TotalDistanceKM,
		s.ShipmentsCompleted,
		s.ShipmentID,
		toNanos(s.CreatedAt),
		toNanos(s.UpdatedAt),
	)
	if err != nil {
		return mapConstraint(err, s.ID)
	}
	return nil
}

// Get fetches one session by id.
func (repo *SessionRepo) Get(ctx context.Context, id string) (*route.Session, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	s, err := scanSession(tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM route_sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, route.ErrSessionNotFound
	}
	return s, err
}

// GetOpenForEmployee fetches the active or paused session of an employee, if any.
func (repo *SessionRepo) GetOpenForEmployee(ctx context.Context, employeeID string) (*route.Session, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	s, err := scanSession(tx.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM route_sessions
		WHERE employee_id = ? AND status IN ('active', 'paused')
		ORDER BY start_time DESC
		LIMIT 1
	`, employeeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// ListOpen returns every active or paused session, oldest first.
func (repo *SessionRepo) ListOpen(ctx context.Context) ([]*route.Session, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM route_sessions
		WHERE status IN ('active', 'paused')
		ORDER BY start_time
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*route.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Update writes the mutable columns of a session.
func (repo *SessionRepo) Update(ctx context.Context, s *route.Session) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	endLat, endLng, endTime := endColumns(s)
	res, err := tx.ExecContext(ctx, `
		UPDATE route_sessions
		SET status = ?,
		    end_latitude = ?,
		    end_longitude = ?,
		    end_time = ?,
		    total_distance_km = ?,
		    shipments_completed = ?,
		    updated_at = ?
		WHERE id = ?
	`, s.Status.String(), endLat, endLng, endTime, s.TotalDistanceKM, s.ShipmentsCompleted, toNanos(s.UpdatedAt), s.ID)
	if err != nil {
		return mapConstraint(err, s.ID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return route.ErrSessionNotFound
	}
	return nil
}

// mapConstraint translates unique violations into the route error taxonomy.
func mapConstraint(err error, id string) error {
	var sqlErr *msqlite.Error
	if !errors.As(err, &sqlErr) {
		return err
	}
	switch sqlErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		if strings.Contains(sqlErr.Error(), "route_sessions.employee_id") {
			return route.ErrOpenSessionExists
		}
		return fmt.Errorf("%w: session %s already exists", route.ErrConflict, id)
	}
	return err
}

func endColumns(s *route.Session) (sql.NullFloat64, sql.NullFloat64, sql.NullInt64) {
	var lat, lng sql.NullFloat64
	var at sql.NullInt64
	if s.EndPosition != nil {
		lat = sql.NullFloat64{Float64: s.EndPosition.Latitude, Valid: true}
		lng = sql.NullFloat64{Float64: s.EndPosition.Longitude, Valid: true}
	}
	if s.EndTime != nil {
		at = sql.NullInt64{Int64: toNanos(*s.EndTime), Valid: true}
	}
	return lat, lng, at
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*route.Session, error) {
	var (
		s                          route.Session
		status                     string
		startTime, created, update int64
		endLat, endLng             sql.NullFloat64
		endTime                    sql.NullInt64
	)
	err := row.Scan(
		&s.ID,
		&s.EmployeeID,
		&status,
		&s.StartPosition.Latitude,
		&s.StartPosition.Longitude,
		&startTime,
		&endLat,
		&endLng,
		&endTime,
		&s.TotalDistanceKM,
		&s.ShipmentsCompleted,
		&s.ShipmentID,
		&created,
		&update,
	)
	if err != nil {
		return nil, err
	}

	s.Status = route.Status(status)
	s.StartTime = fromNanos(startTime)
	s.CreatedAt = fromNanos(created)
	s.UpdatedAt = fromNanos(update)
	if endLat.Valid && endLng.Valid {
		s.EndPosition = &geo.Point{Latitude: endLat.Float64, Longitude: endLng.Float64}
	}
	if endTime.Valid {
		t := fromNanos(endTime.Int64)
		s.EndTime = &t
	}
	return &s, nil
}

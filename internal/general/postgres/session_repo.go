package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rider-tracking/internal/domain/geo"
	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const sessionColumns = `id, employee_id, status, start_latitude, start_longitude, start_time,
	end_latitude, end_longitude, end_time, total_distance_km, shipments_completed,
	COALESCE(shipment_id, ''), created_at, updated_at`

// SessionRepo persists route session records using pgx and plain SQL.
type SessionRepo struct{}

// NewSessionRepo constructs a new SessionRepo.
func NewSessionRepo() ports.SessionRepository {
	return &SessionRepo{}
}

// Create inserts a new route_sessions row. The partial unique index on open sessions
// turns a concurrent second start into route.ErrOpenSessionExists.
func (repo *SessionRepo) Create(ctx context.Context, s *route.Session) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	if err := s.Validate(); err != nil {
		return err
	}

	endLat, endLng := endColumns(s)
	_, err = tx.Exec(ctx, `
		INSERT INTO route_sessions (id, employee_id, status, start_latitude, start_longitude, start_time,
			end_latitude, end_longitude, end_time, total_distance_km, shipments_completed, shipment_id,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13, $14)
	`,
		s.ID,
		s.EmployeeID,
		s.Status.String(),
		s.StartPosition.Latitude,
		s.StartPosition.Longitude,
		s.StartTime,
		endLat,
		endLng,
		s.EndTime,
		s.TotalDistanceKM,
		s.ShipmentsCompleted,
		s.ShipmentID,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == openSessionIndex {
				return route.ErrOpenSessionExists
			}
			return fmt.Errorf("%w: session %s already exists", route.ErrConflict, s.ID)
		}
		return err
	}
	return nil
}

// Get fetches one session by id.
func (repo *SessionRepo) Get(ctx context.Context, id string) (*route.Session, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	s, err := scanSession(tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM route_sessions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
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

	s, err := scanSession(tx.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM route_sessions
		WHERE employee_id = $1 AND status IN ('active', 'paused')
		ORDER BY start_time DESC
		LIMIT 1
	`, employeeID))
	if errors.Is(err, pgx.ErrNoRows) {
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

	rows, err := tx.Query(ctx, `
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

	endLat, endLng := endColumns(s)
	tag, err := tx.Exec(ctx, `
		UPDATE route_sessions
		SET status = $2,
		    end_latitude = $3,
		    end_longitude = $4,
		    end_time = $5,
		    total_distance_km = $6,
		    shipments_completed = $7,
		    updated_at = $8
		WHERE id = $1
	`, s.ID, s.Status.String(), endLat, endLng, s.EndTime, s.TotalDistanceKM, s.ShipmentsCompleted, s.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return route.ErrOpenSessionExists
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return route.ErrSessionNotFound
	}
	return nil
}

func endColumns(s *route.Session) (*float64, *float64) {
	if s.EndPosition == nil {
		return nil, nil
	}
	lat, lng := s.EndPosition.Latitude, s.EndPosition.Longitude
	return &lat, &lng
}

func scanSession(row pgx.Row) (*route.Session, error) {
	var (
		s              route.Session
		status         string
		endLat, endLng *float64
		endTime        *time.Time
	)
	err := row.Scan(
		&s.ID,
		&s.EmployeeID,
		&status,
		&s.StartPosition.Latitude,
		&s.StartPosition.Longitude,
		&s.StartTime,
		&endLat,
		&endLng,
		&endTime,
		&s.TotalDistanceKM,
		&s.ShipmentsCompleted,
		&s.ShipmentID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Status = route.Status(status)
	s.StartTime = s.StartTime.UTC()
	if endLat != nil && endLng != nil {
		s.EndPosition = &geo.Point{Latitude: *endLat, Longitude: *endLng}
	}
	if endTime != nil {
		t := endTime.UTC()
		s.EndTime = &t
	}
	return &s, nil
}

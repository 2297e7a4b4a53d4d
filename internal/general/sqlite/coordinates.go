package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/ports"
)

const fixColumns = `id, session_id, employee_id, latitude, longitude, accuracy, speed, recorded_at, received_at, cumulative_km`

// CoordinateRepo persists the fix stream of each session in SQLite.
type CoordinateRepo struct{}

// NewCoordinateRepo constructs a new CoordinateRepo.
func NewCoordinateRepo() ports.CoordinateRepository {
	return &CoordinateRepo{}
}

// Insert stores a fix unless one with the same ordering key already exists.
func (repo *CoordinateRepo) Insert(ctx context.Context, fix *route.Fix) (bool, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return false, err
	}

	if err := fix.Validate(); err != nil {
		return false, err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO route_coordinates (session_id, employee_id, latitude, longitude, accuracy, speed,
			recorded_at, received_at, cumulative_km)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, recorded_at, latitude, longitude) DO NOTHING
		RETURNING id
	`,
		fix.SessionID,
		fix.EmployeeID,
		fix.Position.Latitude,
		fix.Position.Longitude,
		nullable(fix.Accuracy),
		nullable(fix.Speed),
		toNanos(fix.Timestamp),
		toNanos(fix.ReceivedAt),
		fix.CumulativeKM,
	).Scan(&fix.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Find returns the fix with exactly key.
func (repo *CoordinateRepo) Find(ctx context.Context, sessionID string, key route.FixKey) (*route.Fix, error) {
	return repo.one(ctx, `
		SELECT `+fixColumns+`
		FROM route_coordinates
		WHERE session_id = ? AND recorded_at = ? AND latitude = ? AND longitude = ?
	`, sessionID, toNanos(key.Timestamp), key.Latitude, key.Longitude)
}

// Before returns the last fix ordered strictly before key.
func (repo *CoordinateRepo) Before(ctx context.Context, sessionID string, key route.FixKey) (*route.Fix, error) {
	return repo.one(ctx, `
		SELECT `+fixColumns+`
		FROM route_coordinates
		WHERE session_id = ? AND (recorded_at, latitude, longitude) < (?, ?, ?)
		ORDER BY recorded_at DESC, latitude DESC, longitude DESC
		LIMIT 1
	`, sessionID, toNanos(key.Timestamp), key.Latitude, key.Longitude)
}

// From returns the ordered suffix starting at key.
func (repo *CoordinateRepo) From(ctx context.Context, sessionID string, key route.FixKey) ([]route.Fix, error) {
	return repo.many(ctx, `
		SELECT `+fixColumns+`
		FROM route_coordinates
		WHERE session_id = ? AND (recorded_at, latitude, longitude) >= (?, ?, ?)
		ORDER BY recorded_at, latitude, longitude
	`, sessionID, toNanos(key.Timestamp), key.Latitude, key.Longitude)
}

// Latest returns the last fix of a session.
func (repo *CoordinateRepo) Latest(ctx context.Context, sessionID string) (*route.Fix, error) {
	return repo.one(ctx, `
		SELECT `+fixColumns+`
		FROM route_coordinates
		WHERE session_id = ?
		ORDER BY recorded_at DESC, latitude DESC, longitude DESC
		LIMIT 1
	`, sessionID)
}

// SetCumulative rewrites the running distance of one fix.
func (repo *CoordinateRepo) SetCumulative(ctx context.Context, id int64, km float64) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `UPDATE route_coordinates SET cumulative_km = ? WHERE id = ?`, km, id)
	return err
}

// ListBySession returns the whole ordered fix stream of a session.
func (repo *CoordinateRepo) ListBySession(ctx context.Context, sessionID string) ([]route.Fix, error) {
	return repo.many(ctx, `
		SELECT `+fixColumns+`
		FROM route_coordinates
		WHERE session_id = ?
		ORDER BY recorded_at, latitude, longitude
	`, sessionID)
}

func (repo *CoordinateRepo) one(ctx context.Context, query string, args ...any) (*route.Fix, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	fix, err := scanFix(tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return fix, err
}

func (repo *CoordinateRepo) many(ctx context.Context, query string, args ...any) ([]route.Fix, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []route.Fix
	for rows.Next() {
		fix, err := scanFix(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *fix)
	}
	return out, rows.Err()
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func scanFix(row rowScanner) (*route.Fix, error) {
	var (
		fix                  route.Fix
		accuracy, speed      sql.NullFloat64
		recorded, receivedAt int64
	)
	err := row.Scan(
		&fix.ID,
		&fix.SessionID,
		&fix.EmployeeID,
		&fix.Position.Latitude,
		&fix.Position.Longitude,
		&accuracy,
		&speed,
		&recorded,
		&receivedAt,
		&fix.CumulativeKM,
	)
	if err != nil {
		return nil, err
	}
	if accuracy.Valid {
		fix.Accuracy = &accuracy.Float64
	}
	if speed.Valid {
		fix.Speed = &speed.Float64
	}
	fix.Timestamp = fromNanos(recorded)
	fix.ReceivedAt = fromNanos(receivedAt)
	return &fix, nil
}

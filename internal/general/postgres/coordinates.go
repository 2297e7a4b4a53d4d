package postgres

import (
	"context"
	"errors"

	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/ports"

	"github.com/jackc/pgx/v5"
)

const fixColumns = `id, session_id, employee_id, latitude, longitude, accuracy, speed, recorded_at, received_at, cumulative_km`

// CoordinateRepo persists the fix stream of each session using pgx and plain SQL.
// Ordering always follows (recorded_at, latitude, longitude).
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

	err = tx.QueryRow(ctx, `
		INSERT INTO route_coordinates (session_id, employee_id, latitude, longitude, accuracy, speed,
			recorded_at, received_at, cumulative_km)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id, recorded_at, latitude, longitude) DO NOTHING
		RETURNING id
	`,
		fix.SessionID,
		fix.EmployeeID,
		fix.Position.Latitude,
		fix.Position.Longitude,
		fix.Accuracy,
		fix.Speed,
		fix.Timestamp,
		fix.ReceivedAt,
		fix.CumulativeKM,
	).Scan(&fix.ID)
	if errors.Is(err, pgx.ErrNoRows) {
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
		WHERE session_id = $1 AND recorded_at = $2 AND latitude = $3 AND longitude = $4
	`, sessionID, key.Timestamp, key.Latitude, key.Longitude)
}

// Before returns the last fix ordered strictly before key.
func (repo *CoordinateRepo) Before(ctx context.Context, sessionID string, key route.FixKey) (*route.Fix, error) {
	return repo.one(ctx, `
		SELECT `+fixColumns+`
		FROM route_coordinates
		WHERE session_id = $1 AND (recorded_at, latitude, longitude) < ($2, $3, $4)
		ORDER BY recorded_at DESC, latitude DESC, longitude DESC
		LIMIT 1
	`, sessionID, key.Timestamp, key.Latitude, key.Longitude)
}

// From returns the ordered suffix starting at key.
func (repo *CoordinateRepo) From(ctx context.Context, sessionID string, key route.FixKey) ([]route.Fix, error) {
	return repo.many(ctx, `
		SELECT `+fixColumns+`
		FROM route_coordinates
		WHERE session_id = $1 AND (recorded_at, latitude, longitude) >= ($2, $3, $4)
		ORDER BY recorded_at, latitude, longitude
	`, sessionID, key.Timestamp, key.Latitude, key.Longitude)
}

// Latest returns the last fix of a session.
func (repo *CoordinateRepo) Latest(ctx context.Context, sessionID string) (*route.Fix, error) {
	return repo.one(ctx, `
		SELECT `+fixColumns+`
		FROM route_coordinates
		WHERE session_id = $1
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

	_, err = tx.Exec(ctx, `UPDATE route_coordinates SET cumulative_km = $2 WHERE id = $1`, id, km)
	return err
}

// ListBySession returns the whole ordered fix stream of a session.
func (repo *CoordinateRepo) ListBySession(ctx context.Context, sessionID string) ([]route.Fix, error) {
	return repo.many(ctx, `
		SELECT `+fixColumns+`
		FROM route_coordinates
		WHERE session_id = $1
		ORDER BY recorded_at, latitude, longitude
	`, sessionID)
}

func (repo *CoordinateRepo) one(ctx context.Context, sql string, args ...any) (*route.Fix, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	fix, err := scanFix(tx.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return fix, err
}

func (repo *CoordinateRepo) many(ctx context.Context, sql string, args ...any) ([]route.Fix, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, sql, args...)
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

func scanFix(row pgx.Row) (*route.Fix, error) {
	var fix route.Fix
	err := row.Scan(
		&fix.ID,
		&fix.SessionID,
		&fix.EmployeeID,
		&fix.Position.Latitude,
		&fix.Position.Longitude,
		&fix.Accuracy,
		&fix.Speed,
		&fix.Timestamp,
		&fix.ReceivedAt,
		&fix.CumulativeKM,
	)
	if err != nil {
		return nil, err
	}
	fix.Timestamp = fix.Timestamp.UTC()
	fix.ReceivedAt = fix.ReceivedAt.UTC()
	return &fix, nil
}

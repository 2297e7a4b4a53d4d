package sqlite

import (
	"context"
	"time"

	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/ports"
)

// ShipmentEventRepo persists shipment events in SQLite.
type ShipmentEventRepo struct{}

// NewShipmentEventRepo constructs a new ShipmentEventRepo.
func NewShipmentEventRepo() ports.ShipmentEventRepository {
	return &ShipmentEventRepo{}
}

// Append inserts a new shipment_events row.
func (repo *ShipmentEventRepo) Append(ctx context.Context, event *route.ShipmentEvent) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	if err := event.Validate(); err != nil {
		return err
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO shipment_events (session_id, employee_id, shipment_id, event_type, latitude, longitude,
			recorded_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.SessionID,
		event.EmployeeID,
		event.ShipmentID,
		event.Type.String(),
		event.Position.Latitude,
		event.Position.Longitude,
		toNanos(event.Timestamp),
		toNanos(event.CreatedAt),
	)
	if err != nil {
		return err
	}

	event.ID, err = res.LastInsertId()
	return err
}

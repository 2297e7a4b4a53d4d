package postgres

import (
	"context"

	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/ports"
)

// ShipmentEventRepo persists shipment events using pgx and plain SQL.
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

	// validate event before inserting
	if err := event.Validate(); err != nil {
		return err
	}

	return tx.QueryRow(ctx, `
		INSERT INTO shipment_events (session_id, employee_id, shipment_id, event_type, latitude, longitude, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`,
		event.SessionID,
		event.EmployeeID,
		event.ShipmentID,
		event.Type.String(),
		event.Position.Latitude,
		event.Position.Longitude,
		event.Timestamp,
	).Scan(&event.ID, &event.CreatedAt)
}

package ports

import (
	"context"

	"rider-tracking/internal/domain/route"
)

// UnitOfWork interface is used to manage transactions across multiple repository operations.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SessionRepository persists route sessions (`route_sessions`).
type SessionRepository interface {
	// Create fails with route.ErrOpenSessionExists when the employee already has an open session
	// and with route.ErrConflict when the id is taken.
	Create(ctx context.Context, s *route.Session) error
	// Get fails with route.ErrSessionNotFound.
	Get(ctx context.Context, id string) (*route.Session, error)
	// GetOpenForEmployee returns (nil, nil) when the employee has no active or paused session.
	GetOpenForEmployee(ctx context.Context, employeeID string) (*route.Session, error)
	ListOpen(ctx context.Context) ([]*route.Session, error)
	// Update writes the mutable columns: status, end position/time, distance, shipments.
	Update(ctx context.Context, s *route.Session) error
}

// CoordinateRepository persists the fix stream of each session (`route_coordinates`).
// Every read returns fixes ordered by route.FixKey.
type CoordinateRepository interface {
	// Insert stores fix and sets fix.ID. It returns false without error when a fix with the
	// same session and key already exists.
	Insert(ctx context.Context, fix *route.Fix) (bool, error)
	// Find returns the stored fix with exactly key, or (nil, nil).
	Find(ctx context.Context, sessionID string, key route.FixKey) (*route.Fix, error)
	// Before returns the last fix strictly ordered before key, or (nil, nil).
	Before(ctx context.Context, sessionID string, key route.FixKey) (*route.Fix, error)
	// From returns every fix ordered at or after key.
	From(ctx context.Context, sessionID string, key route.FixKey) ([]route.Fix, error)
	// Latest returns the last fix of the session, or (nil, nil).
	Latest(ctx context.Context, sessionID string) (*route.Fix, error)
	SetCumulative(ctx context.Context, id int64, km float64) error
	ListBySession(ctx context.Context, sessionID string) ([]route.Fix, error)
}

// ShipmentEventRepository persists pickup/delivery events (`shipment_events`).
type ShipmentEventRepository interface {
	Append(ctx context.Context, e *route.ShipmentEvent) error
}

// HealthChecker reports whether the storage engine is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Store bundles one storage engine's implementations.
type Store struct {
	UoW         UnitOfWork
	Sessions    SessionRepository
	Coordinates CoordinateRepository
	Events      ShipmentEventRepository
	Health      HealthChecker
	Close       func()
}

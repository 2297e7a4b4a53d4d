package ports

import (
	"context"
	"time"

	"rider-tracking/internal/domain/route"
)

// CompletionCandidate is raised when a rider returns within the geofence of the session start.
type CompletionCandidate struct {
	SessionID          string
	EmployeeID         string
	DistanceFromStartM float64
	Elapsed            time.Duration
	TotalDistanceKM    float64
	ShipmentsCompleted int
	AutoConfirmAt      *time.Time
}

// Broadcaster fans tracking changes out to live viewers. Implementations never block the caller
// on a slow viewer and never return delivery errors.
type Broadcaster interface {
	BroadcastLocation(ctx context.Context, s *route.Session, fix *route.Fix)
	BroadcastSessionStatus(ctx context.Context, s *route.Session)
	BroadcastCompletionDetected(ctx context.Context, c CompletionCandidate)
	BroadcastCompletionCancelled(ctx context.Context, sessionID, employeeID string)
}

// EventPublisher emits tracking events to the message broker.
type EventPublisher interface {
	PublishSessionStatus(ctx context.Context, s *route.Session) error
	PublishLocation(ctx context.Context, s *route.Session, fix *route.Fix) error
	PublishCompletion(ctx context.Context, stage string, c CompletionCandidate) error
}

// ShipmentStatusNotifier forwards pickup/delivery confirmations to the shipment-status service.
type ShipmentStatusNotifier interface {
	NotifyShipmentEvent(ctx context.Context, e *route.ShipmentEvent) error
}

// PendingStopsSource lists the stops still to be visited by a rider.
type PendingStopsSource interface {
	PendingStops(ctx context.Context, employeeID string) ([]route.Stop, error)
}

// CompletionDetector evaluates fixes against the session geofence.
type CompletionDetector interface {
	Observe(ctx context.Context, s *route.Session, fix *route.Fix)
	Forget(sessionID string)
	// Pending reports whether a candidate (or confirmed state) exists without clearing it.
	Pending(sessionID string) bool
	Cancel(ctx context.Context, sessionID string) bool
}

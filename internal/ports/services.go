package ports

import (
	"context"
	"time"

	"rider-tracking/internal/domain/geo"
	"rider-tracking/internal/domain/route"
)

// ----- DTOs for the Tracking Service -----

// StartSessionInput is the validated input for POST /sessions.
type StartSessionInput struct {
	SessionID       string // optional, client-generated; a uuid is assigned when empty
	EmployeeID      string
	Latitude        float64
	Longitude       float64
	ShipmentID      string
	StartTime       time.Time // optional
	ActorEmployeeID string    // set for riders; restricts the call to their own employee id
}

// StopSessionInput is the validated input for POST /sessions/{session_id}/stop.
type StopSessionInput struct {
	SessionID       string
	Latitude        float64
	Longitude       float64
	EndTime         time.Time // optional
	Reason          string    // manual | geofence | sync
	ActorEmployeeID string
}

// SessionRef identifies a session for read and lifecycle calls.
type SessionRef struct {
	SessionID       string
	ActorEmployeeID string
}

// CoordinateInput is a single fix as submitted by a client.
type CoordinateInput struct {
	SessionID       string
	Latitude        float64
	Longitude       float64
	Accuracy        *float64
	Speed           *float64
	Timestamp       time.Time // optional, defaults to receipt time
	ActorEmployeeID string
}

// CoordinateResult is the per-item outcome of a coordinate write.
type CoordinateResult struct {
	Fix       *route.Fix
	Duplicate bool
	Err       error
}

// ShipmentEventInput is the validated input for POST /shipment-events.
type ShipmentEventInput struct {
	SessionID       string
	ShipmentID      string
	EventType       string
	Latitude        float64
	Longitude       float64
	Timestamp       time.Time // optional
	ActorEmployeeID string
}

// SyncSessionInput is a session captured while the device was offline.
type SyncSessionInput struct {
	ID              string
	EmployeeID      string
	StartLatitude   float64
	StartLongitude  float64
	StartTime       time.Time  // optional
	EndLatitude     *float64   // optional, defaults to the last known position
	EndLongitude    *float64   // optional
	EndTime         *time.Time // optional
	Status          string     // optional
	ShipmentID      string
	ActorEmployeeID string
}

// SyncCoordinatesInput is a batch of fixes captured while the device was offline.
type SyncCoordinatesInput struct {
	SessionID       string
	Coordinates     []CoordinateInput
	ActorEmployeeID string
}

// SessionSummary is returned by GET /sessions/{session_id}/summary.
type SessionSummary struct {
	SessionID          string        `json:"session_id"`
	EmployeeID         string        `json:"employee_id"`
	Status             route.Status  `json:"status"`
	Points             int           `json:"points"`
	Duration           time.Duration `json:"-"`
	DurationSeconds    int64         `json:"duration_seconds"`
	TotalDistanceKM    float64       `json:"total_distance_km"`
	AverageSpeedKMH    float64       `json:"average_speed_kmh"`
	ShipmentsCompleted int           `json:"shipments_completed"`
}

// ActiveSession pairs an open session with its most recent fix (nil before the first fix).
type ActiveSession struct {
	Session *route.Session
	LastFix *route.Fix
}

// DispatchOrder is the suggested visiting order of a rider's pending stops.
type DispatchOrder struct {
	EmployeeID string
	From       geo.Point
	Stops      []route.Stop
}

// ----- Tracking Service Interface -----

// TrackingService exposes the boundary of the route-tracking core.
type TrackingService interface {
	StartSession(ctx context.Context, in StartSessionInput) (*route.Session, error)
	StopSession(ctx context.Context, in StopSessionInput) (*route.Session, error)
	PauseSession(ctx context.Context, ref SessionRef) (*route.Session, error)
	ResumeSession(ctx context.Context, ref SessionRef) (*route.Session, error)
	GetSession(ctx context.Context, ref SessionRef) (*route.Session, error)
	// GetActiveSession returns (nil, nil) when the employee has no open session.
	GetActiveSession(ctx context.Context, employeeID, actorEmployeeID string) (*route.Session, error)
	ListCoordinates(ctx context.Context, ref SessionRef) ([]route.Fix, error)
	Summary(ctx context.Context, ref SessionRef) (SessionSummary, error)

	RecordCoordinate(ctx context.Context, in CoordinateInput) (CoordinateResult, error)
	RecordBatch(ctx context.Context, in []CoordinateInput) []CoordinateResult
	RecordShipmentEvent(ctx context.Context, in ShipmentEventInput) (*route.ShipmentEvent, error)

	SyncSession(ctx context.Context, in SyncSessionInput) (*route.Session, error)
	SyncCoordinates(ctx context.Context, in SyncCoordinatesInput) ([]CoordinateResult, error)

	ConfirmCompletion(ctx context.Context, ref SessionRef) (*route.Session, error)
	CancelCompletion(ctx context.Context, ref SessionRef) error

	ActiveSnapshot(ctx context.Context) ([]ActiveSession, error)
	SuggestDispatchOrder(ctx context.Context, employeeID, actorEmployeeID string) (DispatchOrder, error)
}

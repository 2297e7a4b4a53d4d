package contracts

import "time"

// SessionStatusMessage is published on every session state transition.
// Routing key: "session.status.{status}" on ExchangeTrackingTopic.
type SessionStatusMessage struct {
	SessionID          string    `json:"session_id"`
	EmployeeID         string    `json:"employee_id"`
	Status             string    `json:"status"` // active|paused|completed
	TotalDistanceKM    float64   `json:"total_distance_km"`
	ShipmentsCompleted int       `json:"shipments_completed"`
	Timestamp          time.Time `json:"timestamp"`
	Envelope
}

// RouteCompletionMessage is published when the geofence detector proposes, loses or
// confirms a completion. Routing key: "route.completion.{stage}".
type RouteCompletionMessage struct {
	SessionID          string     `json:"session_id"`
	EmployeeID         string     `json:"employee_id"`
	Stage              string     `json:"stage"`
	DistanceFromStartM float64    `json:"distance_from_start_m,omitempty"`
	ElapsedSeconds     int64      `json:"elapsed_seconds,omitempty"`
	TotalDistanceKM    float64    `json:"total_distance_km,omitempty"`
	ShipmentsCompleted int        `json:"shipments_completed,omitempty"`
	AutoConfirmAt      *time.Time `json:"auto_confirm_at,omitempty"`
	Envelope
}

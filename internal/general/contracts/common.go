package contracts

import (
	"time"

	"rider-tracking/internal/domain/route"
)

// Envelope adds cross-cutting headers all messages may carry.
type Envelope struct {
	CorrelationID string    `json:"correlation_id,omitempty"` // Correlation for tracing across services
	Producer      string    `json:"producer,omitempty"`       // Producer service name, e.g. "tracking-service"
	SentAt        time.Time `json:"sent_at,omitempty"`        // ISO-8601 send time (UTC)
}

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SessionView is the JSON shape of a route session in HTTP responses and live-feed messages.
type SessionView struct {
	SessionID          string     `json:"session_id"`
	EmployeeID         string     `json:"employee_id"`
	Status             string     `json:"status"`
	StartLatitude      float64    `json:"start_latitude"`
	StartLongitude     float64    `json:"start_longitude"`
	StartTime          time.Time  `json:"start_time"`
	EndLatitude        *float64   `json:"end_latitude,omitempty"`
	EndLongitude       *float64   `json:"end_longitude,omitempty"`
	EndTime            *time.Time `json:"end_time,omitempty"`
	TotalDistanceKM    float64    `json:"total_distance_km"`
	ShipmentsCompleted int        `json:"shipments_completed"`
	ShipmentID         string     `json:"shipment_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// FixView is the JSON shape of a stored coordinate.
type FixView struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	EmployeeID   string    `json:"employee_id"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Accuracy     *float64  `json:"accuracy,omitempty"`
	Speed        *float64  `json:"speed,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	ReceivedAt   time.Time `json:"received_at"`
	CumulativeKM float64   `json:"cumulative_km"`
}

// EventView is the JSON shape of a stored shipment event.
type EventView struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	EmployeeID string    `json:"employee_id"`
	ShipmentID string    `json:"shipment_id"`
	EventType  string    `json:"event_type"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Timestamp  time.Time `json:"timestamp"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewSessionView(s *route.Session) SessionView {
	v := SessionView{
		SessionID:          s.ID,
		EmployeeID:         s.EmployeeID,
		Status:             s.Status.String(),
		StartLatitude:      s.StartPosition.Latitude,
		StartLongitude:     s.StartPosition.Longitude,
		StartTime:          s.StartTime,
		EndTime:            s.EndTime,
		TotalDistanceKM:    s.DistanceKM(),
		ShipmentsCompleted: s.ShipmentsCompleted,
		ShipmentID:         s.ShipmentID,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
	if s.EndPosition != nil {
		lat, lng := s.EndPosition.Latitude, s.EndPosition.Longitude
		v.EndLatitude, v.EndLongitude = &lat, &lng
	}
	return v
}

func NewFixView(f *route.Fix) FixView {
	return FixView{
		ID:           f.ID,
		SessionID:    f.SessionID,
		EmployeeID:   f.EmployeeID,
		Latitude:     f.Position.Latitude,
		Longitude:    f.Position.Longitude,
		Accuracy:     f.Accuracy,
		Speed:        f.Speed,
		Timestamp:    f.Timestamp,
		ReceivedAt:   f.ReceivedAt,
		CumulativeKM: f.DistanceKM(),
	}
}

func NewEventView(e *route.ShipmentEvent) EventView {
	return EventView{
		ID:         e.ID,
		SessionID:  e.SessionID,
		EmployeeID: e.EmployeeID,
		ShipmentID: e.ShipmentID,
		EventType:  e.Type.String(),
		Latitude:   e.Position.Latitude,
		Longitude:  e.Position.Longitude,
		Timestamp:  e.Timestamp,
		CreatedAt:  e.CreatedAt,
	}
}

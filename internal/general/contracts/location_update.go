package contracts

import "time"

// LocationUpdateMessage is published for every accepted fix.
// Routing key: "location.update.{employee_id}" on ExchangeTrackingTopic.
type LocationUpdateMessage struct {
	SessionID       string    `json:"session_id"`
	EmployeeID      string    `json:"employee_id"`
	Location        GeoPoint  `json:"location"`
	Accuracy        *float64  `json:"accuracy,omitempty"`
	Speed           *float64  `json:"speed,omitempty"`
	TotalDistanceKM float64   `json:"total_distance_km"`
	Timestamp       time.Time `json:"timestamp"`
	Envelope
}

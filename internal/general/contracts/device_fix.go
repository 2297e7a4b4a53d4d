package contracts

import "time"

// DeviceFixMessage is what rider devices publish on "riders/{employee_id}/location".
// Latitude and longitude are pointers so a missing coordinate is told apart from 0.
type DeviceFixMessage struct {
	SessionID string     `json:"session_id"`
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Accuracy  *float64   `json:"accuracy,omitempty"`
	Speed     *float64   `json:"speed,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

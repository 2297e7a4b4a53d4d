package contracts

import (
	"encoding/json"
	"time"
)

// WSInbound is any client-to-server live feed frame. Clients name the rider "employeeId";
// "employee_id", the spelling used by every outbound frame, is accepted as well.
type WSInbound struct {
	Type       string `json:"type"`
	Token      string `json:"token,omitempty"`
	EmployeeID string `json:"employeeId,omitempty"`
}

func (m *WSInbound) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type       string `json:"type"`
		Token      string `json:"token"`
		EmployeeID string `json:"employeeId"`
		SnakeID    string `json:"employee_id"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.Type, m.Token, m.EmployeeID = wire.Type, wire.Token, wire.EmployeeID
	if m.EmployeeID == "" {
		m.EmployeeID = wire.SnakeID
	}
	return nil
}

// WSActiveSession is one entry of the snapshot sent on connect.
type WSActiveSession struct {
	Session SessionView `json:"session"`
	LastFix *FixView    `json:"last_fix,omitempty"`
}

// WSActiveSessions is sent once after authentication.
type WSActiveSessions struct {
	Type     string            `json:"type"` // "active_sessions"
	Sessions []WSActiveSession `json:"sessions"`
}

// WSLocationUpdate mirrors "location_update" to viewers.
type WSLocationUpdate struct {
	Type            string    `json:"type"` // "location_update"
	SessionID       string    `json:"session_id"`
	EmployeeID      string    `json:"employee_id"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	Accuracy        *float64  `json:"accuracy,omitempty"`
	Speed           *float64  `json:"speed,omitempty"`
	TotalDistanceKM float64   `json:"total_distance_km"`
	Timestamp       time.Time `json:"timestamp"`
}

// WSSessionStatus mirrors "session_status_change" to viewers.
type WSSessionStatus struct {
	Type       string      `json:"type"` // "session_status_change"
	SessionID  string      `json:"session_id"`
	EmployeeID string      `json:"employee_id"`
	Status     string      `json:"status"`
	Session    SessionView `json:"session"`
}

// WSCompletion mirrors "route_completion_detected" and "route_completion_cancelled".
type WSCompletion struct {
	Type               string     `json:"type"`
	SessionID          string     `json:"session_id"`
	EmployeeID         string     `json:"employee_id"`
	DistanceFromStartM float64    `json:"distance_from_start_m,omitempty"`
	ElapsedSeconds     int64      `json:"elapsed_seconds,omitempty"`
	TotalDistanceKM    float64    `json:"total_distance_km,omitempty"`
	ShipmentsCompleted int        `json:"shipments_completed,omitempty"`
	AutoConfirmAt      *time.Time `json:"auto_confirm_at,omitempty"`
}

// WSSubscriptions acknowledges a subscription change.
type WSSubscriptions struct {
	Type      string   `json:"type"` // "subscriptions"
	FollowAll bool     `json:"follow_all"`
	Employees []string `json:"employees,omitempty"`
	Excluded  []string `json:"excluded,omitempty"`
}

// WSError is sent to the offending viewer only.
type WSError struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

// HubEnvelope is what the live feed relays between instances. Payload is a ready-to-send frame.
type HubEnvelope struct {
	Origin     string          `json:"origin"`
	EmployeeID string          `json:"employee_id"`
	Payload    json.RawMessage `json:"payload"`
}

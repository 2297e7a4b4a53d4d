package route

import (
	"fmt"
	"strings"
	"time"

	"rider-tracking/internal/domain/geo"
)

// Session is the domain entity corresponding to the `route_sessions` table.
type Session struct {
	ID                 string
	EmployeeID         string
	Status             Status
	StartPosition      geo.Point
	StartTime          time.Time
	EndPosition        *geo.Point
	EndTime            *time.Time
	TotalDistanceKM    float64
	ShipmentsCompleted int
	ShipmentID         string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewSession constructs an active session. A zero startTime means "now".
func NewSession(id, employeeID string, start geo.Point, startTime time.Time, shipmentID string) (*Session, error) {
	now := time.Now().UTC()
	if startTime.IsZero() {
		startTime = now
	}

	session := &Session{
		ID:            strings.TrimSpace(id),
		EmployeeID:    strings.TrimSpace(employeeID),
		Status:        StatusActive,
		StartPosition: start,
		StartTime:     NormalizeTime(startTime),
		ShipmentID:    strings.TrimSpace(shipmentID),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}
	return session, nil
}

// Validate checks invariants of the Session entity.
func (session *Session) Validate() error {
	if session.ID == "" {
		return Invalid("session_id", "is required")
	}
	if session.EmployeeID == "" {
		return Invalid("employee_id", "is required")
	}
	if !session.Status.Valid() {
		return Invalid("status", "must be one of active, paused, completed")
	}
	if err := session.StartPosition.Validate(); err != nil {
		return Invalid("start_position", err.Error())
	}
	if session.EndPosition != nil {
		if err := session.EndPosition.Validate(); err != nil {
			return Invalid("end_position", err.Error())
		}
	}
	if session.TotalDistanceKM < 0 {
		return Invalid("total_distance_km", "cannot be negative")
	}
	if session.ShipmentsCompleted < 0 {
		return Invalid("shipments_completed", "cannot be negative")
	}
	if session.EndTime != nil && session.EndTime.Before(session.StartTime) {
		return Invalid("end_time", "cannot be before start_time")
	}
	return nil
}

// AcceptsWrites returns ErrSessionCompleted once the session is immutable.
func (session *Session) AcceptsWrites() error {
	if session.Status.Terminal() {
		return ErrSessionCompleted
	}
	return nil
}

// Stop marks the session completed at the given position and time. A zero time means "now".
func (session *Session) Stop(end geo.Point, at time.Time) error {
	if err := session.AcceptsWrites(); err != nil {
		return err
	}
	if err := end.Validate(); err != nil {
		return Invalid("end_position", err.Error())
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	at = NormalizeTime(at)
	if at.Before(session.StartTime) {
		at = session.StartTime
	}

	session.Status = StatusCompleted
	session.EndPosition = &end
	session.EndTime = &at
	session.touch()
	return nil
}

// Pause moves an active session to paused.
func (session *Session) Pause() error {
	if session.Status != StatusActive {
		return fmt.Errorf("%w: only an active session can be paused", ErrInvalidState)
	}
	session.Status = StatusPaused
	session.touch()
	return nil
}

// Resume moves a paused session back to active.
func (session *Session) Resume() error {
	if session.Status != StatusPaused {
		return fmt.Errorf("%w: only a paused session can be resumed", ErrInvalidState)
	}
	session.Status = StatusActive
	session.touch()
	return nil
}

// DistanceKM is the total distance as reported to clients, rounded to 2 decimals.
// TotalDistanceKM itself stays unrounded.
func (session *Session) DistanceKM() float64 {
	return geo.Round2(session.TotalDistanceKM)
}

// SetDistance records a recomputed running total.
func (session *Session) SetDistance(km float64) {
	session.TotalDistanceKM = km
	session.touch()
}

// AddShipment increments the completed shipment counter.
func (session *Session) AddShipment() error {
	if err := session.AcceptsWrites(); err != nil {
		return err
	}
	session.ShipmentsCompleted++
	session.touch()
	return nil
}

// Elapsed returns the session duration as of now, or the final duration once stopped.
func (session *Session) Elapsed(now time.Time) time.Duration {
	if session.EndTime != nil {
		return session.EndTime.Sub(session.StartTime)
	}
	if now.Before(session.StartTime) {
		return 0
	}
	return now.Sub(session.StartTime)
}

func (session *Session) touch() {
	session.UpdatedAt = time.Now().UTC()
}

// NormalizeTime truncates t to microseconds in UTC so it round-trips through every storage engine unchanged.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

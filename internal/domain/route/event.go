package route

import (
	"errors"
	"strings"
	"time"

	"rider-tracking/internal/domain/geo"
)

// EventType distinguishes shipment pickups from deliveries.
type EventType string

const (
	EventPickup   EventType = "pickup"
	EventDelivery EventType = "delivery"
)

var ErrInvalidEventType = errors.New("invalid shipment event type")

// ParseEventType normalizes (lowercases+trims) and validates an event type string.
func ParseEventType(in string) (EventType, error) {
	eventType := EventType(strings.ToLower(strings.TrimSpace(in)))
	if eventType.Valid() {
		return eventType, nil
	}
	return "", ErrInvalidEventType
}

// Valid reports whether the event type is one of the allowed constants.
func (eventType EventType) Valid() bool {
	return eventType == EventPickup || eventType == EventDelivery
}

// String returns the string representation of the EventType.
func (eventType EventType) String() string {
	return string(eventType)
}

// ShipmentEvent is the domain entity corresponding to the `shipment_events` table.
type ShipmentEvent struct {
	ID         int64
	SessionID  string
	EmployeeID string
	ShipmentID string
	Type       EventType
	Position   geo.Point
	Timestamp  time.Time
	CreatedAt  time.Time
}

// NewShipmentEvent constructs a validated event. A zero timestamp means "now".
func NewShipmentEvent(sessionID, shipmentID string, eventType EventType, position geo.Point, timestamp time.Time) (*ShipmentEvent, error) {
	now := time.Now().UTC()
	if timestamp.IsZero() {
		timestamp = now
	}

	event := &ShipmentEvent{
		SessionID:  strings.TrimSpace(sessionID),
		ShipmentID: strings.TrimSpace(shipmentID),
		Type:       eventType,
		Position:   position,
		Timestamp:  NormalizeTime(timestamp),
		CreatedAt:  NormalizeTime(now),
	}
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return event, nil
}

// Validate checks invariants of the ShipmentEvent entity.
func (event *ShipmentEvent) Validate() error {
	if event.SessionID == "" {
		return Invalid("session_id", "is required")
	}
	if event.ShipmentID == "" {
		return Invalid("shipment_id", "is required")
	}
	if !event.Type.Valid() {
		return Invalid("event_type", "must be pickup or delivery")
	}
	if err := event.Position.Validate(); err != nil {
		return Invalid("position", err.Error())
	}
	return nil
}

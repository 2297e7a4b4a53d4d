package contracts

import "time"

// ShipmentEventMessage forwards a pickup or delivery confirmation to the shipment-status service.
// Routing key: "shipment.event.{event_type}" on ExchangeTrackingTopic, consumed from
// QueueShipmentStatusUpdates.
type ShipmentEventMessage struct {
	EventID    int64     `json:"event_id"`
	SessionID  string    `json:"session_id"`
	EmployeeID string    `json:"employee_id"`
	ShipmentID string    `json:"shipment_id"`
	EventType  string    `json:"event_type"` // pickup|delivery
	Location   GeoPoint  `json:"location"`
	Timestamp  time.Time `json:"timestamp"`
	Envelope
}

// TrackingCommand is consumed from QueueTrackingCommands.
// Routing key: "tracking.command.{type}".
type TrackingCommand struct {
	Type      string `json:"type"` // confirm_completion|cancel_completion
	SessionID string `json:"session_id"`
	Envelope
}

// PendingShipment is one entry of GET {base_url}/shipments/pending?employee_id=.
type PendingShipment struct {
	ShipmentID string  `json:"shipment_id"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Address    string  `json:"address,omitempty"`
}

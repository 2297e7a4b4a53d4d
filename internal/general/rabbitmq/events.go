package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/general/contracts"
	"rider-tracking/internal/general/logger"
	"rider-tracking/internal/ports"
)

// MessagePublisher is satisfied by *Client.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, exchange, routingKey string, body []byte) error
}

// TrackingPublisher emits tracking events and shipment confirmations on ExchangeTrackingTopic.
type TrackingPublisher struct {
	pub      MessagePublisher
	producer string
}

var (
	_ ports.EventPublisher         = (*TrackingPublisher)(nil)
	_ ports.ShipmentStatusNotifier = (*TrackingPublisher)(nil)
)

// NewTrackingPublisher constructs a TrackingPublisher.
func NewTrackingPublisher(pub MessagePublisher, producer string) *TrackingPublisher {
	return &TrackingPublisher{pub: pub, producer: producer}
}

func (p *TrackingPublisher) envelope(ctx context.Context) contracts.Envelope {
	return contracts.Envelope{
		CorrelationID: logger.RequestID(ctx),
		Producer:      p.producer,
		SentAt:        time.Now().UTC(),
	}
}

func (p *TrackingPublisher) publish(ctx context.Context, routingKey string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", routingKey, err)
	}
	return p.pub.PublishMessage(ctx, contracts.ExchangeTrackingTopic, routingKey, body)
}

// PublishSessionStatus sends session.status.{status}.
func (p *TrackingPublisher) PublishSessionStatus(ctx context.Context, s *route.Session) error {
	return p.publish(ctx, contracts.RouteSessionStatusPrefix+s.Status.String(), contracts.SessionStatusMessage{
		SessionID:          s.ID,
		EmployeeID:         s.EmployeeID,
		Status:             s.Status.String(),
		TotalDistanceKM:    s.DistanceKM(),
		ShipmentsCompleted: s.ShipmentsCompleted,
		Timestamp:          s.UpdatedAt,
		Envelope:           p.envelope(ctx),
	})
}

// PublishLocation sends location.update.{employee_id}.
func (p *TrackingPublisher) PublishLocation(ctx context.Context, s *route.Session, fix *route.Fix) error {
	return p.publish(ctx, contracts.RouteLocationUpdatePrefix+s.EmployeeID, contracts.LocationUpdateMessage{
		SessionID:       s.ID,
		EmployeeID:      s.EmployeeID,
		Location:        contracts.GeoPoint{Lat: fix.Position.Latitude, Lng: fix.Position.Longitude},
		Accuracy:        fix.Accuracy,
		Speed:           fix.Speed,
		TotalDistanceKM: s.DistanceKM(),
		Timestamp:       fix.Timestamp,
		Envelope:        p.envelope(ctx),
	})
}

// PublishCompletion sends route.completion.{stage}.
func (p *TrackingPublisher) PublishCompletion(ctx context.Context, stage string, c ports.CompletionCandidate) error {
	return p.publish(ctx, contracts.RouteCompletionPrefix+stage, contracts.RouteCompletionMessage{
		SessionID:          c.SessionID,
		EmployeeID:         c.EmployeeID,
		Stage:              stage,
		DistanceFromStartM: c.DistanceFromStartM,
		ElapsedSeconds:     int64(c.Elapsed / time.Second),
		TotalDistanceKM:    c.TotalDistanceKM,
		ShipmentsCompleted: c.ShipmentsCompleted,
		AutoConfirmAt:      c.AutoConfirmAt,
		Envelope:           p.envelope(ctx),
	})
}

// NotifyShipmentEvent forwards a pickup/delivery to the shipment-status service queue.
func (p *TrackingPublisher) NotifyShipmentEvent(ctx context.Context, e *route.ShipmentEvent) error {
	return p.publish(ctx, contracts.RouteShipmentEventPrefix+e.Type.String(), contracts.ShipmentEventMessage{
		EventID:    e.ID,
		SessionID:  e.SessionID,
		EmployeeID: e.EmployeeID,
		ShipmentID: e.ShipmentID,
		EventType:  e.Type.String(),
		Location:   contracts.GeoPoint{Lat: e.Position.Latitude, Lng: e.Position.Longitude},
		Timestamp:  e.Timestamp,
		Envelope:   p.envelope(ctx),
	})
}

// Discard is used when the broker is disabled in config.
type Discard struct{}

func (Discard) PublishSessionStatus(context.Context, *route.Session) error                 { return nil }
func (Discard) PublishLocation(context.Context, *route.Session, *route.Fix) error          { return nil }
func (Discard) PublishCompletion(context.Context, string, ports.CompletionCandidate) error { return nil }
func (Discard) NotifyShipmentEvent(context.Context, *route.ShipmentEvent) error            { return nil }

package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"rider-tracking/internal/domain/geo"
	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/general/contracts"
	"rider-tracking/internal/general/logger"
	"rider-tracking/internal/ports"
)

type published struct {
	exchange, key string
	body          []byte
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (f *fakePublisher) PublishMessage(_ context.Context, exchange, key string, body []byte) error {
	f.msgs = append(f.msgs, published{exchange, key, body})
	return f.err
}

func TestPublishSessionStatusRoutingKey(t *testing.T) {
	fp := &fakePublisher{}
	p := NewTrackingPublisher(fp, "tracking-service")

	s, _ := route.NewSession("s-1", "E1", geo.Point{Latitude: 1, Longitude: 1}, time.Time{}, "")
	ctx := logger.New("test").WithRequestID(context.Background(), "req-9")
	if err := p.PublishSessionStatus(ctx, s); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(fp.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(fp.msgs))
	}
	m := fp.msgs[0]
	if m.exchange != contracts.ExchangeTrackingTopic || m.key != "session.status.active" {
		t.Fatalf("unexpected destination %s/%s", m.exchange, m.key)
	}
	var msg contracts.SessionStatusMessage
	if err := json.Unmarshal(m.body, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.SessionID != "s-1" || msg.CorrelationID != "req-9" || msg.Producer != "tracking-service" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestPublishLocationAndShipment(t *testing.T) {
	fp := &fakePublisher{}
	p := NewTrackingPublisher(fp, "tracking-service")

	s, _ := route.NewSession("s-1", "E7", geo.Point{Latitude: 1, Longitude: 1}, time.Time{}, "")
	fix, _ := route.NewFix("s-1", "E7", geo.Point{Latitude: 1.001, Longitude: 1}, nil, nil, time.Time{}, time.Time{})
	ev, _ := route.NewShipmentEvent("s-1", "ship-1", route.EventDelivery, geo.Point{Latitude: 1, Longitude: 1}, time.Time{})

	if err := p.PublishLocation(context.Background(), s, fix); err != nil {
		t.Fatalf("location: %v", err)
	}
	if err := p.NotifyShipmentEvent(context.Background(), ev); err != nil {
		t.Fatalf("shipment: %v", err)
	}
	if err := p.PublishCompletion(context.Background(), contracts.CompletionDetected, ports.CompletionCandidate{SessionID: "s-1", Elapsed: 90 * time.Second}); err != nil {
		t.Fatalf("completion: %v", err)
	}

	keys := []string{fp.msgs[0].key, fp.msgs[1].key, fp.msgs[2].key}
	want := []string{"location.update.E7", "shipment.event.delivery", "route.completion.detected"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("key %d = %s, want %s", i, keys[i], want[i])
		}
	}

	var completion contracts.RouteCompletionMessage
	_ = json.Unmarshal(fp.msgs[2].body, &completion)
	if completion.ElapsedSeconds != 90 {
		t.Fatalf("elapsed seconds = %d", completion.ElapsedSeconds)
	}
}

func TestPublishErrorsSurface(t *testing.T) {
	boom := errors.New("broker down")
	p := NewTrackingPublisher(&fakePublisher{err: boom}, "tracking-service")
	s, _ := route.NewSession("s-1", "E1", geo.Point{Latitude: 1, Longitude: 1}, time.Time{}, "")
	if err := p.PublishSessionStatus(context.Background(), s); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want broker error", err)
	}
}

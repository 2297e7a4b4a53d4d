package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/general/config"
	"rider-tracking/internal/general/logger"
	"rider-tracking/internal/ports"
)

const filter = "riders/+/location"

func TestDecodeFix(t *testing.T) {
	in, err := DecodeFix(filter, "riders/E1/location",
		[]byte(`{"session_id":"s1","latitude":12.97,"longitude":77.59,"speed":3.5,"timestamp":"2026-01-02T03:04:05Z"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if in.SessionID != "s1" || in.ActorEmployeeID != "E1" {
		t.Fatalf("unexpected ids: %+v", in)
	}
	if in.Latitude != 12.97 || in.Longitude != 77.59 {
		t.Fatalf("unexpected position: %+v", in)
	}
	if in.Speed == nil || *in.Speed != 3.5 || in.Accuracy != nil {
		t.Fatalf("unexpected optional fields: %+v", in)
	}
	if !in.Timestamp.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp: %v", in.Timestamp)
	}
}

func TestDecodeFixZeroCoordinatesAreValid(t *testing.T) {
	in, err := DecodeFix(filter, "riders/E1/location", []byte(`{"session_id":"s1","latitude":0,"longitude":0}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !in.Timestamp.IsZero() {
		t.Fatalf("timestamp should be left for the service to default, got %v", in.Timestamp)
	}
}

func TestDecodeFixRejects(t *testing.T) {
	cases := []struct {
		name    string
		topic   string
		payload string
	}{
		{"bad json", "riders/E1/location", `{`},
		{"missing session", "riders/E1/location", `{"latitude":1,"longitude":2}`},
		{"missing longitude", "riders/E1/location", `{"session_id":"s1","latitude":1}`},
		{"wrong topic", "riders/E1/status", `{"session_id":"s1","latitude":1,"longitude":2}`},
		{"too deep", "riders/E1/x/location", `{"session_id":"s1","latitude":1,"longitude":2}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeFix(filter, tc.topic, []byte(tc.payload)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestDecodeFixValidationErrors(t *testing.T) {
	_, err := DecodeFix(filter, "riders/E1/location", []byte(`{"latitude":1,"longitude":2}`))
	if !errors.Is(err, route.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHandleForwardsToIngest(t *testing.T) {
	var (
		mu  sync.Mutex
		got []ports.CoordinateInput
	)
	s := &Subscriber{
		topic:  filter,
		logger: logger.NewWithWriter("test", discard{}),
		ingest: func(_ context.Context, in ports.CoordinateInput) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, in)
			return nil
		},
	}

	s.handle(context.Background(), "riders/E7/location", []byte(`{"session_id":"s7","latitude":1,"longitude":2}`))
	s.handle(context.Background(), "riders/E7/location", []byte(`not json`))

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].ActorEmployeeID != "E7" {
		t.Fatalf("unexpected ingested fixes: %+v", got)
	}
}

func TestNewSubscriberDisabledWithoutBroker(t *testing.T) {
	cfg := &config.Config{}
	if s := NewSubscriber(cfg, logger.NewWithWriter("test", discard{}), nil); s != nil {
		t.Fatalf("expected nil subscriber without broker url")
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/general/config"
	"rider-tracking/internal/general/contracts"
	"rider-tracking/internal/general/logger"
	"rider-tracking/internal/ports"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout  = 10 * time.Second
	ingestTimeout   = 5 * time.Second
	disconnectQuiet = 250 // ms
)

// Ingest stores one decoded device fix.
type Ingest func(ctx context.Context, in ports.CoordinateInput) error

// Subscriber feeds GPS fixes published by rider devices into the tracking core.
type Subscriber struct {
	opts   *paho.ClientOptions
	topic  string
	logger *logger.Logger
	ingest Ingest
}

// NewSubscriber returns nil when no broker is configured.
func NewSubscriber(cfg *config.Config, log *logger.Logger, ingest Ingest) *Subscriber {
	if cfg.MQTT.BrokerURL == "" {
		return nil
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.MQTT.BrokerURL).
		SetClientID(cfg.MQTT.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOrderMatters(false)

	return &Subscriber{opts: opts, topic: cfg.MQTT.Topic, logger: log, ingest: ingest}
}

// Run connects, subscribes and blocks until ctx is done.
func (s *Subscriber) Run(ctx context.Context) error {
	// The subscription is re-established on every (re)connect.
	s.opts.SetOnConnectHandler(func(c paho.Client) {
		token := c.Subscribe(s.topic, 1, func(_ paho.Client, msg paho.Message) {
			s.handle(ctx, msg.Topic(), msg.Payload())
		})
		if token.WaitTimeout(connectTimeout) && token.Error() != nil {
			s.logger.Error(ctx, "mqtt_subscribe_failed", "Failed to subscribe to device topic", token.Error(),
				map[string]any{"topic": s.topic})
			return
		}
		s.logger.Info(ctx, "mqtt_subscribed", "Subscribed to device fixes", map[string]any{"topic": s.topic})
	})
	s.opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		s.logger.Error(ctx, "mqtt_connection_lost", "MQTT connection lost; reconnecting", err, nil)
	})

	client := paho.NewClient(s.opts)
	token := client.Connect()
	select {
	case <-ctx.Done():
		client.Disconnect(disconnectQuiet)
		return nil
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	<-ctx.Done()
	client.Disconnect(disconnectQuiet)
	s.logger.Info(context.Background(), "mqtt_disconnected", "MQTT subscriber stopped", nil)
	return nil
}

func (s *Subscriber) handle(ctx context.Context, topic string, payload []byte) {
	in, err := DecodeFix(s.topic, topic, payload)
	if err != nil {
		s.logger.Error(ctx, "mqtt_fix_rejected", "Dropping malformed device fix", err,
			map[string]any{"topic": topic, "size": len(payload)})
		return
	}

	ictx, cancel := context.WithTimeout(ctx, ingestTimeout)
	defer cancel()
	if err := s.ingest(ictx, in); err != nil {
		s.logger.Error(ictx, "mqtt_fix_ingest_failed", "Failed to record device fix", err, map[string]any{
			"topic":      topic,
			"session_id": in.SessionID,
		})
	}
}

// DecodeFix turns a device message into a coordinate input. The employee id is taken from the
// topic segment matching the single-level wildcard of filter, and the device may only write to
// sessions of that employee.
func DecodeFix(filter, topic string, payload []byte) (ports.CoordinateInput, error) {
	employeeID, err := employeeFromTopic(filter, topic)
	if err != nil {
		return ports.CoordinateInput{}, err
	}

	var msg contracts.DeviceFixMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return ports.CoordinateInput{}, route.Invalid("payload", "is not valid JSON")
	}
	if strings.TrimSpace(msg.SessionID) == "" {
		return ports.CoordinateInput{}, route.Invalid("session_id", "is required")
	}
	if msg.Latitude == nil || msg.Longitude == nil {
		return ports.CoordinateInput{}, route.Invalid("position", "latitude and longitude are required")
	}

	in := ports.CoordinateInput{
		SessionID:       msg.SessionID,
		Latitude:        *msg.Latitude,
		Longitude:       *msg.Longitude,
		Accuracy:        msg.Accuracy,
		Speed:           msg.Speed,
		ActorEmployeeID: employeeID,
	}
	if msg.Timestamp != nil {
		in.Timestamp = *msg.Timestamp
	}
	return in, nil
}

var errTopicMismatch = errors.New("topic does not match device filter")

func employeeFromTopic(filter, topic string) (string, error) {
	want := strings.Split(filter, "/")
	got := strings.Split(topic, "/")
	if len(want) != len(got) {
		return "", errTopicMismatch
	}

	employeeID := ""
	for i, seg := range want {
		switch seg {
		case "+":
			if employeeID == "" {
				employeeID = got[i]
			}
		default:
			if seg != got[i] {
				return "", errTopicMismatch
			}
		}
	}
	if employeeID == "" {
		return "", errTopicMismatch
	}
	return employeeID, nil
}

package redisrelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"rider-tracking/internal/general/config"
	"rider-tracking/internal/general/contracts"
	"rider-tracking/internal/general/logger"

	"github.com/redis/go-redis/v9"
)

// Connect returns a client for cfg.Redis, or nil when no address is configured.
func Connect(cfg *config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
}

// Relay forwards live-feed frames between instances over one redis pub/sub channel.
// Frames published by this instance are ignored when they come back.
type Relay struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *logger.Logger

	readyOnce sync.Once
	ready     chan struct{}
}

// NewRelay constructs a Relay. origin must be unique per process.
func NewRelay(client *redis.Client, channel, origin string, log *logger.Logger) *Relay {
	return &Relay{
		client:  client,
		channel: channel,
		origin:  origin,
		logger:  log,
		ready:   make(chan struct{}),
	}
}

// Publish sends frame for employeeID to the other instances.
func (r *Relay) Publish(ctx context.Context, employeeID string, frame []byte) error {
	body, err := json.Marshal(contracts.HubEnvelope{Origin: r.origin, EmployeeID: employeeID, Payload: frame})
	if err != nil {
		return fmt.Errorf("marshal hub envelope: %w", err)
	}
	return r.client.Publish(ctx, r.channel, body).Err()
}

// Ready is closed once the subscription is confirmed by redis.
func (r *Relay) Ready() <-chan struct{} {
	return r.ready
}

// Run subscribes and hands every foreign frame to deliver until ctx is done.
func (r *Relay) Run(ctx context.Context, deliver func(employeeID string, frame []byte)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", r.channel, err)
	}
	r.readyOnce.Do(func() { close(r.ready) })
	r.logger.Info(ctx, "hub_relay_subscribed", "Subscribed to live feed relay", map[string]any{"channel": r.channel})

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("redis relay subscription closed")
			}
			var env contracts.HubEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.logger.Error(ctx, "hub_relay_decode_failed", "Dropping malformed relay frame", err,
					map[string]any{"size": len(msg.Payload)})
				continue
			}
			if env.Origin == r.origin || env.EmployeeID == "" {
				continue
			}
			deliver(env.EmployeeID, env.Payload)
		}
	}
}

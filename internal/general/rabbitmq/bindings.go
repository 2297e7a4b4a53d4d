package rabbitmq

import (
	"fmt"

	"rider-tracking/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

// declareTopology (re)declares the tracking exchange, its queues and bindings. Safe on every reconnect.
func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(contracts.ExchangeTrackingTopic, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", contracts.ExchangeTrackingTopic, err)
	}

	queues := []struct {
		name string
		args amqp.Table
	}{
		{contracts.QueueShipmentStatusUpdates, nil},
		{contracts.QueueTrackingCommands, nil},
		// live events are only useful while fresh
		{contracts.QueueTrackingEvents, amqp.Table{"x-message-ttl": int32(60_000), "x-max-length": int32(10_000)}},
	}
	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	bindings := []struct {
		queue      string
		routingKey string
	}{
		{contracts.QueueShipmentStatusUpdates, contracts.RouteShipmentEventPrefix + "*"},
		{contracts.QueueTrackingCommands, contracts.RouteTrackingCommandPrefix + "*"},
		{contracts.QueueTrackingEvents, contracts.RouteSessionStatusPrefix + "*"},
		{contracts.QueueTrackingEvents, contracts.RouteLocationUpdatePrefix + "*"},
		{contracts.QueueTrackingEvents, contracts.RouteCompletionPrefix + "*"},
	}
	for _, b := range bindings {
		if err := ch.QueueBind(b.queue, b.routingKey, contracts.ExchangeTrackingTopic, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, contracts.ExchangeTrackingTopic, err)
		}
	}

	return nil
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/general/contracts"
	"rider-tracking/internal/general/logger"
	"rider-tracking/internal/general/rabbitmq"
	"rider-tracking/internal/ports"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	commandRetryMin = time.Second
	commandRetryMax = 30 * time.Second
)

// QueueConsumer is satisfied by *rabbitmq.Client.
type QueueConsumer interface {
	Consume(ctx context.Context, queue, consumerTag string, prefetch int, handler rabbitmq.Handler) error
}

// CommandConsumer applies confirm/cancel completion commands arriving from the broker.
type CommandConsumer struct {
	service ports.TrackingService
	logger  *logger.Logger
}

// NewCommandConsumer creates a consumer for contracts.QueueTrackingCommands.
func NewCommandConsumer(service ports.TrackingService, log *logger.Logger) *CommandConsumer {
	return &CommandConsumer{service: service, logger: log}
}

// Run consumes until ctx is done, re-subscribing with capped backoff after failures.
func (c *CommandConsumer) Run(ctx context.Context, mq QueueConsumer, prefetch int) error {
	backoff := commandRetryMin
	for {
		err := mq.Consume(ctx, contracts.QueueTrackingCommands, "tracking-service-commands", prefetch, c.Handle)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Error(ctx, "command_consumer_stopped", "Tracking command consumer stopped; retrying", err,
			map[string]any{"retry_in": backoff.String()})

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > commandRetryMax {
			backoff = commandRetryMax
		}
	}
}

// Handle adapts a delivery to HandleCommand.
func (c *CommandConsumer) Handle(ctx context.Context, d amqp.Delivery) error {
	if d.CorrelationId != "" {
		ctx = c.logger.WithRequestID(ctx, d.CorrelationId)
	}
	return c.HandleCommand(ctx, d.Body)
}

// HandleCommand applies one command. Commands that can never succeed (malformed, unknown session,
// nothing pending) are logged and acknowledged; other failures are returned.
func (c *CommandConsumer) HandleCommand(ctx context.Context, body []byte) error {
	var cmd contracts.TrackingCommand
	if err := json.Unmarshal(body, &cmd); err != nil || cmd.SessionID == "" {
		c.logger.Error(ctx, "tracking_command_malformed", "Dropping malformed tracking command", err,
			map[string]any{"size": len(body)})
		return nil
	}
	ctx = c.logger.WithSessionID(ctx, cmd.SessionID)
	ref := ports.SessionRef{SessionID: cmd.SessionID}

	var err error
	switch cmd.Type {
	case contracts.CommandConfirmCompletion:
		_, err = c.service.ConfirmCompletion(ctx, ref)
	case contracts.CommandCancelCompletion:
		err = c.service.CancelCompletion(ctx, ref)
	default:
		c.logger.Error(ctx, "tracking_command_unknown", "Dropping unknown tracking command", nil,
			map[string]any{"type": cmd.Type})
		return nil
	}

	switch {
	case err == nil:
		c.logger.Info(ctx, "tracking_command_applied", "Tracking command applied", map[string]any{"type": cmd.Type})
		return nil
	case errors.Is(err, route.ErrNotFound), errors.Is(err, route.ErrInvalidState):
		c.logger.Info(ctx, "tracking_command_ignored", "Tracking command not applicable", map[string]any{
			"type":   cmd.Type,
			"reason": err.Error(),
		})
		return nil
	default:
		c.logger.Error(ctx, "tracking_command_failed", "Failed to apply tracking command", err, map[string]any{"type": cmd.Type})
		return err
	}
}

package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/general/logger"
	"rider-tracking/internal/general/rabbitmq"
	"rider-tracking/internal/ports"
	"rider-tracking/internal/software/tracking/geofence"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestHandleCommandConfirm(t *testing.T) {
	e := newEnv(t, geofence.Settings{})
	ctx := context.Background()
	e.start(t, "s1", "E1")
	if _, err := e.svc.RecordCoordinate(ctx, fixInput("s1", 12.97165, 77.59465, t0.Add(time.Minute))); err != nil {
		t.Fatalf("record: %v", err)
	}

	c := NewCommandConsumer(e.svc, logger.NewWithWriter("test", discard{}))
	err := c.Handle(ctx, amqp.Delivery{
		CorrelationId: "req-1",
		Body:          []byte(`{"type":"confirm_completion","session_id":"s1"}`),
	})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	s, _ := e.svc.GetSession(ctx, ports.SessionRef{SessionID: "s1"})
	if s.Status != route.StatusCompleted {
		t.Fatalf("status = %s, want completed", s.Status)
	}
	if len(e.rec.published) != 2 || e.rec.published[1] != "confirmed" {
		t.Fatalf("completion stages = %v", e.rec.published)
	}
}

func TestHandleCommandAcksUnusableCommands(t *testing.T) {
	e := newEnv(t, geofence.Settings{})
	e.start(t, "s1", "E1")
	c := NewCommandConsumer(e.svc, logger.NewWithWriter("test", discard{}))

	bodies := map[string]string{
		"malformed":    `{"type":`,
		"no session":   `{"type":"confirm_completion"}`,
		"unknown type": `{"type":"teleport","session_id":"s1"}`,
		"unknown id":   `{"type":"confirm_completion","session_id":"nope"}`,
		"not pending":  `{"type":"cancel_completion","session_id":"s1"}`,
	}
	for name, body := range bodies {
		if err := c.HandleCommand(context.Background(), []byte(body)); err != nil {
			t.Fatalf("%s: got %v, want ack", name, err)
		}
	}
}

type failingService struct {
	ports.TrackingService
	err error
}

func (f failingService) ConfirmCompletion(context.Context, ports.SessionRef) (*route.Session, error) {
	return nil, f.err
}

func TestHandleCommandReturnsTransientErrors(t *testing.T) {
	boom := errors.New("database is locked")
	c := NewCommandConsumer(failingService{err: boom}, logger.NewWithWriter("test", discard{}))
	err := c.HandleCommand(context.Background(), []byte(`{"type":"confirm_completion","session_id":"s1"}`))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}

type flakyQueue struct {
	calls  atomic.Int32
	cancel context.CancelFunc
}

func (q *flakyQueue) Consume(ctx context.Context, queue, _ string, _ int, _ rabbitmq.Handler) error {
	if queue != "tracking_commands" {
		return errors.New("unexpected queue " + queue)
	}
	if q.calls.Add(1) == 2 {
		q.cancel()
		<-ctx.Done()
		return ctx.Err()
	}
	return errors.New("channel closed")
}

func TestCommandConsumerRunRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := &flakyQueue{cancel: cancel}
	c := NewCommandConsumer(failingService{}, logger.NewWithWriter("test", discard{}))

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, q, 4) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("consumer did not stop")
	}
	if q.calls.Load() != 2 {
		t.Fatalf("consume calls = %d, want 2", q.calls.Load())
	}
}

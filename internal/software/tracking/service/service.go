package service

import (
	"context"
	"fmt"
	"time"

	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/general/logger"
	"rider-tracking/internal/ports"
)

// notifyTimeout bounds the fire-and-forget forward of a shipment event.
const notifyTimeout = 10 * time.Second

// trackingService holds all dependencies required by the route-tracking core.
type trackingService struct {
	logger      *logger.Logger
	uow         ports.UnitOfWork
	sessions    ports.SessionRepository
	coords      ports.CoordinateRepository
	events      ports.ShipmentEventRepository
	broadcaster ports.Broadcaster
	publisher   ports.EventPublisher
	notifier    ports.ShipmentStatusNotifier
	stops       ports.PendingStopsSource
	detector    ports.CompletionDetector

	// Writes to one session are serialized; starts are serialized per employee.
	// Lock order: employee before session.
	sessionLocks  *keyedMutex
	employeeLocks *keyedMutex

	now func() time.Time
}

// NewTrackingService constructs the service with required dependencies.
func NewTrackingService(
	logger *logger.Logger,
	store *ports.Store,
	broadcaster ports.Broadcaster,
	publisher ports.EventPublisher,
	notifier ports.ShipmentStatusNotifier,
	stops ports.PendingStopsSource,
	detector ports.CompletionDetector,
) ports.TrackingService {
	return &trackingService{
		logger:        logger,
		uow:           store.UoW,
		sessions:      store.Sessions,
		coords:        store.Coordinates,
		events:        store.Events,
		broadcaster:   broadcaster,
		publisher:     publisher,
		notifier:      notifier,
		stops:         stops,
		detector:      detector,
		sessionLocks:  newKeyedMutex(),
		employeeLocks: newKeyedMutex(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

var errActForOther = fmt.Errorf("%w: cannot act for another employee", route.ErrForbidden)

// authorizeEmployee rejects riders acting on behalf of someone else. An empty actor is unrestricted.
func authorizeEmployee(employeeID, actor string) error {
	if actor != "" && actor != employeeID {
		return errActForOther
	}
	return nil
}

func authorizeSession(s *route.Session, actor string) error {
	if actor != "" && actor != s.EmployeeID {
		return route.ErrSessionNotOwned
	}
	return nil
}

// loadSession reads a session inside the current transaction and checks ownership.
func (service *trackingService) loadSession(ctx context.Context, sessionID, actor string) (*route.Session, error) {
	s, err := service.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := authorizeSession(s, actor); err != nil {
		return nil, err
	}
	return s, nil
}

// sessionChanged fans a committed state transition out to viewers and the broker.
func (service *trackingService) sessionChanged(ctx context.Context, s *route.Session) {
	service.broadcaster.BroadcastSessionStatus(ctx, s)
	if err := service.publisher.PublishSessionStatus(ctx, s); err != nil {
		service.logger.Error(ctx, "session_status_publish_failed", "Failed to publish session status", err, map[string]any{
			"session_id": s.ID,
			"status":     s.Status.String(),
		})
	}
}

// fixRecorded fans a committed fix out and feeds the geofence with the newest position.
func (service *trackingService) fixRecorded(ctx context.Context, s *route.Session, fix *route.Fix, tail bool) {
	service.broadcaster.BroadcastLocation(ctx, s, fix)
	if err := service.publisher.PublishLocation(ctx, s, fix); err != nil {
		service.logger.Error(ctx, "location_update_publish_failed", "Failed to publish location update", err, map[string]any{
			"session_id": s.ID,
			"fix_id":     fix.ID,
		})
	}
	if tail {
		service.detector.Observe(ctx, s, fix)
	}
}

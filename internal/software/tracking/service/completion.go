package service

import (
	"context"
	"fmt"

	"rider-tracking/internal/domain/geo"
	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/general/contracts"
	"rider-tracking/internal/ports"
)

// ConfirmCompletion finalizes a session the geofence detector proposed as complete. The session
// ends at its last known position. The candidate survives a failed stop so the call can be retried.
func (service *trackingService) ConfirmCompletion(ctx context.Context, ref ports.SessionRef) (*route.Session, error) {
	unlock := service.sessionLocks.Lock(ref.SessionID)
	defer unlock()

	var s *route.Session
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if s, err = service.loadSession(ctx, ref.SessionID, ref.ActorEmployeeID); err != nil {
			return err
		}
		return s.AcceptsWrites()
	})
	if err != nil {
		return nil, err
	}
	if !service.detector.Pending(s.ID) {
		return nil, route.ErrNoCompletionPending
	}

	stopped, err := service.stopLocked(ctx, s.ID, ref.ActorEmployeeID, lastKnownPosition, service.now(), "geofence")
	if err != nil {
		return nil, err
	}

	candidate := ports.CompletionCandidate{
		SessionID:          stopped.ID,
		EmployeeID:         stopped.EmployeeID,
		Elapsed:            stopped.Elapsed(service.now()),
		TotalDistanceKM:    stopped.DistanceKM(),
		ShipmentsCompleted: stopped.ShipmentsCompleted,
	}
	if stopped.EndPosition != nil {
		candidate.DistanceFromStartM = geo.DistanceMeters(stopped.StartPosition, *stopped.EndPosition)
	}
	if err := service.publisher.PublishCompletion(ctx, contracts.CompletionConfirmed, candidate); err != nil {
		service.logger.Error(ctx, "completion_publish_failed", "Failed to publish route completion", err,
			map[string]any{"session_id": stopped.ID})
	}
	return stopped, nil
}

// CancelCompletion withdraws a pending completion proposal; the session keeps tracking.
func (service *trackingService) CancelCompletion(ctx context.Context, ref ports.SessionRef) error {
	unlock := service.sessionLocks.Lock(ref.SessionID)
	defer unlock()

	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		_, err := service.loadSession(ctx, ref.SessionID, ref.ActorEmployeeID)
		return err
	})
	if err != nil {
		return err
	}
	if !service.detector.Cancel(ctx, ref.SessionID) {
		return route.ErrNoCompletionPending
	}
	service.logger.Info(service.logger.WithSessionID(ctx, ref.SessionID), "completion_cancelled", "Route completion cancelled", nil)
	return nil
}

// SuggestDispatchOrder orders the rider's pending stops by the nearest-neighbour heuristic,
// starting from the last known position of the open session.
func (service *trackingService) SuggestDispatchOrder(ctx context.Context, employeeID, actor string) (ports.DispatchOrder, error) {
	if err := authorizeEmployee(employeeID, actor); err != nil {
		return ports.DispatchOrder{}, err
	}

	var from geo.Point
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		s, err := service.sessions.GetOpenForEmployee(ctx, employeeID)
		if err != nil {
			return err
		}
		if s == nil {
			return fmt.Errorf("%w: employee has no open session", route.ErrNotFound)
		}
		last, err := service.coords.Latest(ctx, s.ID)
		if err != nil {
			return err
		}
		from = lastKnownPosition(s, last)
		return nil
	})
	if err != nil {
		return ports.DispatchOrder{}, err
	}

	stops, err := service.stops.PendingStops(ctx, employeeID)
	if err != nil {
		service.logger.Error(ctx, "pending_stops_failed", "Failed to list pending stops", err, map[string]any{"employee_id": employeeID})
		return ports.DispatchOrder{}, fmt.Errorf("pending stops: %w", err)
	}

	return ports.DispatchOrder{
		EmployeeID: employeeID,
		From:       from,
		Stops:      route.OptimizePath(from, stops),
	}, nil
}

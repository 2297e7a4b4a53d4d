package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rider-tracking/internal/domain/geo"
	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/ports"
)

var errSessionOwnerMismatch = fmt.Errorf("%w: session id is used by another employee", route.ErrConflict)

// SyncSession upserts a session captured offline. A known session is merged: a completed one is
// returned unchanged, a buffered stop or status change is applied, and the stored start data is
// never overwritten.
func (service *trackingService) SyncSession(ctx context.Context, in ports.SyncSessionInput) (*route.Session, error) {
	id := strings.TrimSpace(in.ID)
	employeeID := strings.TrimSpace(in.EmployeeID)
	if id == "" {
		return nil, route.Invalid("id", "is required")
	}
	if err := authorizeEmployee(employeeID, in.ActorEmployeeID); err != nil {
		return nil, err
	}

	var status route.Status
	if in.Status != "" {
		st, err := route.ParseStatus(in.Status)
		if err != nil {
			return nil, route.Invalid("status", "must be one of active, paused, completed")
		}
		status = st
	}
	stop := in.EndTime != nil || status == route.StatusCompleted

	var end *geo.Point
	if in.EndLatitude != nil && in.EndLongitude != nil {
		p, err := geo.NewPoint(*in.EndLatitude, *in.EndLongitude)
		if err != nil {
			return nil, route.Invalid("end_position", err.Error())
		}
		end = &p
	}
	endOf := func(s *route.Session, last *route.Fix) geo.Point {
		if end != nil {
			return *end
		}
		return lastKnownPosition(s, last)
	}
	var endTime time.Time
	if in.EndTime != nil {
		endTime = *in.EndTime
	}

	unlockEmployee := service.employeeLocks.Lock(employeeID)
	defer unlockEmployee()
	unlock := service.sessionLocks.Lock(id)
	defer unlock()
	ctx = service.logger.WithSessionID(ctx, id)

	var (
		s       *route.Session
		created bool
		changed bool
	)
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := service.sessions.Get(ctx, id)
		switch {
		case errors.Is(err, route.ErrNotFound):
			s, err = service.buildSynced(id, employeeID, in, status, stop, endOf, endTime)
			if err != nil {
				return err
			}
			if s.Status.Open() {
				open, err := service.sessions.GetOpenForEmployee(ctx, employeeID)
				if err != nil {
					return err
				}
				if open != nil {
					return route.ErrOpenSessionExists
				}
			}
			created = true
			return service.sessions.Create(ctx, s)
		case err != nil:
			return err
		}

		s = existing
		if s.EmployeeID != employeeID {
			return errSessionOwnerMismatch
		}
		if s.Status.Terminal() {
			return nil
		}

		switch {
		case stop:
			last, err := service.coords.Latest(ctx, s.ID)
			if err != nil {
				return err
			}
			if err := s.Stop(endOf(s, last), endTime); err != nil {
				return err
			}
		case status == route.StatusPaused && s.Status == route.StatusActive:
			if err := s.Pause(); err != nil {
				return err
			}
		case status == route.StatusActive && s.Status == route.StatusPaused:
			if err := s.Resume(); err != nil {
				return err
			}
		default:
			return nil
		}
		changed = true
		return service.sessions.Update(ctx, s)
	})
	if err != nil {
		service.logger.Error(ctx, "session_sync_failed", "Failed to sync offline session", err, map[string]any{"employee_id": employeeID})
		return nil, err
	}

	if !created && !changed {
		return s, nil
	}
	if s.Status != route.StatusActive {
		service.detector.Forget(s.ID)
	}
	service.logger.Info(ctx, "session_synced", "Offline session synced", map[string]any{
		"employee_id": s.EmployeeID,
		"status":      s.Status.String(),
		"created":     created,
	})
	service.sessionChanged(ctx, s)
	return s, nil
}

func (service *trackingService) buildSynced(
	id, employeeID string,
	in ports.SyncSessionInput,
	status route.Status,
	stop bool,
	endOf func(*route.Session, *route.Fix) geo.Point,
	endTime time.Time,
) (*route.Session, error) {
	start, err := geo.NewPoint(in.StartLatitude, in.StartLongitude)
	if err != nil {
		return nil, route.Invalid("start_position", err.Error())
	}
	s, err := route.NewSession(id, employeeID, start, in.StartTime, in.ShipmentID)
	if err != nil {
		return nil, err
	}
	switch {
	case stop:
		err = s.Stop(endOf(s, nil), endTime)
	case status == route.StatusPaused:
		err = s.Pause()
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SyncCoordinates stores fixes captured offline in timestamp order. Only an unknown or foreign
// session fails the call; every other failure is reported per item.
func (service *trackingService) SyncCoordinates(ctx context.Context, in ports.SyncCoordinatesInput) ([]ports.CoordinateResult, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, route.Invalid("session_id", "is required")
	}

	unlock := service.sessionLocks.Lock(sessionID)
	defer unlock()

	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		_, err := service.loadSession(ctx, sessionID, in.ActorEmployeeID)
		return err
	})
	if err != nil {
		return nil, err
	}

	results := make([]ports.CoordinateResult, len(in.Coordinates))
	accepted := 0
	for _, i := range timestampOrder(in.Coordinates, service.now()) {
		item := in.Coordinates[i]
		item.SessionID = sessionID
		item.ActorEmployeeID = in.ActorEmployeeID
		results[i] = service.recordLocked(ctx, item)
		if results[i].Err == nil {
			accepted++
		}
	}

	service.logger.Info(service.logger.WithSessionID(ctx, sessionID), "coordinates_synced", "Offline coordinates synced", map[string]any{
		"received": len(in.Coordinates),
		"accepted": accepted,
	})
	return results, nil
}

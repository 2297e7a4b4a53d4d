package service

import (
	"context"
	"strings"
	"time"

	"rider-tracking/internal/domain/geo"
	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/ports"

	"github.com/google/uuid"
)

// StartSession opens a route session. An employee with an open (active or paused) session is
// rejected with route.ErrOpenSessionExists.
func (service *trackingService) StartSession(ctx context.Context, in ports.StartSessionInput) (*route.Session, error) {
	employeeID := strings.TrimSpace(in.EmployeeID)
	if err := authorizeEmployee(employeeID, in.ActorEmployeeID); err != nil {
		return nil, err
	}
	start, err := geo.NewPoint(in.Latitude, in.Longitude)
	if err != nil {
		return nil, route.Invalid("start_position", err.Error())
	}

	id := strings.TrimSpace(in.SessionID)
	if id == "" {
		id = uuid.NewString()
	}
	s, err := route.NewSession(id, employeeID, start, in.StartTime, in.ShipmentID)
	if err != nil {
		return nil, err
	}

	unlock := service.employeeLocks.Lock(s.EmployeeID)
	defer unlock()

	err = service.uow.WithinTx(ctx, func(ctx context.Context) error {
		open, err := service.sessions.GetOpenForEmployee(ctx, s.EmployeeID)
		if err != nil {
			return err
		}
		if open != nil {
			return route.ErrOpenSessionExists
		}
		return service.sessions.Create(ctx, s)
	})
	if err != nil {
		service.logger.Error(ctx, "session_start_failed", "Failed to start route session", err, map[string]any{
			"employee_id": s.EmployeeID,
			"session_id":  s.ID,
		})
		return nil, err
	}

	ctx = service.logger.WithSessionID(ctx, s.ID)
	service.logger.Info(ctx, "session_started", "Route session started", map[string]any{
		"employee_id": s.EmployeeID,
		"shipment_id": s.ShipmentID,
	})
	service.sessionChanged(ctx, s)
	return s, nil
}

// StopSession completes a session at the given end position.
func (service *trackingService) StopSession(ctx context.Context, in ports.StopSessionInput) (*route.Session, error) {
	end, err := geo.NewPoint(in.Latitude, in.Longitude)
	if err != nil {
		return nil, route.Invalid("end_position", err.Error())
	}

	unlock := service.sessionLocks.Lock(in.SessionID)
	defer unlock()

	return service.stopLocked(ctx, in.SessionID, in.ActorEmployeeID, func(*route.Session, *route.Fix) geo.Point { return end }, in.EndTime, in.Reason)
}

// stopLocked completes a session; the caller holds the session lock. endOf picks the end position
// from the stored session and its latest fix.
func (service *trackingService) stopLocked(
	ctx context.Context,
	sessionID, actor string,
	endOf func(s *route.Session, last *route.Fix) geo.Point,
	at time.Time,
	reason string,
) (*route.Session, error) {
	if reason == "" {
		reason = "manual"
	}
	ctx = service.logger.WithSessionID(ctx, sessionID)

	var s *route.Session
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if s, err = service.loadSession(ctx, sessionID, actor); err != nil {
			return err
		}
		last, err := service.coords.Latest(ctx, s.ID)
		if err != nil {
			return err
		}
		if err := s.Stop(endOf(s, last), at); err != nil {
			return err
		}
		return service.sessions.Update(ctx, s)
	})
	if err != nil {
		service.logger.Error(ctx, "session_stop_failed", "Failed to stop route session", err, map[string]any{"reason": reason})
		return nil, err
	}

	service.detector.Forget(s.ID)
	service.logger.Info(ctx, "session_stopped", "Route session completed", map[string]any{
		"employee_id":         s.EmployeeID,
		"reason":              reason,
		"total_distance_km":   s.DistanceKM(),
		"shipments_completed": s.ShipmentsCompleted,
	})
	service.sessionChanged(ctx, s)
	return s, nil
}

// lastKnownPosition is the end position used when none was supplied.
func lastKnownPosition(s *route.Session, last *route.Fix) geo.Point {
	if last != nil {
		return last.Position
	}
	return s.StartPosition
}

// PauseSession suspends geofence evaluation for an active session.
func (service *trackingService) PauseSession(ctx context.Context, ref ports.SessionRef) (*route.Session, error) {
	s, err := service.transition(ctx, ref, "paused", (*route.Session).Pause)
	if err != nil {
		return nil, err
	}
	service.detector.Cancel(ctx, s.ID)
	return s, nil
}

// ResumeSession reactivates a paused session.
func (service *trackingService) ResumeSession(ctx context.Context, ref ports.SessionRef) (*route.Session, error) {
	return service.transition(ctx, ref, "resumed", (*route.Session).Resume)
}

func (service *trackingService) transition(ctx context.Context, ref ports.SessionRef, verb string, apply func(*route.Session) error) (*route.Session, error) {
	unlock := service.sessionLocks.Lock(ref.SessionID)
	defer unlock()
	ctx = service.logger.WithSessionID(ctx, ref.SessionID)

	var s *route.Session
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if s, err = service.loadSession(ctx, ref.SessionID, ref.ActorEmployeeID); err != nil {
			return err
		}
		if err := s.AcceptsWrites(); err != nil {
			return err
		}
		if err := apply(s); err != nil {
			return err
		}
		return service.sessions.Update(ctx, s)
	})
	if err != nil {
		service.logger.Error(ctx, "session_transition_failed", "Failed to change session status", err, map[string]any{"transition": verb})
		return nil, err
	}

	service.logger.Info(ctx, "session_"+verb, "Route session "+verb, map[string]any{"employee_id": s.EmployeeID})
	service.sessionChanged(ctx, s)
	return s, nil
}

// GetSession returns a session by id.
func (service *trackingService) GetSession(ctx context.Context, ref ports.SessionRef) (*route.Session, error) {
	var s *route.Session
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		s, err = service.loadSession(ctx, ref.SessionID, ref.ActorEmployeeID)
		return err
	})
	return s, err
}

// GetActiveSession returns the open session of an employee, or (nil, nil).
func (service *trackingService) GetActiveSession(ctx context.Context, employeeID, actor string) (*route.Session, error) {
	if err := authorizeEmployee(employeeID, actor); err != nil {
		return nil, err
	}
	var s *route.Session
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		s, err = service.sessions.GetOpenForEmployee(ctx, employeeID)
		return err
	})
	return s, err
}

// ListCoordinates returns the ordered fix history of a session.
func (service *trackingService) ListCoordinates(ctx context.Context, ref ports.SessionRef) ([]route.Fix, error) {
	var fixes []route.Fix
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		s, err := service.loadSession(ctx, ref.SessionID, ref.ActorEmployeeID)
		if err != nil {
			return err
		}
		fixes, err = service.coords.ListBySession(ctx, s.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if fixes == nil {
		fixes = []route.Fix{}
	}
	return fixes, nil
}

// Summary aggregates point count, duration, distance and average speed of a session.
func (service *trackingService) Summary(ctx context.Context, ref ports.SessionRef) (ports.SessionSummary, error) {
	var (
		s     *route.Session
		fixes []route.Fix
	)
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if s, err = service.loadSession(ctx, ref.SessionID, ref.ActorEmployeeID); err != nil {
			return err
		}
		fixes, err = service.coords.ListBySession(ctx, s.ID)
		return err
	})
	if err != nil {
		return ports.SessionSummary{}, err
	}

	elapsed := s.Elapsed(service.now())
	avg := 0.0
	if hours := elapsed.Hours(); hours > 0 {
		avg = geo.Round2(s.DistanceKM() / hours)
	}
	return ports.SessionSummary{
		SessionID:          s.ID,
		EmployeeID:         s.EmployeeID,
		Status:             s.Status,
		Points:             len(fixes),
		Duration:           elapsed,
		DurationSeconds:    int64(elapsed / time.Second),
		TotalDistanceKM:    s.DistanceKM(),
		AverageSpeedKMH:    avg,
		ShipmentsCompleted: s.ShipmentsCompleted,
	}, nil
}

// ActiveSnapshot lists every open session with its most recent fix.
func (service *trackingService) ActiveSnapshot(ctx context.Context) ([]ports.ActiveSession, error) {
	var out []ports.ActiveSession
	err := service.uow.WithinTx(ctx, func(ctx context.Context) error {
		open, err := service.sessions.ListOpen(ctx)
		if err != nil {
			return err
		}
		out = make([]ports.ActiveSession, 0, len(open))
		for _, s := range open {
			last, err := service.coords.Latest(ctx, s.ID)
			if err != nil {
				return err
			}
			out = append(out, ports.ActiveSession{Session: s, LastFix: last})
		}
		return nil
	})
	return out, err
}

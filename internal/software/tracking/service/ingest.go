package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"rider-tracking/internal/domain/geo"
	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/ports"
)

// RecordCoordinate stores one fix and extends (or repairs) the session distance chain.
// A fix identical to a stored one is reported as a duplicate and not counted again.
func (service *trackingService) RecordCoordinate(ctx context.Context, in ports.CoordinateInput) (ports.CoordinateResult, error) {
	unlock := service.sessionLocks.Lock(in.SessionID)
	defer unlock()

	res := service.recordLocked(ctx, in)
	return res, res.Err
}

// RecordBatch records fixes in timestamp order. Every item succeeds or fails on its own; the
// results keep the input order.
func (service *trackingService) RecordBatch(ctx context.Context, in []ports.CoordinateInput) []ports.CoordinateResult {
	results := make([]ports.CoordinateResult, len(in))
	for _, i := range timestampOrder(in, service.now()) {
		results[i], _ = service.RecordCoordinate(ctx, in[i])
	}
	return results
}

// timestampOrder returns the indexes of in sorted by timestamp; a missing timestamp counts as now.
func timestampOrder(in []ports.CoordinateInput, now time.Time) []int {
	idx := make([]int, len(in))
	for i := range idx {
		idx[i] = i
	}
	at := func(i int) time.Time {
		if in[i].Timestamp.IsZero() {
			return now
		}
		return in[i].Timestamp
	}
	sort.SliceStable(idx, func(a, b int) bool { return at(idx[a]).Before(at(idx[b])) })
	return idx
}

// recordLocked validates and stores one fix; the caller holds the session lock.
func (service *trackingService) recordLocked(ctx context.Context, in ports.CoordinateInput) ports.CoordinateResult {
	ctx = service.logger.WithSessionID(ctx, in.SessionID)

	fix, err := newFix(in, service.now())
	if err != nil {
		return ports.CoordinateResult{Err: err}
	}

	var (
		s         *route.Session
		stored    *route.Fix
		duplicate bool
		tail      bool
	)
	err = service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if s, err = service.loadSession(ctx, fix.SessionID, in.ActorEmployeeID); err != nil {
			return err
		}
		if err := s.AcceptsWrites(); err != nil {
			return err
		}
		fix.EmployeeID = s.EmployeeID
		stored, duplicate, tail, err = service.insertFix(ctx, s, fix)
		return err
	})
	if err != nil {
		service.logger.Error(ctx, "coordinate_record_failed", "Failed to record coordinate", err, map[string]any{
			"timestamp": fix.Timestamp,
		})
		return ports.CoordinateResult{Err: err}
	}

	if duplicate {
		service.logger.Debug(ctx, "coordinate_duplicate", "Duplicate coordinate ignored", map[string]any{"fix_id": stored.ID})
		return ports.CoordinateResult{Fix: stored, Duplicate: true}
	}

	service.fixRecorded(ctx, s, stored, tail)
	return ports.CoordinateResult{Fix: stored}
}

func newFix(in ports.CoordinateInput, receivedAt time.Time) (*route.Fix, error) {
	pos, err := geo.NewPoint(in.Latitude, in.Longitude)
	if err != nil {
		return nil, route.Invalid("position", err.Error())
	}
	return route.NewFix(in.SessionID, "", pos, in.Accuracy, in.Speed, in.Timestamp, receivedAt)
}

// insertFix places fix in the session's ordered chain inside the current transaction.
//
// The chain starts at the session start position. Only the fixes ordered at or after the new one
// are recomputed, continuing from the cumulative distance of its predecessor, so appending costs
// one segment and a backdated fix repairs the suffix it lands in. tail reports whether fix is
// now the newest fix of the session.
func (service *trackingService) insertFix(ctx context.Context, s *route.Session, fix *route.Fix) (stored *route.Fix, duplicate, tail bool, err error) {
	inserted, err := service.coords.Insert(ctx, fix)
	if err != nil {
		return nil, false, false, err
	}
	if !inserted {
		existing, err := service.coords.Find(ctx, s.ID, fix.Key())
		if err != nil {
			return nil, false, false, err
		}
		if existing == nil {
			return nil, false, false, fmt.Errorf("%w: fix reported as duplicate but not found", route.ErrConflict)
		}
		return existing, true, false, nil
	}

	anchor, anchorKM := s.StartPosition, 0.0
	prev, err := service.coords.Before(ctx, s.ID, fix.Key())
	if err != nil {
		return nil, false, false, err
	}
	if prev != nil {
		anchor, anchorKM = prev.Position, prev.CumulativeKM
	}

	suffix, err := service.coords.From(ctx, s.ID, fix.Key())
	if err != nil {
		return nil, false, false, err
	}
	before := make([]float64, len(suffix))
	for i := range suffix {
		before[i] = suffix[i].CumulativeKM
	}

	total := route.ReplayDistance(anchor, anchorKM, suffix)
	for i := range suffix {
		if suffix[i].ID == fix.ID {
			fix.CumulativeKM = suffix[i].CumulativeKM
		}
		if suffix[i].CumulativeKM == before[i] {
			continue
		}
		if err := service.coords.SetCumulative(ctx, suffix[i].ID, suffix[i].CumulativeKM); err != nil {
			return nil, false, false, err
		}
	}

	s.SetDistance(total)
	if err := service.sessions.Update(ctx, s); err != nil {
		return nil, false, false, err
	}
	return fix, false, len(suffix) == 1, nil
}

// RecordShipmentEvent stores a pickup or delivery, counts it on the session and forwards
// the event to the shipment-status service without waiting for it.
func (service *trackingService) RecordShipmentEvent(ctx context.Context, in ports.ShipmentEventInput) (*route.ShipmentEvent, error) {
	eventType, err := route.ParseEventType(in.EventType)
	if err != nil {
		return nil, route.Invalid("event_type", "must be pickup or delivery")
	}
	pos, err := geo.NewPoint(in.Latitude, in.Longitude)
	if err != nil {
		return nil, route.Invalid("position", err.Error())
	}
	ev, err := route.NewShipmentEvent(in.SessionID, in.ShipmentID, eventType, pos, in.Timestamp)
	if err != nil {
		return nil, err
	}

	unlock := service.sessionLocks.Lock(ev.SessionID)
	defer unlock()
	ctx = service.logger.WithSessionID(ctx, ev.SessionID)

	var s *route.Session
	err = service.uow.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if s, err = service.loadSession(ctx, ev.SessionID, in.ActorEmployeeID); err != nil {
			return err
		}
		if err := s.AcceptsWrites(); err != nil {
			return err
		}
		ev.EmployeeID = s.EmployeeID
		if err := service.events.Append(ctx, ev); err != nil {
			return err
		}
		if err := s.AddShipment(); err != nil {
			return err
		}
		return service.sessions.Update(ctx, s)
	})
	if err != nil {
		service.logger.Error(ctx, "shipment_event_failed", "Failed to record shipment event", err, map[string]any{
			"shipment_id": ev.ShipmentID,
			"event_type":  ev.Type.String(),
		})
		return nil, err
	}

	service.logger.Info(ctx, "shipment_event_recorded", "Shipment event recorded", map[string]any{
		"event_id":            ev.ID,
		"shipment_id":         ev.ShipmentID,
		"event_type":          ev.Type.String(),
		"shipments_completed": s.ShipmentsCompleted,
	})

	service.broadcaster.BroadcastLocation(ctx, s, &route.Fix{
		SessionID:    s.ID,
		EmployeeID:   s.EmployeeID,
		Position:     ev.Position,
		Timestamp:    ev.Timestamp,
		ReceivedAt:   ev.CreatedAt,
		CumulativeKM: s.TotalDistanceKM,
	})
	service.forwardShipmentEvent(ctx, ev)
	return ev, nil
}

// forwardShipmentEvent notifies the shipment-status service in the background. A failure is
// logged and never reaches the caller.
func (service *trackingService) forwardShipmentEvent(ctx context.Context, ev *route.ShipmentEvent) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	go func() {
		defer cancel()
		if err := service.notifier.NotifyShipmentEvent(fctx, ev); err != nil {
			service.logger.Error(fctx, "shipment_status_forward_failed", "Failed to forward shipment event", err, map[string]any{
				"event_id":    ev.ID,
				"shipment_id": ev.ShipmentID,
			})
		}
	}()
}

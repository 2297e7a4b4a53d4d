package geofence

import (
	"context"
	"sync"
	"time"

	"rider-tracking/internal/domain/geo"
	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/general/contracts"
	"rider-tracking/internal/general/logger"
	"rider-tracking/internal/ports"
)

// Finalizer completes a session whose auto-confirm countdown elapsed.
type Finalizer func(ctx context.Context, sessionID string) error

// Settings tunes the detector.
type Settings struct {
	RadiusM float64
	// AutoConfirm is the countdown after which a candidate is finalized; zero disables it.
	AutoConfirm time.Duration
	// RequireDeparture arms a session only after a fix outside the radius was seen.
	RequireDeparture bool
}

type phase int

const (
	phaseTracking phase = iota
	phaseCandidate
	phaseConfirmed
)

type state struct {
	employeeID string
	phase      phase
	armed      bool
	timer      *time.Timer
	gen        uint64
}

func (st *state) stopTimer() {
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
}

// Detector proposes completion when a rider returns within the radius of the session start.
// It never completes a session itself; completion goes through the Finalizer or an explicit
// confirmation.
type Detector struct {
	logger      *logger.Logger
	broadcaster ports.Broadcaster
	publisher   ports.EventPublisher
	settings    Settings
	now         func() time.Time

	mu       sync.Mutex
	finalize Finalizer
	states   map[string]*state
}

var _ ports.CompletionDetector = (*Detector)(nil)

// NewDetector creates a detector with no tracked sessions.
func NewDetector(log *logger.Logger, broadcaster ports.Broadcaster, publisher ports.EventPublisher, settings Settings) *Detector {
	return &Detector{
		logger:      log,
		broadcaster: broadcaster,
		publisher:   publisher,
		settings:    settings,
		now:         func() time.Time { return time.Now().UTC() },
		states:      make(map[string]*state),
	}
}

// SetFinalizer installs the auto-confirm callback.
func (d *Detector) SetFinalizer(f Finalizer) {
	d.mu.Lock()
	d.finalize = f
	d.mu.Unlock()
}

// Observe evaluates the newest fix of an active session.
func (d *Detector) Observe(ctx context.Context, s *route.Session, fix *route.Fix) {
	if s.Status != route.StatusActive {
		return
	}
	inside := geo.IsWithinRadius(fix.Position, s.StartPosition, d.settings.RadiusM)

	d.mu.Lock()
	st, ok := d.states[s.ID]
	if !ok {
		st = &state{employeeID: s.EmployeeID, armed: !d.settings.RequireDeparture}
		d.states[s.ID] = st
	}

	if !inside {
		st.armed = true
		wasCandidate := st.phase == phaseCandidate
		if wasCandidate {
			st.stopTimer()
			st.phase = phaseTracking
		}
		d.mu.Unlock()
		if wasCandidate {
			d.emitCancelled(ctx, s.ID, s.EmployeeID, "left_geofence")
		}
		return
	}

	if !st.armed || st.phase != phaseTracking {
		d.mu.Unlock()
		return
	}

	now := d.now()
	candidate := ports.CompletionCandidate{
		SessionID:          s.ID,
		EmployeeID:         s.EmployeeID,
		DistanceFromStartM: geo.DistanceMeters(s.StartPosition, fix.Position),
		Elapsed:            s.Elapsed(now),
		TotalDistanceKM:    s.DistanceKM(),
		ShipmentsCompleted: s.ShipmentsCompleted,
	}
	st.phase = phaseCandidate
	st.gen++
	if d.settings.AutoConfirm > 0 {
		at := now.Add(d.settings.AutoConfirm)
		candidate.AutoConfirmAt = &at
		sessionID, gen := s.ID, st.gen
		st.timer = time.AfterFunc(d.settings.AutoConfirm, func() { d.autoConfirm(sessionID, gen) })
	}
	d.mu.Unlock()

	d.logger.Info(ctx, "completion_detected", "Rider is back within the start geofence", map[string]any{
		"session_id":            s.ID,
		"distance_from_start_m": candidate.DistanceFromStartM,
		"auto_confirm":          d.settings.AutoConfirm > 0,
	})
	d.broadcaster.BroadcastCompletionDetected(ctx, candidate)
	if err := d.publisher.PublishCompletion(ctx, contracts.CompletionDetected, candidate); err != nil {
		d.logger.Error(ctx, "completion_publish_failed", "Failed to publish route completion", err,
			map[string]any{"session_id": s.ID})
	}
}

func (d *Detector) autoConfirm(sessionID string, gen uint64) {
	d.mu.Lock()
	st, ok := d.states[sessionID]
	if !ok || st.gen != gen || st.phase != phaseCandidate {
		d.mu.Unlock()
		return
	}
	st.phase = phaseConfirmed
	st.timer = nil
	finalize := d.finalize
	d.mu.Unlock()

	ctx := d.logger.WithSessionID(context.Background(), sessionID)
	if finalize == nil {
		return
	}
	if err := finalize(ctx, sessionID); err != nil {
		d.logger.Error(ctx, "completion_auto_confirm_failed", "Failed to auto-confirm route completion", err, nil)
		d.restore(sessionID, gen)
		return
	}
	d.logger.Info(ctx, "completion_auto_confirmed", "Route completion auto-confirmed", nil)
}

// Pending reports whether a completion is proposed or being confirmed for the session.
// The state is kept; it is dropped by Forget once the session is stopped.
func (d *Detector) Pending(sessionID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.states[sessionID]
	return ok && st.phase != phaseTracking
}

// restore puts a failed auto-confirmation back into the candidate phase so an explicit
// confirmation can still complete it.
func (d *Detector) restore(sessionID string, gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.states[sessionID]; ok && st.gen == gen && st.phase == phaseConfirmed {
		st.phase = phaseCandidate
	}
}

// Cancel withdraws a pending completion. The rider has to leave the radius again before the
// session can become a candidate once more.
func (d *Detector) Cancel(ctx context.Context, sessionID string) bool {
	d.mu.Lock()
	st, ok := d.states[sessionID]
	if !ok || st.phase == phaseTracking {
		d.mu.Unlock()
		return false
	}
	st.stopTimer()
	st.phase = phaseTracking
	st.armed = false
	st.gen++
	employeeID := st.employeeID
	d.mu.Unlock()

	d.emitCancelled(ctx, sessionID, employeeID, "cancelled")
	return true
}

// Forget drops all state of a session.
func (d *Detector) Forget(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.states[sessionID]; ok {
		st.stopTimer()
		delete(d.states, sessionID)
	}
}

func (d *Detector) emitCancelled(ctx context.Context, sessionID, employeeID, reason string) {
	d.logger.Info(ctx, "completion_withdrawn", "Route completion candidate withdrawn", map[string]any{
		"session_id": sessionID,
		"reason":     reason,
	})
	d.broadcaster.BroadcastCompletionCancelled(ctx, sessionID, employeeID)
	c := ports.CompletionCandidate{SessionID: sessionID, EmployeeID: employeeID}
	if err := d.publisher.PublishCompletion(ctx, contracts.CompletionCancelled, c); err != nil {
		d.logger.Error(ctx, "completion_publish_failed", "Failed to publish route completion", err,
			map[string]any{"session_id": sessionID})
	}
}

package geofence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rider-tracking/internal/domain/geo"
	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/general/logger"
	"rider-tracking/internal/ports"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

type recorder struct {
	mu        sync.Mutex
	detected  []ports.CompletionCandidate
	cancelled []string
	published []string
}

func (r *recorder) BroadcastLocation(context.Context, *route.Session, *route.Fix) {}
func (r *recorder) BroadcastSessionStatus(context.Context, *route.Session)        {}

func (r *recorder) BroadcastCompletionDetected(_ context.Context, c ports.CompletionCandidate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detected = append(r.detected, c)
}

func (r *recorder) BroadcastCompletionCancelled(_ context.Context, sessionID, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, sessionID)
}

func (r *recorder) PublishSessionStatus(context.Context, *route.Session) error        { return nil }
func (r *recorder) PublishLocation(context.Context, *route.Session, *route.Fix) error { return nil }

func (r *recorder) PublishCompletion(_ context.Context, stage string, _ ports.CompletionCandidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, stage)
	return nil
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.detected), len(r.cancelled)
}

var start = geo.Point{Latitude: 12.9716, Longitude: 77.5946}

// north returns a point about meters north of start.
func north(meters float64) *route.Fix {
	return &route.Fix{Position: geo.Point{Latitude: start.Latitude + meters/111195.0, Longitude: start.Longitude}}
}

func activeSession() *route.Session {
	return &route.Session{
		ID:            "s1",
		EmployeeID:    "E1",
		Status:        route.StatusActive,
		StartPosition: start,
		StartTime:     time.Now().UTC().Add(-time.Hour),
	}
}

func newDetector(settings Settings) (*Detector, *recorder) {
	rec := &recorder{}
	return NewDetector(logger.NewWithWriter("test", discard{}), rec, rec, settings), rec
}

func TestCandidateWithinRadius(t *testing.T) {
	ctx := context.Background()

	d, rec := newDetector(Settings{RadiusM: 100})
	d.Observe(ctx, activeSession(), north(50))
	if n, _ := rec.counts(); n != 1 {
		t.Fatalf("50m from start: %d detections, want 1", n)
	}
	c := rec.detected[0]
	if c.DistanceFromStartM < 45 || c.DistanceFromStartM > 55 || c.Elapsed < time.Hour-time.Minute {
		t.Fatalf("unexpected candidate: %+v", c)
	}
	if c.AutoConfirmAt != nil {
		t.Fatalf("auto-confirm disabled, got %v", c.AutoConfirmAt)
	}

	d, rec = newDetector(Settings{RadiusM: 100})
	d.Observe(ctx, activeSession(), north(150))
	if n, _ := rec.counts(); n != 0 {
		t.Fatalf("150m from start: %d detections, want 0", n)
	}
}

func TestRequireDepartureArmsOnlyAfterLeaving(t *testing.T) {
	ctx := context.Background()
	d, rec := newDetector(Settings{RadiusM: 100, RequireDeparture: true})
	s := activeSession()

	d.Observe(ctx, s, north(10))
	if n, _ := rec.counts(); n != 0 {
		t.Fatalf("session must not be a candidate at its own start")
	}
	d.Observe(ctx, s, north(2000))
	d.Observe(ctx, s, north(20))
	if n, _ := rec.counts(); n != 1 {
		t.Fatalf("detections = %d, want 1 after departure and return", n)
	}
	d.Observe(ctx, s, north(30))
	if n, _ := rec.counts(); n != 1 {
		t.Fatalf("candidate must be proposed once, got %d", n)
	}
}

func TestLeavingRadiusCancelsCandidate(t *testing.T) {
	ctx := context.Background()
	d, rec := newDetector(Settings{RadiusM: 100})
	s := activeSession()

	d.Observe(ctx, s, north(50))
	d.Observe(ctx, s, north(500))
	if _, c := rec.counts(); c != 1 {
		t.Fatalf("cancellations = %d, want 1", c)
	}
	if d.Pending(s.ID) {
		t.Fatalf("nothing should be pending after leaving the radius")
	}

	d.Observe(ctx, s, north(40))
	if !d.Pending(s.ID) || !d.Pending(s.ID) {
		t.Fatalf("returning again must raise a new candidate that stays pending")
	}
	d.Forget(s.ID)
	if d.Pending(s.ID) {
		t.Fatalf("forget must clear the candidate")
	}
}

func TestPausedSessionsAreSkipped(t *testing.T) {
	d, rec := newDetector(Settings{RadiusM: 100})
	s := activeSession()
	s.Status = route.StatusPaused
	d.Observe(context.Background(), s, north(10))
	if n, _ := rec.counts(); n != 0 {
		t.Fatalf("paused session evaluated")
	}
}

func TestExplicitCancelRequiresNewDeparture(t *testing.T) {
	ctx := context.Background()
	d, rec := newDetector(Settings{RadiusM: 100})
	s := activeSession()

	if d.Cancel(ctx, s.ID) {
		t.Fatalf("cancel without candidate must report false")
	}
	d.Observe(ctx, s, north(10))
	if !d.Cancel(ctx, s.ID) {
		t.Fatalf("cancel of candidate must report true")
	}
	d.Observe(ctx, s, north(15))
	if n, c := rec.counts(); n != 1 || c != 1 {
		t.Fatalf("detections=%d cancellations=%d, want 1/1", n, c)
	}
	d.Observe(ctx, s, north(800))
	d.Observe(ctx, s, north(15))
	if n, _ := rec.counts(); n != 2 {
		t.Fatalf("detections=%d after new departure, want 2", n)
	}
}

func TestAutoConfirmCallsFinalizer(t *testing.T) {
	d, rec := newDetector(Settings{RadiusM: 100, AutoConfirm: 20 * time.Millisecond})
	finalized := make(chan string, 1)
	d.SetFinalizer(func(_ context.Context, sessionID string) error {
		if !d.Pending(sessionID) {
			t.Errorf("finalizer: nothing pending")
		}
		finalized <- sessionID
		return nil
	})

	d.Observe(context.Background(), activeSession(), north(30))
	if rec.detected[0].AutoConfirmAt == nil {
		t.Fatalf("candidate must carry the auto-confirm deadline")
	}

	select {
	case id := <-finalized:
		if id != "s1" {
			t.Fatalf("finalized %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("auto-confirm did not fire")
	}
}

func TestForgetStopsCountdown(t *testing.T) {
	d, _ := newDetector(Settings{RadiusM: 100, AutoConfirm: 20 * time.Millisecond})
	fired := make(chan struct{}, 1)
	d.SetFinalizer(func(context.Context, string) error {
		fired <- struct{}{}
		return nil
	})

	d.Observe(context.Background(), activeSession(), north(30))
	d.Forget("s1")

	select {
	case <-fired:
		t.Fatalf("finalizer ran for a forgotten session")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFailedAutoConfirmKeepsCandidate(t *testing.T) {
	d, rec := newDetector(Settings{RadiusM: 100, AutoConfirm: 20 * time.Millisecond})
	attempted := make(chan struct{}, 1)
	d.SetFinalizer(func(context.Context, string) error {
		attempted <- struct{}{}
		return errors.New("storage unavailable")
	})

	s := activeSession()
	d.Observe(context.Background(), s, north(30))
	select {
	case <-attempted:
	case <-time.After(2 * time.Second):
		t.Fatalf("auto-confirm did not fire")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		d.mu.Lock()
		ph := d.states[s.ID].phase
		d.mu.Unlock()
		if ph == phaseCandidate {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("phase = %d after failed finalizer, want candidate", ph)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !d.Pending(s.ID) {
		t.Fatalf("candidate lost after failed finalizer")
	}
	d.Observe(context.Background(), s, north(500))
	if _, c := rec.counts(); c != 1 {
		t.Fatalf("cancellations = %d, want 1 once the restored candidate leaves", c)
	}
}

package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"rider-tracking/internal/domain/geo"
	"rider-tracking/internal/domain/route"
	"rider-tracking/internal/ports"
)

func openTestStore(t *testing.T) *ports.Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "tracking.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.InitSchema(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return st.Ports()
}

func createSession(t *testing.T, store *ports.Store, id, employee string) *route.Session {
	t.Helper()
	s, err := route.NewSession(id, employee, geo.Point{Latitude: 12.9716, Longitude: 77.5946}, time.Time{}, "")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	err = store.UoW.WithinTx(context.Background(), func(ctx context.Context) error {
		return store.Sessions.Create(ctx, s)
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s
}

func TestOneOpenSessionPerEmployee(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	first := createSession(t, store, "s-1", "E1")

	second, _ := route.NewSession("s-2", "E1", geo.Point{Latitude: 1, Longitude: 1}, time.Time{}, "")
	err := store.UoW.WithinTx(ctx, func(ctx context.Context) error {
		return store.Sessions.Create(ctx, second)
	})
	if !errors.Is(err, route.ErrOpenSessionExists) {
		t.Fatalf("err = %v, want open session conflict", err)
	}

	// same id again is a plain conflict
	dupID, _ := route.NewSession("s-1", "E2", geo.Point{Latitude: 1, Longitude: 1}, time.Time{}, "")
	err = store.UoW.WithinTx(ctx, func(ctx context.Context) error {
		return store.Sessions.Create(ctx, dupID)
	})
	if !errors.Is(err, route.ErrConflict) || errors.Is(err, route.ErrOpenSessionExists) {
		t.Fatalf("err = %v, want id conflict", err)
	}

	if err := first.Stop(geo.Point{Latitude: 12.9716, Longitude: 77.5946}, time.Time{}); err != nil {
		t.Fatalf("stop: %v", err)
	}
	err = store.UoW.WithinTx(ctx, func(ctx context.Context) error {
		if err := store.Sessions.Update(ctx, first); err != nil {
			return err
		}
		return store.Sessions.Create(ctx, second)
	})
	if err != nil {
		t.Fatalf("start after stop: %v", err)
	}

	err = store.UoW.WithinTx(ctx, func(ctx context.Context) error {
		open, err := store.Sessions.GetOpenForEmployee(ctx, "E1")
		if err != nil {
			return err
		}
		if open == nil || open.ID != "s-2" {
			t.Fatalf("open session = %+v, want s-2", open)
		}
		stored, err := store.Sessions.Get(ctx, "s-1")
		if err != nil {
			return err
		}
		if stored.Status != route.StatusCompleted || stored.EndPosition == nil || stored.EndTime == nil {
			t.Fatalf("stop not persisted: %+v", stored)
		}
		list, err := store.Sessions.ListOpen(ctx)
		if err != nil {
			return err
		}
		if len(list) != 1 {
			t.Fatalf("open list = %d, want 1", len(list))
		}
		_, err = store.Sessions.Get(ctx, "nope")
		if !errors.Is(err, route.ErrSessionNotFound) {
			t.Fatalf("missing session err = %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reads: %v", err)
	}
}

func TestCoordinateOrderingAndDedupe(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	createSession(t, store, "s-1", "E1")

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	acc := 4.5
	mk := func(offset time.Duration, lat float64) *route.Fix {
		f, err := route.NewFix("s-1", "E1", geo.Point{Latitude: lat, Longitude: 77.5946}, &acc, nil, base.Add(offset), time.Now())
		if err != nil {
			t.Fatalf("new fix: %v", err)
		}
		return f
	}

	err := store.UoW.WithinTx(ctx, func(ctx context.Context) error {
		for _, f := range []*route.Fix{mk(2*time.Minute, 12.973), mk(0, 12.971), mk(time.Minute, 12.972)} {
			ok, err := store.Coordinates.Insert(ctx, f)
			if err != nil {
				return err
			}
			if !ok || f.ID == 0 {
				t.Fatalf("insert not applied: %+v", f)
			}
		}

		dup := mk(time.Minute, 12.972)
		ok, err := store.Coordinates.Insert(ctx, dup)
		if err != nil {
			return err
		}
		if ok {
			t.Fatalf("duplicate key must not be inserted")
		}
		existing, err := store.Coordinates.Find(ctx, "s-1", dup.Key())
		if err != nil || existing == nil {
			t.Fatalf("find duplicate: %v %+v", err, existing)
		}

		all, err := store.Coordinates.ListBySession(ctx, "s-1")
		if err != nil {
			return err
		}
		if len(all) != 3 || !all[0].Timestamp.Equal(base) || !all[2].Timestamp.Equal(base.Add(2*time.Minute)) {
			t.Fatalf("fixes not ordered by timestamp: %+v", all)
		}
		if all[0].Accuracy == nil || *all[0].Accuracy != 4.5 || all[0].Speed != nil {
			t.Fatalf("nullable columns not round-tripped: %+v", all[0])
		}

		prev, err := store.Coordinates.Before(ctx, "s-1", all[1].Key())
		if err != nil || prev == nil || prev.ID != all[0].ID {
			t.Fatalf("before = %+v (%v), want first fix", prev, err)
		}
		suffix, err := store.Coordinates.From(ctx, "s-1", all[1].Key())
		if err != nil || len(suffix) != 2 {
			t.Fatalf("from = %d fixes (%v), want 2", len(suffix), err)
		}
		if err := store.Coordinates.SetCumulative(ctx, suffix[1].ID, 1.25); err != nil {
			return err
		}
		latest, err := store.Coordinates.Latest(ctx, "s-1")
		if err != nil || latest.CumulativeKM != 1.25 {
			t.Fatalf("latest = %+v (%v)", latest, err)
		}
		none, err := store.Coordinates.Latest(ctx, "other")
		if err != nil || none != nil {
			t.Fatalf("latest of empty session = %+v (%v)", none, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}

func TestShipmentEventAppend(t *testing.T) {
	store := openTestStore(t)
	createSession(t, store, "s-1", "E1")

	ev, err := route.NewShipmentEvent("s-1", "ship-1", route.EventPickup, geo.Point{Latitude: 1, Longitude: 2}, time.Time{})
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	ev.EmployeeID = "E1"
	err = store.UoW.WithinTx(context.Background(), func(ctx context.Context) error {
		return store.Events.Append(ctx, ev)
	})
	if err != nil || ev.ID == 0 {
		t.Fatalf("append: %v id=%d", err, ev.ID)
	}
}

func TestWithinTxRollsBack(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	s, _ := route.NewSession("s-1", "E1", geo.Point{Latitude: 1, Longitude: 1}, time.Time{}, "")
	err := store.UoW.WithinTx(ctx, func(ctx context.Context) error {
		if err := store.Sessions.Create(ctx, s); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	err = store.UoW.WithinTx(ctx, func(ctx context.Context) error {
		_, err := store.Sessions.Get(ctx, "s-1")
		return err
	})
	if !errors.Is(err, route.ErrSessionNotFound) {
		t.Fatalf("rolled back session still visible: %v", err)
	}
	if err := store.Health.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

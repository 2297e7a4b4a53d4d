package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"rider-tracking/internal/domain/geo"
	"rider-tracking/internal/domain/route"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
)

var sessionCols = []string{"id", "employee_id", "status", "start_latitude", "start_longitude", "start_time",
	"end_latitude", "end_longitude", "end_time", "total_distance_km", "shipments_completed", "shipment_id",
	"created_at", "updated_at"}

var fixCols = []string{"id", "session_id", "employee_id", "latitude", "longitude", "accuracy", "speed",
	"recorded_at", "received_at", "cumulative_km"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestSessionRepoCreateMapsOpenSessionConflict(t *testing.T) {
	mock := newMock(t)
	uow := NewUnitOfWork(mock)
	repo := NewSessionRepo()

	s, err := route.NewSession("s-1", "E1", geo.Point{Latitude: 12.9716, Longitude: 77.5946}, time.Time{}, "")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO route_sessions`).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: openSessionIndex})
	mock.ExpectRollback()

	err = uow.WithinTx(context.Background(), func(ctx context.Context) error {
		return repo.Create(ctx, s)
	})
	if !errors.Is(err, route.ErrOpenSessionExists) || !errors.Is(err, route.ErrConflict) {
		t.Fatalf("err = %v, want open session conflict", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepoCreateDuplicateID(t *testing.T) {
	mock := newMock(t)
	uow := NewUnitOfWork(mock)
	repo := NewSessionRepo()

	s, _ := route.NewSession("s-1", "E1", geo.Point{Latitude: 1, Longitude: 1}, time.Time{}, "")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO route_sessions`).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: "route_sessions_pkey"})
	mock.ExpectRollback()

	err := uow.WithinTx(context.Background(), func(ctx context.Context) error {
		return repo.Create(ctx, s)
	})
	if !errors.Is(err, route.ErrConflict) || errors.Is(err, route.ErrOpenSessionExists) {
		t.Fatalf("err = %v, want plain conflict", err)
	}
}

func TestSessionRepoGet(t *testing.T) {
	mock := newMock(t)
	uow := NewUnitOfWork(mock)
	repo := NewSessionRepo()

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	endLat, endLng := 12.9716, 77.5946

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, employee_id, status`).
		WithArgs("s-1").
		WillReturnRows(pgxmock.NewRows(sessionCols).AddRow(
			"s-1", "E1", "completed", 12.9716, 77.5946, start,
			&endLat, &endLng, &end, 0.06, 1, "ship-1", start, end,
		))
	mock.ExpectCommit()

	var got *route.Session
	err := uow.WithinTx(context.Background(), func(ctx context.Context) error {
		var err error
		got, err = repo.Get(ctx, "s-1")
		return err
	})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != route.StatusCompleted || got.EndPosition == nil || got.EndTime == nil {
		t.Fatalf("unexpected session: %+v", got)
	}
	if got.ShipmentsCompleted != 1 || got.TotalDistanceKM != 0.06 || got.ShipmentID != "ship-1" {
		t.Fatalf("counters not scanned: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRepoGetNotFound(t *testing.T) {
	mock := newMock(t)
	uow := NewUnitOfWork(mock)
	repo := NewSessionRepo()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, employee_id, status`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(sessionCols))
	mock.ExpectRollback()

	err := uow.WithinTx(context.Background(), func(ctx context.Context) error {
		_, err := repo.Get(ctx, "missing")
		return err
	})
	if !errors.Is(err, route.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestSessionRepoUpdateMissingRow(t *testing.T) {
	mock := newMock(t)
	uow := NewUnitOfWork(mock)
	repo := NewSessionRepo()

	s, _ := route.NewSession("s-9", "E1", geo.Point{Latitude: 1, Longitude: 1}, time.Time{}, "")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE route_sessions`).
		WithArgs("s-9", "active", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), 0.0, 0, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := uow.WithinTx(context.Background(), func(ctx context.Context) error {
		return repo.Update(ctx, s)
	})
	if !errors.Is(err, route.ErrSessionNotFound) {
		t.Fatalf("err = %v, want session not found", err)
	}
}

func TestCoordinateRepoInsert(t *testing.T) {
	mock := newMock(t)
	uow := NewUnitOfWork(mock)
	repo := NewCoordinateRepo()

	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	fix, err := route.NewFix("s-1", "E1", geo.Point{Latitude: 12.972, Longitude: 77.595}, nil, nil, ts, ts)
	if err != nil {
		t.Fatalf("new fix: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO route_coordinates`).
		WithArgs("s-1", "E1", 12.972, 77.595, fix.Accuracy, fix.Speed, ts, ts, 0.0).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectQuery(`INSERT INTO route_coordinates`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	var first, second bool
	err = uow.WithinTx(context.Background(), func(ctx context.Context) error {
		var err error
		if first, err = repo.Insert(ctx, fix); err != nil {
			return err
		}
		dup := *fix
		dup.ID = 0
		second, err = repo.Insert(ctx, &dup)
		return err
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !first || fix.ID != 42 {
		t.Fatalf("first insert: inserted=%v id=%d", first, fix.ID)
	}
	if second {
		t.Fatalf("conflicting insert must report a duplicate")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCoordinateRepoBeforeAndFrom(t *testing.T) {
	mock := newMock(t)
	uow := NewUnitOfWork(mock)
	repo := NewCoordinateRepo()

	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	key := route.FixKey{Timestamp: ts, Latitude: 1, Longitude: 2}
	acc := 5.0

	mock.ExpectBegin()
	mock.ExpectQuery(`\(recorded_at, latitude, longitude\) < \(\$2, \$3, \$4\)`).
		WithArgs("s-1", ts, 1.0, 2.0).
		WillReturnRows(pgxmock.NewRows(fixCols))
	mock.ExpectQuery(`\(recorded_at, latitude, longitude\) >= \(\$2, \$3, \$4\)`).
		WithArgs("s-1", ts, 1.0, 2.0).
		WillReturnRows(pgxmock.NewRows(fixCols).
			AddRow(int64(1), "s-1", "E1", 1.0, 2.0, &acc, (*float64)(nil), ts, ts, 0.1).
			AddRow(int64(2), "s-1", "E1", 1.1, 2.0, (*float64)(nil), (*float64)(nil), ts.Add(time.Second), ts, 0.2))
	mock.ExpectExec(`UPDATE route_coordinates SET cumulative_km`).
		WithArgs(int64(2), 0.25).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := uow.WithinTx(context.Background(), func(ctx context.Context) error {
		prev, err := repo.Before(ctx, "s-1", key)
		if err != nil {
			return err
		}
		if prev != nil {
			t.Fatalf("expected no predecessor, got %+v", prev)
		}
		suffix, err := repo.From(ctx, "s-1", key)
		if err != nil {
			return err
		}
		if len(suffix) != 2 || suffix[0].Accuracy == nil || *suffix[0].Accuracy != 5 {
			t.Fatalf("unexpected suffix: %+v", suffix)
		}
		return repo.SetCumulative(ctx, suffix[1].ID, 0.25)
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestShipmentEventRepoAppend(t *testing.T) {
	mock := newMock(t)
	uow := NewUnitOfWork(mock)
	repo := NewShipmentEventRepo()

	ev, err := route.NewShipmentEvent("s-1", "ship-1", route.EventDelivery, geo.Point{Latitude: 1, Longitude: 1}, time.Time{})
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	ev.EmployeeID = "E1"
	created := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO shipment_events`).
		WithArgs("s-1", "E1", "ship-1", "delivery", 1.0, 1.0, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), created))
	mock.ExpectCommit()

	err = uow.WithinTx(context.Background(), func(ctx context.Context) error {
		return repo.Append(ctx, ev)
	})
	if err != nil || ev.ID != 7 {
		t.Fatalf("append: err=%v id=%d", err, ev.ID)
	}
}

func TestRepositoriesRequireTransaction(t *testing.T) {
	if _, err := NewSessionRepo().Get(context.Background(), "s-1"); err == nil {
		t.Fatalf("expected error outside of a unit of work")
	}
	if _, err := NewCoordinateRepo().Latest(context.Background(), "s-1"); err == nil {
		t.Fatalf("expected error outside of a unit of work")
	}
}

func TestMigrate(t *testing.T) {
	mock := newMock(t)
	for _, pattern := range []string{
		`CREATE TABLE IF NOT EXISTS route_sessions`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_route_sessions_open_employee`,
		`CREATE TABLE IF NOT EXISTS route_coordinates`,
		`CREATE TABLE IF NOT EXISTS shipment_events`,
		`CREATE INDEX IF NOT EXISTS idx_shipment_events_session`,
	} {
		mock.ExpectExec(pattern).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	}

	if err := Migrate(context.Background(), mock); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

package routes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"

	"github.com/jrodrigopuca/tracking/internal/session"
)

var errRoutes = errors.New("routes error")

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestSaveRoute(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	createdAt := time.Now()
	mock.ExpectQuery(`INSERT INTO saved_routes`).
		WithArgs("route-1", "morning run", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), 1.5, int64(600000), 9.0).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	route, err := store.Save(context.Background(), SavedRoute{
		ID:          "route-1",
		Name:        "morning run",
		Points:      []session.RoutePoint{{Lat: 0, Lng: 0, Timestamp: createdAt}},
		DistanceKm:  1.5,
		DurationMs:  600000,
		AvgSpeedKmh: 9.0,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !route.CreatedAt.Equal(createdAt) {
		t.Fatalf("expected returned created_at")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveAssignsID(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectQuery(`INSERT INTO saved_routes`).
		WithArgs(pgxmock.AnyArg(), "unnamed", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), 0.0, int64(0), 0.0).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	route, err := store.Save(context.Background(), SavedRoute{Name: "unnamed"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if route.ID == "" {
		t.Fatalf("expected generated id")
	}
}

func TestGetRoute(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectQuery(`SELECT id, name, points, waypoints, created_at, distance_km, duration_ms, avg_speed_kmh`).
		WithArgs("route-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "points", "waypoints", "created_at", "distance_km", "duration_ms", "avg_speed_kmh"}).
			AddRow("route-1", "morning run", []byte(`[{"lat":0,"lng":0.009,"timestamp":"2024-05-01T08:00:00Z"}]`), []byte(`[]`), time.Now(), 1.0, int64(300000), 12.0))

	route, err := store.Get(context.Background(), "route-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(route.Points) != 1 || route.Points[0].Lng != 0.009 {
		t.Fatalf("points not decoded: %+v", route.Points)
	}
}

func TestGetRouteCorruptPoints(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectQuery(`SELECT id, name, points, waypoints, created_at, distance_km, duration_ms, avg_speed_kmh`).
		WithArgs("route-2").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "points", "waypoints", "created_at", "distance_km", "duration_ms", "avg_speed_kmh"}).
			AddRow("route-2", "bad", []byte(`{not json`), []byte(`[]`), time.Now(), 0.0, int64(0), 0.0))

	if _, err := store.Get(context.Background(), "route-2"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestListRoutes(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectQuery(`SELECT id, name, points, waypoints, created_at, distance_km, duration_ms, avg_speed_kmh`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "points", "waypoints", "created_at", "distance_km", "duration_ms", "avg_speed_kmh"}).
			AddRow("route-1", "a", []byte(`[]`), []byte(`[]`), time.Now(), 1.0, int64(1), 1.0).
			AddRow("route-2", "b", []byte(`[]`), []byte(`[]`), time.Now(), 2.0, int64(2), 2.0))

	list, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(list))
	}
}

func TestListRoutesQueryError(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectQuery(`SELECT id, name, points, waypoints, created_at, distance_km, duration_ms, avg_speed_kmh`).
		WillReturnError(errRoutes)

	if _, err := store.List(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestDeleteRoute(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectExec(`DELETE FROM saved_routes`).
		WithArgs("route-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	if err := store.Delete(context.Background(), "route-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestFromSession(t *testing.T) {
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	clock := base
	sess := session.NewWithClock("hill loop", nil, func() time.Time { return clock })
	if err := sess.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	sess.RecordPoint(session.Position{Lat: 0, Lng: 0, Timestamp: base})
	sess.RecordPoint(session.Position{Lat: 0, Lng: 0.009, Timestamp: base.Add(5 * time.Minute)})
	clock = clock.Add(10 * time.Minute)
	sess.Stop()

	route := FromSession(sess)
	if route.ID != sess.ID() || route.Name != "hill loop" {
		t.Fatalf("identity not carried over")
	}
	if len(route.Points) != 2 {
		t.Fatalf("points not carried over")
	}
	if route.DurationMs != (10 * time.Minute).Milliseconds() {
		t.Fatalf("unexpected duration %d", route.DurationMs)
	}
	if route.DistanceKm <= 0 || route.AvgSpeedKmh <= 0 {
		t.Fatalf("expected derived metrics, got %v km %v km/h", route.DistanceKm, route.AvgSpeedKmh)
	}
}

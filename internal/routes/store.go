package routes

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jrodrigopuca/tracking/internal/db"
	"github.com/jrodrigopuca/tracking/internal/session"
)

// SavedRoute is a finished session persisted to permanent storage.
// Distance, duration, and average speed are computed once at save time
// from the session's final state.
type SavedRoute struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Points      []session.RoutePoint `json:"points"`
	Waypoints   []session.Waypoint   `json:"waypoints,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
	DistanceKm  float64              `json:"distance"`
	DurationMs  int64                `json:"duration"`
	AvgSpeedKmh float64              `json:"averageSpeed"`
}

type Store struct {
	db db.Querier
}

func NewStore(db db.Querier) *Store {
	return &Store{db: db}
}

// FromSession builds the permanent record for a stopped session.
func FromSession(sess *session.Session) SavedRoute {
	return SavedRoute{
		ID:          sess.ID(),
		Name:        sess.Name(),
		Points:      sess.Points(),
		Waypoints:   sess.Waypoints(),
		CreatedAt:   sess.CreatedAt(),
		DistanceKm:  sess.DistanceKm(),
		DurationMs:  sess.ElapsedTime().Milliseconds(),
		AvgSpeedKmh: sess.AverageSpeedKmh(),
	}
}

func (s *Store) Save(ctx context.Context, route SavedRoute) (SavedRoute, error) {
	if route.ID == "" {
		route.ID = uuid.NewString()
	}
	points, err := json.Marshal(route.Points)
	if err != nil {
		return SavedRoute{}, err
	}
	waypoints, err := json.Marshal(route.Waypoints)
	if err != nil {
		return SavedRoute{}, err
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO saved_routes (id, name, points, waypoints, created_at, distance_km, duration_ms, avg_speed_kmh)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, route.ID, route.Name, points, waypoints, route.CreatedAt, route.DistanceKm, route.DurationMs, route.AvgSpeedKmh)
	if err := row.Scan(&route.CreatedAt); err != nil {
		return SavedRoute{}, err
	}
	return route, nil
}

func (s *Store) Get(ctx context.Context, id string) (SavedRoute, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, points, waypoints, created_at, distance_km, duration_ms, avg_speed_kmh
		FROM saved_routes WHERE id=$1
	`, id)
	return scanRoute(row.Scan)
}

func (s *Store) List(ctx context.Context) ([]SavedRoute, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, points, waypoints, created_at, distance_km, duration_ms, avg_speed_kmh
		FROM saved_routes
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []SavedRoute
	for rows.Next() {
		route, err := scanRoute(rows.Scan)
		if err != nil {
			return nil, err
		}
		routes = append(routes, route)
	}
	return routes, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM saved_routes WHERE id=$1`, id)
	return err
}

func scanRoute(scan func(dest ...any) error) (SavedRoute, error) {
	var route SavedRoute
	var points, waypoints []byte
	if err := scan(&route.ID, &route.Name, &points, &waypoints, &route.CreatedAt, &route.DistanceKm, &route.DurationMs, &route.AvgSpeedKmh); err != nil {
		return SavedRoute{}, err
	}
	if err := json.Unmarshal(points, &route.Points); err != nil {
		return SavedRoute{}, err
	}
	if len(waypoints) > 0 {
		if err := json.Unmarshal(waypoints, &route.Waypoints); err != nil {
			return SavedRoute{}, err
		}
	}
	return route, nil
}

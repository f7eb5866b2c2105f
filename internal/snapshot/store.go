package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jrodrigopuca/tracking/internal/session"
)

const slotKey = "tracking:session:snapshot"

// DefaultMaxAge is the staleness window: snapshots older than this are
// expired and never restored.
const DefaultMaxAge = 24 * time.Hour

// Snapshot is the persisted recovery state of an in-progress session.
// Timestamps are ms-epoch integers.
type Snapshot struct {
	Name        string     `json:"name"`
	Points      []Point    `json:"points"`
	Waypoints   []Waypoint `json:"waypoints"`
	StartTime   int64      `json:"startTime"`
	ElapsedTime int64      `json:"elapsedTime"`
	SavedAt     int64      `json:"savedAt"`
}

type Point struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Timestamp int64   `json:"timestamp"`
}

type Waypoint struct {
	ID        string  `json:"id"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Name      string  `json:"name"`
	Timestamp int64   `json:"timestamp"`
}

// Store persists the single snapshot slot in Redis. Losing a snapshot
// is less bad than disturbing the active session, so Save and Load
// swallow storage and parse failures after logging them.
type Store struct {
	rdb    *redis.Client
	maxAge time.Duration
	now    func() time.Time
}

func NewStore(rdb *redis.Client, maxAge time.Duration) *Store {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Store{rdb: rdb, maxAge: maxAge, now: time.Now}
}

// Save serializes the session into the slot. Best-effort: a write
// failure is logged, never propagated.
func (s *Store) Save(ctx context.Context, sess *session.Session) {
	if s.rdb == nil || sess == nil {
		return
	}

	snap := fromSession(sess, s.now())
	payload, err := json.Marshal(snap)
	if err != nil {
		log.Printf("snapshot marshal error: %v", err)
		return
	}
	if err := s.rdb.Set(ctx, slotKey, payload, 0).Err(); err != nil {
		log.Printf("snapshot save error: %v", err)
	}
}

// Load reads and parses the slot. Absent, corrupt, or stale snapshots
// yield nil; a stale slot is deleted on the way out.
func (s *Store) Load(ctx context.Context) *Snapshot {
	if s.rdb == nil {
		return nil
	}

	payload, err := s.rdb.Get(ctx, slotKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("snapshot load error: %v", err)
		}
		return nil
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		log.Printf("snapshot parse error: %v", err)
		return nil
	}

	age := s.now().Sub(time.UnixMilli(snap.SavedAt))
	if age >= s.maxAge {
		s.Clear(ctx)
		return nil
	}
	return &snap
}

// Clear removes the slot. Called after a permanent save, an explicit
// discard, or a successful restoration.
func (s *Store) Clear(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, slotKey).Err(); err != nil {
		log.Printf("snapshot clear error: %v", err)
	}
}

// Restore rebuilds an Active session from a snapshot. The replayed
// points bypass the ingestion policy; they were validated when first
// recorded.
func Restore(snap *Snapshot, policy *session.IngestionPolicy, now func() time.Time) *session.Session {
	points := make([]session.RoutePoint, len(snap.Points))
	for i, p := range snap.Points {
		points[i] = session.RoutePoint{Lat: p.Lat, Lng: p.Lng, Timestamp: time.UnixMilli(p.Timestamp)}
	}
	waypoints := make([]session.Waypoint, len(snap.Waypoints))
	for i, w := range snap.Waypoints {
		waypoints[i] = session.Waypoint{ID: w.ID, Lat: w.Lat, Lng: w.Lng, Name: w.Name, Timestamp: time.UnixMilli(w.Timestamp)}
	}
	var startedAt time.Time
	if snap.StartTime > 0 {
		startedAt = time.UnixMilli(snap.StartTime)
	}
	elapsed := time.Duration(snap.ElapsedTime) * time.Millisecond
	return session.Restore(snap.Name, startedAt, points, waypoints, elapsed, policy, now)
}

func fromSession(sess *session.Session, savedAt time.Time) Snapshot {
	pts := sess.Points()
	points := make([]Point, len(pts))
	for i, p := range pts {
		points[i] = Point{Lat: p.Lat, Lng: p.Lng, Timestamp: p.Timestamp.UnixMilli()}
	}
	wps := sess.Waypoints()
	waypoints := make([]Waypoint, len(wps))
	for i, w := range wps {
		waypoints[i] = Waypoint{ID: w.ID, Lat: w.Lat, Lng: w.Lng, Name: w.Name, Timestamp: w.Timestamp.UnixMilli()}
	}
	return Snapshot{
		Name:        sess.Name(),
		Points:      points,
		Waypoints:   waypoints,
		StartTime:   sess.CreatedAt().UnixMilli(),
		ElapsedTime: sess.ElapsedTime().Milliseconds(),
		SavedAt:     savedAt.UnixMilli(),
	}
}

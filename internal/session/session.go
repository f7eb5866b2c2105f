package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jrodrigopuca/tracking/internal/geo"
)

type State string

const (
	StateIdle    State = "idle"
	StateActive  State = "active"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

const maxWaypointNameLen = 50

// Position is a raw fix from a position source. Accuracy and Timestamp
// are optional; a zero Timestamp is stamped on ingestion.
type Position struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	AccuracyM float64   `json:"accuracy_m,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// RoutePoint is a Position that was accepted into a session. It always
// carries a timestamp and is immutable once recorded.
type RoutePoint struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

type Waypoint struct {
	ID        string    `json:"id"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the tracking aggregate. Fields are only mutated through
// its methods so that distance and speed stay derived from the point
// list and can never desynchronize from it. A session is single-owner;
// accessors hand out copies.
type Session struct {
	id        string
	name      string
	createdAt time.Time
	state     State

	points    []RoutePoint
	waypoints []Waypoint

	accumulated  time.Duration
	segmentStart time.Time

	policy *IngestionPolicy
	now    func() time.Time
}

func New(name string, policy *IngestionPolicy) *Session {
	return NewWithClock(name, policy, time.Now)
}

func NewWithClock(name string, policy *IngestionPolicy, now func() time.Time) *Session {
	return &Session{
		id:        uuid.NewString(),
		name:      name,
		createdAt: now(),
		state:     StateIdle,
		policy:    policy,
		now:       now,
	}
}

// Restore rebuilds an Active session from already-validated historical
// points, keeping the original start time and previously accumulated
// elapsed time and opening a fresh active segment from now. The
// ingestion policy is not consulted for the replayed points.
func Restore(name string, startedAt time.Time, points []RoutePoint, waypoints []Waypoint, elapsed time.Duration, policy *IngestionPolicy, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	s := NewWithClock(name, policy, now)
	if !startedAt.IsZero() {
		s.createdAt = startedAt
	}
	s.points = append(s.points, points...)
	s.waypoints = append(s.waypoints, waypoints...)
	s.accumulated = elapsed
	s.state = StateActive
	s.segmentStart = now()
	return s
}

// Start moves Idle to Active and opens the first active segment.
func (s *Session) Start() error {
	if s.state != StateIdle {
		return ErrAlreadyStarted
	}
	s.state = StateActive
	s.segmentStart = s.now()
	s.accumulated = 0
	return nil
}

// Pause folds the current segment into the accumulated elapsed time.
// Reports whether the state changed; anything but Active is a no-op.
func (s *Session) Pause() bool {
	if s.state != StateActive {
		return false
	}
	s.accumulated += s.now().Sub(s.segmentStart)
	s.segmentStart = time.Time{}
	s.state = StatePaused
	return true
}

// Resume opens a fresh active segment; accumulated time is preserved.
func (s *Session) Resume() bool {
	if s.state != StatePaused {
		return false
	}
	s.state = StateActive
	s.segmentStart = s.now()
	return true
}

// Stop ends the session. A final active segment is folded in first so
// elapsed-time queries stay stable afterwards. Stopped is terminal.
func (s *Session) Stop() bool {
	switch s.state {
	case StateActive:
		s.accumulated += s.now().Sub(s.segmentStart)
		s.segmentStart = time.Time{}
	case StatePaused:
	default:
		return false
	}
	s.state = StateStopped
	return true
}

// RecordPoint runs fix through the ingestion policy and appends it on
// acceptance. Outside Active/Paused it rejects without touching state,
// so a stray late callback after Stop cannot corrupt the session.
func (s *Session) RecordPoint(fix Position) (RoutePoint, RejectReason) {
	if s.state != StateActive && s.state != StatePaused {
		return RoutePoint{}, RejectInactive
	}

	now := s.now()
	if reason := s.policy.Admit(fix, s.points, now); reason != RejectNone {
		return RoutePoint{}, reason
	}

	ts := fix.Timestamp
	if ts.IsZero() {
		ts = now
	}
	pt := RoutePoint{Lat: fix.Lat, Lng: fix.Lng, Timestamp: ts}
	s.points = append(s.points, pt)
	return pt, RejectNone
}

// AddWaypoint attaches a named waypoint at the last recorded point.
func (s *Session) AddWaypoint(name string) (Waypoint, error) {
	if s.state != StateActive && s.state != StatePaused {
		return Waypoint{}, ErrSessionInactive
	}
	if len(s.points) == 0 {
		return Waypoint{}, ErrNoPositionAvailable
	}

	name = strings.TrimSpace(name)
	if runes := []rune(name); len(runes) > maxWaypointNameLen {
		name = string(runes[:maxWaypointNameLen])
	}

	last := s.points[len(s.points)-1]
	wp := Waypoint{
		ID:        uuid.NewString(),
		Lat:       last.Lat,
		Lng:       last.Lng,
		Name:      name,
		Timestamp: s.now(),
	}
	s.waypoints = append(s.waypoints, wp)
	return wp, nil
}

func (s *Session) ID() string           { return s.id }
func (s *Session) Name() string         { return s.name }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) State() State         { return s.state }
func (s *Session) PointCount() int      { return len(s.points) }

func (s *Session) Points() []RoutePoint {
	out := make([]RoutePoint, len(s.points))
	copy(out, s.points)
	return out
}

func (s *Session) Waypoints() []Waypoint {
	out := make([]Waypoint, len(s.waypoints))
	copy(out, s.waypoints)
	return out
}

// ElapsedTime is accumulated time plus the open segment when Active.
func (s *Session) ElapsedTime() time.Duration {
	if s.state == StateActive {
		return s.accumulated + s.now().Sub(s.segmentStart)
	}
	return s.accumulated
}

func (s *Session) DistanceKm() float64 {
	return geo.TotalDistanceKm(coordinates(s.points))
}

// CurrentSpeedKmh derives speed from the last two points and their
// timestamp delta. Fewer than two points, or a non-positive delta,
// yields 0.
func (s *Session) CurrentSpeedKmh() float64 {
	n := len(s.points)
	if n < 2 {
		return 0
	}
	a, b := s.points[n-2], s.points[n-1]
	dt := b.Timestamp.Sub(a.Timestamp)
	if dt <= 0 {
		return 0
	}
	d := geo.HaversineKm(a.Lat, a.Lng, b.Lat, b.Lng)
	return d / dt.Hours()
}

func (s *Session) AverageSpeedKmh() float64 {
	elapsed := s.ElapsedTime()
	if elapsed <= 0 {
		return 0
	}
	return s.DistanceKm() / elapsed.Hours()
}

func coordinates(points []RoutePoint) []geo.Coordinate {
	coords := make([]geo.Coordinate, len(points))
	for i, p := range points {
		coords[i] = geo.Coordinate{Lat: p.Lat, Lng: p.Lng}
	}
	return coords
}

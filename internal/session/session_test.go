package session

import (
	"math"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSession(policy *IngestionPolicy) (*Session, *fakeClock) {
	clock := newFakeClock()
	return NewWithClock("morning run", policy, clock.now), clock
}

func TestStartOnlyFromIdle(t *testing.T) {
	s, _ := newTestSession(nil)
	if s.State() != StateIdle {
		t.Fatalf("expected idle state")
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.State() != StateActive {
		t.Fatalf("expected active state")
	}
	if err := s.Start(); err != ErrAlreadyStarted {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestElapsedTimeAcrossPauses(t *testing.T) {
	s, clock := newTestSession(nil)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.ElapsedTime() != 0 {
		t.Fatalf("expected zero elapsed right after start, got %v", s.ElapsedTime())
	}

	clock.advance(5 * time.Second)
	if !s.Pause() {
		t.Fatalf("pause should transition")
	}
	if s.ElapsedTime() != 5*time.Second {
		t.Fatalf("expected 5s elapsed, got %v", s.ElapsedTime())
	}

	// Wall clock keeps moving while paused; elapsed must not.
	clock.advance(time.Hour)
	if s.ElapsedTime() != 5*time.Second {
		t.Fatalf("elapsed advanced while paused: %v", s.ElapsedTime())
	}

	if !s.Resume() {
		t.Fatalf("resume should transition")
	}
	clock.advance(7 * time.Second)
	if !s.Pause() {
		t.Fatalf("second pause should transition")
	}
	if s.ElapsedTime() != 12*time.Second {
		t.Fatalf("expected 12s elapsed, got %v", s.ElapsedTime())
	}
}

func TestTransitionMisuseIsNoOp(t *testing.T) {
	s, _ := newTestSession(nil)
	if s.Pause() {
		t.Fatalf("pause from idle should be a no-op")
	}
	if s.Resume() {
		t.Fatalf("resume from idle should be a no-op")
	}
	if s.Stop() {
		t.Fatalf("stop from idle should be a no-op")
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.Resume() {
		t.Fatalf("resume from active should be a no-op")
	}
	if !s.Stop() {
		t.Fatalf("stop from active should transition")
	}
	if s.Stop() {
		t.Fatalf("stop is terminal")
	}
	if s.Resume() {
		t.Fatalf("resume after stop should be a no-op")
	}
}

func TestStopFoldsFinalSegment(t *testing.T) {
	s, clock := newTestSession(nil)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.advance(30 * time.Second)
	s.Stop()

	got := s.ElapsedTime()
	clock.advance(time.Hour)
	if got != 30*time.Second || s.ElapsedTime() != got {
		t.Fatalf("elapsed unstable after stop: %v then %v", got, s.ElapsedTime())
	}
}

func TestRecordPointLifecycleGuard(t *testing.T) {
	s, _ := newTestSession(nil)

	if _, reason := s.RecordPoint(Position{Lat: 1, Lng: 1}); reason != RejectInactive {
		t.Fatalf("expected rejection in idle, got %q", reason)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, reason := s.RecordPoint(Position{Lat: 1, Lng: 1}); reason != RejectNone {
		t.Fatalf("expected acceptance while active, got %q", reason)
	}

	s.Pause()
	if _, reason := s.RecordPoint(Position{Lat: 2, Lng: 2}); reason != RejectNone {
		t.Fatalf("expected acceptance while paused, got %q", reason)
	}

	s.Stop()
	if _, reason := s.RecordPoint(Position{Lat: 3, Lng: 3}); reason != RejectInactive {
		t.Fatalf("late fix after stop must be dropped, got %q", reason)
	}
	if s.PointCount() != 2 {
		t.Fatalf("expected 2 points, got %d", s.PointCount())
	}
}

func TestDistanceAndSpeeds(t *testing.T) {
	s, clock := newTestSession(nil)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	start := clock.now()
	s.RecordPoint(Position{Lat: 0, Lng: 0, Timestamp: start})
	s.RecordPoint(Position{Lat: 0, Lng: 0.009, Timestamp: start.Add(5 * time.Second)})

	d := s.DistanceKm()
	if math.Abs(d-1) > 0.05 {
		t.Fatalf("expected ~1 km, got %v", d)
	}

	// ~1 km in 5 s is ~720 km/h; the exact value is distance over delta.
	wantSpeed := d / (5 * time.Second).Hours()
	if math.Abs(s.CurrentSpeedKmh()-wantSpeed) > 1e-9 {
		t.Fatalf("unexpected current speed: %v", s.CurrentSpeedKmh())
	}

	clock.advance(5 * time.Second)
	wantAvg := d / s.ElapsedTime().Hours()
	if math.Abs(s.AverageSpeedKmh()-wantAvg) > 1e-9 {
		t.Fatalf("unexpected average speed: %v", s.AverageSpeedKmh())
	}
}

func TestCurrentSpeedEdgeCases(t *testing.T) {
	s, clock := newTestSession(nil)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.CurrentSpeedKmh() != 0 {
		t.Fatalf("speed with no points must be 0")
	}

	ts := clock.now()
	s.RecordPoint(Position{Lat: 0, Lng: 0, Timestamp: ts})
	if s.CurrentSpeedKmh() != 0 {
		t.Fatalf("speed with one point must be 0")
	}

	// Identical timestamps give a non-positive delta.
	s.RecordPoint(Position{Lat: 0, Lng: 0.009, Timestamp: ts})
	if s.CurrentSpeedKmh() != 0 {
		t.Fatalf("speed with zero time delta must be 0")
	}
}

func TestAverageSpeedZeroElapsed(t *testing.T) {
	s, _ := newTestSession(nil)
	if s.AverageSpeedKmh() != 0 {
		t.Fatalf("average speed before start must be 0")
	}
}

func TestAddWaypoint(t *testing.T) {
	s, _ := newTestSession(nil)

	if _, err := s.AddWaypoint("summit"); err != ErrSessionInactive {
		t.Fatalf("expected ErrSessionInactive, got %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.AddWaypoint("summit"); err != ErrNoPositionAvailable {
		t.Fatalf("expected ErrNoPositionAvailable, got %v", err)
	}

	s.RecordPoint(Position{Lat: -6.2, Lng: 106.8})
	wp, err := s.AddWaypoint("  summit  ")
	if err != nil {
		t.Fatalf("add waypoint: %v", err)
	}
	if wp.Name != "summit" {
		t.Fatalf("expected trimmed name, got %q", wp.Name)
	}
	if wp.Lat != -6.2 || wp.Lng != 106.8 {
		t.Fatalf("waypoint must use last point coordinates, got %v,%v", wp.Lat, wp.Lng)
	}
	if wp.ID == "" {
		t.Fatalf("expected waypoint id")
	}

	long := make([]rune, 80)
	for i := range long {
		long[i] = 'x'
	}
	wp, err = s.AddWaypoint(string(long))
	if err != nil {
		t.Fatalf("add waypoint: %v", err)
	}
	if len([]rune(wp.Name)) != 50 {
		t.Fatalf("expected name truncated to 50, got %d", len([]rune(wp.Name)))
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	s, _ := newTestSession(nil)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.RecordPoint(Position{Lat: 1, Lng: 2})

	pts := s.Points()
	pts[0].Lat = 99
	if s.Points()[0].Lat != 1 {
		t.Fatalf("Points must return a copy")
	}
}

func TestRestorePreservesElapsedAndPoints(t *testing.T) {
	clock := newFakeClock()
	points := []RoutePoint{
		{Lat: 0, Lng: 0, Timestamp: clock.now().Add(-time.Minute)},
		{Lat: 0, Lng: 0.009, Timestamp: clock.now().Add(-30 * time.Second)},
	}
	waypoints := []Waypoint{{ID: "wp-1", Lat: 0, Lng: 0.009, Name: "bridge", Timestamp: clock.now()}}
	startedAt := clock.now().Add(-2 * time.Minute)

	s := Restore("restored", startedAt, points, waypoints, 42*time.Second, nil, clock.now)
	if s.State() != StateActive {
		t.Fatalf("restored session must be active")
	}
	if !s.CreatedAt().Equal(startedAt) {
		t.Fatalf("restored session must keep its original start time, got %v", s.CreatedAt())
	}
	if s.PointCount() != 2 || len(s.Waypoints()) != 1 {
		t.Fatalf("restored session lost data")
	}
	if s.ElapsedTime() != 42*time.Second {
		t.Fatalf("elapsed must resume from snapshot, got %v", s.ElapsedTime())
	}

	clock.advance(8 * time.Second)
	if s.ElapsedTime() != 50*time.Second {
		t.Fatalf("expected elapsed to keep counting, got %v", s.ElapsedTime())
	}
}

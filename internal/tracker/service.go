package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jrodrigopuca/tracking/internal/events"
	"github.com/jrodrigopuca/tracking/internal/metrics"
	"github.com/jrodrigopuca/tracking/internal/routes"
	"github.com/jrodrigopuca/tracking/internal/session"
	"github.com/jrodrigopuca/tracking/internal/snapshot"
	"github.com/jrodrigopuca/tracking/internal/source"
	"github.com/jrodrigopuca/tracking/internal/stream"
)

var (
	ErrNoSession         = errors.New("no tracking session")
	ErrSessionInProgress = errors.New("a session is already in progress")
	ErrNoSnapshot        = errors.New("no usable snapshot")
	ErrNoRouteStore      = errors.New("no permanent route store configured")
)

// Policy is the ingestion configuration applied to every new session.
type Policy struct {
	MinInterval time.Duration
	Dedup       bool
}

// Service owns the single mutable session and composes the engine:
// ingestion policy, event channel, snapshot store, saved-route store,
// and the live stream bridge. Fiber handlers call in concurrently, so
// every entry point serializes on one mutex; inside it the engine runs
// to completion, which keeps transitions atomic.
type Service struct {
	mu sync.Mutex

	policy    Policy
	sess      *session.Session
	events    *events.Channel
	snapshots *snapshot.Store
	routes    *routes.Store
	cancel    source.CancelFunc
	now       func() time.Time
}

func NewService(policy Policy, snapshots *snapshot.Store, routeStore *routes.Store, hub *stream.Hub) *Service {
	s := &Service{
		policy:    policy,
		events:    events.NewChannel(),
		snapshots: snapshots,
		routes:    routeStore,
		now:       time.Now,
	}
	if hub != nil {
		s.bridgeToHub(hub)
	}
	return s
}

// Events exposes the engine's channel so observers can subscribe.
func (s *Service) Events() *events.Channel { return s.events }

func (s *Service) newPolicy() *session.IngestionPolicy {
	if s.policy.MinInterval <= 0 && !s.policy.Dedup {
		return nil
	}
	return &session.IngestionPolicy{MinInterval: s.policy.MinInterval, Dedup: s.policy.Dedup}
}

// Start creates a fresh session and moves it to Active.
func (s *Service) Start(name string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess != nil && s.sess.State() != session.StateStopped {
		return Status{}, ErrSessionInProgress
	}

	sess := session.NewWithClock(name, s.newPolicy(), s.now)
	if err := sess.Start(); err != nil {
		return Status{}, err
	}
	s.sess = sess

	metrics.SessionsStarted.Inc()
	s.publishSession(events.TopicSessionStarted)
	return s.status(), nil
}

func (s *Service) Pause() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		return Status{}, ErrNoSession
	}
	if s.sess.Pause() {
		s.publishSession(events.TopicSessionPaused)
	}
	return s.status(), nil
}

func (s *Service) Resume() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		return Status{}, ErrNoSession
	}
	if s.sess.Resume() {
		s.publishSession(events.TopicSessionResumed)
	}
	return s.status(), nil
}

// Stop ends the session and, when save is set, persists it as a
// permanent route and clears the recovery slot. The position source is
// cancelled first; any fix already past the cancel gate is still
// dropped by the stopped session.
func (s *Service) Stop(ctx context.Context, save bool) (Status, error) {
	s.Detach()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		return Status{}, ErrNoSession
	}

	if s.sess.Stop() {
		metrics.SessionsStopped.Inc()
		s.publishSession(events.TopicSessionStopped)
	}

	if save {
		// The session is stopped either way, so the recovery slot is
		// dead; clear it even when the save cannot happen.
		var saveErr error
		if s.routes == nil {
			saveErr = ErrNoRouteStore
		} else if _, err := s.routes.Save(ctx, routes.FromSession(s.sess)); err != nil {
			saveErr = err
		}
		if s.snapshots != nil {
			s.snapshots.Clear(ctx)
		}
		if saveErr != nil {
			return s.status(), saveErr
		}
	}
	return s.status(), nil
}

// Discard drops a stopped (or abandoned) session and its snapshot.
func (s *Service) Discard(ctx context.Context) {
	s.Detach()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sess = nil
	if s.snapshots != nil {
		s.snapshots.Clear(ctx)
	}
}

// RecordFix feeds one fix through the ingestion pipeline. Rejections
// are not errors: they surface only on the diagnostic topic and the
// rejection counter. The returned status is computed under the same
// lock as the recording, so it cannot include a concurrent fix.
func (s *Service) RecordFix(fix session.Position) (Status, session.RejectReason, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		return Status{}, session.RejectInactive, ErrNoSession
	}

	pt, reason := s.sess.RecordPoint(fix)
	if reason != session.RejectNone {
		metrics.PointsRejected.WithLabelValues(string(reason)).Inc()
		s.publish(events.TopicPointRejected, RejectEvent{
			Event:     events.TopicPointRejected,
			SessionID: s.sess.ID(),
			Reason:    string(reason),
			Fix:       fix,
		})
		return s.status(), reason, nil
	}

	metrics.PointsAccepted.Inc()
	s.publish(events.TopicPointAccepted, PointEvent{
		Event:           events.TopicPointAccepted,
		SessionID:       s.sess.ID(),
		Point:           pt,
		PointCount:      s.sess.PointCount(),
		DistanceKm:      s.sess.DistanceKm(),
		CurrentSpeedKmh: s.sess.CurrentSpeedKmh(),
	})
	return s.status(), session.RejectNone, nil
}

func (s *Service) AddWaypoint(name string) (session.Waypoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		return session.Waypoint{}, ErrNoSession
	}
	wp, err := s.sess.AddWaypoint(name)
	if err != nil {
		return session.Waypoint{}, err
	}
	s.publish(events.TopicWaypointAdded, WaypointEvent{
		Event:     events.TopicWaypointAdded,
		SessionID: s.sess.ID(),
		Waypoint:  wp,
	})
	return wp, nil
}

func (s *Service) Status() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil {
		return Status{}, ErrNoSession
	}
	return s.status(), nil
}

// SaveSnapshot persists the in-progress session to the recovery slot.
// Triggered by the client on visibility loss, unload, or save-and-exit.
func (s *Service) SaveSnapshot(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess == nil || s.sess.State() == session.StateStopped {
		return ErrNoSession
	}
	if s.snapshots != nil {
		s.snapshots.Save(ctx, s.sess)
		metrics.SnapshotsSaved.Inc()
	}
	return nil
}

// RestoreSnapshot rebuilds an Active session from the recovery slot.
// Absent, corrupt, and stale snapshots all yield ErrNoSnapshot; the
// caller falls back to a fresh Idle session.
func (s *Service) RestoreSnapshot(ctx context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess != nil && s.sess.State() != session.StateStopped {
		return Status{}, ErrSessionInProgress
	}
	if s.snapshots == nil {
		return Status{}, ErrNoSnapshot
	}

	snap := s.snapshots.Load(ctx)
	if snap == nil {
		metrics.SnapshotRestores.WithLabelValues("none").Inc()
		return Status{}, ErrNoSnapshot
	}

	s.sess = snapshot.Restore(snap, s.newPolicy(), s.now)
	s.snapshots.Clear(ctx)
	metrics.SnapshotRestores.WithLabelValues("ok").Inc()
	s.publishSession(events.TopicSessionResumed)
	return s.status(), nil
}

// Attach subscribes the engine to a position source. Source errors are
// surfaced to observers but do not stop the session; whether to stop is
// the caller's policy.
func (s *Service) Attach(src source.Source) error {
	s.Detach()

	cancel, err := src.Start(s.onFix, s.onSourceError)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	return nil
}

// Detach cancels the attached source, if any. Idempotent. The cancel
// runs outside the service lock: a source blocked mid-delivery on that
// lock could otherwise deadlock against us.
func (s *Service) Detach() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (s *Service) onFix(fix session.Position) {
	_, _, _ = s.RecordFix(fix)
}

func (s *Service) onSourceError(err source.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evt := SourceErrorEvent{
		Event:   events.TopicSourceError,
		Code:    err.Code,
		Message: sourceErrorMessage(err),
	}
	if s.sess != nil {
		evt.SessionID = s.sess.ID()
	}
	s.publish(events.TopicSourceError, evt)
}

func sourceErrorMessage(err source.Error) string {
	switch err.Code {
	case source.CodeUnsupported:
		return "positioning is not supported on this device"
	case source.CodePermissionDenied:
		return "location permission denied"
	case source.CodeUnavailable:
		return "position unavailable"
	case source.CodeTimeout:
		return "position request timed out"
	}
	return err.Message
}

// callers hold s.mu
func (s *Service) status() Status {
	return Status{
		SessionID:       s.sess.ID(),
		Name:            s.sess.Name(),
		State:           string(s.sess.State()),
		PointCount:      s.sess.PointCount(),
		WaypointCount:   len(s.sess.Waypoints()),
		DistanceKm:      s.sess.DistanceKm(),
		CurrentSpeedKmh: s.sess.CurrentSpeedKmh(),
		AverageSpeedKmh: s.sess.AverageSpeedKmh(),
		ElapsedMs:       s.sess.ElapsedTime().Milliseconds(),
		StartedAt:       s.sess.CreatedAt(),
	}
}

func (s *Service) publishSession(topic string) {
	s.publish(topic, SessionEvent{
		Event:     topic,
		SessionID: s.sess.ID(),
		Name:      s.sess.Name(),
		State:     string(s.sess.State()),
		ElapsedMs: s.sess.ElapsedTime().Milliseconds(),
	})
}

func (s *Service) publish(topic string, payload any) {
	s.events.Publish(topic, payload)
}

// bridgeToHub forwards every engine event to the session's live feed.
func (s *Service) bridgeToHub(hub *stream.Hub) {
	topics := []string{
		events.TopicSessionStarted,
		events.TopicSessionPaused,
		events.TopicSessionResumed,
		events.TopicSessionStopped,
		events.TopicPointAccepted,
		events.TopicWaypointAdded,
		events.TopicSourceError,
	}
	for _, topic := range topics {
		s.events.Subscribe(topic, func(payload any) {
			id := sessionIDOf(payload)
			if id == "" {
				return
			}
			if body, err := json.Marshal(payload); err == nil {
				hub.Broadcast(id, body)
			}
		})
	}
}

func sessionIDOf(payload any) string {
	switch p := payload.(type) {
	case SessionEvent:
		return p.SessionID
	case PointEvent:
		return p.SessionID
	case RejectEvent:
		return p.SessionID
	case WaypointEvent:
		return p.SessionID
	case SourceErrorEvent:
		return p.SessionID
	}
	return ""
}

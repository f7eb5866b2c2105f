package tracker

import (
	"time"

	"github.com/jrodrigopuca/tracking/internal/session"
)

// Status is the read model for the current session: identity plus the
// derived metrics, computed fresh on every query.
type Status struct {
	SessionID       string    `json:"session_id"`
	Name            string    `json:"name"`
	State           string    `json:"state"`
	PointCount      int       `json:"point_count"`
	WaypointCount   int       `json:"waypoint_count"`
	DistanceKm      float64   `json:"distance_km"`
	CurrentSpeedKmh float64   `json:"current_speed_kmh"`
	AverageSpeedKmh float64   `json:"average_speed_kmh"`
	ElapsedMs       int64     `json:"elapsed_ms"`
	StartedAt       time.Time `json:"started_at"`
}

// Event payloads broadcast to observers. All carry copies, never live
// engine state.

type SessionEvent struct {
	Event     string `json:"event"`
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	State     string `json:"state"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

type PointEvent struct {
	Event           string             `json:"event"`
	SessionID       string             `json:"session_id"`
	Point           session.RoutePoint `json:"point"`
	PointCount      int                `json:"point_count"`
	DistanceKm      float64            `json:"distance_km"`
	CurrentSpeedKmh float64            `json:"current_speed_kmh"`
}

type RejectEvent struct {
	Event     string           `json:"event"`
	SessionID string           `json:"session_id"`
	Reason    string           `json:"reason"`
	Fix       session.Position `json:"fix"`
}

type WaypointEvent struct {
	Event     string           `json:"event"`
	SessionID string           `json:"session_id"`
	Waypoint  session.Waypoint `json:"waypoint"`
}

type SourceErrorEvent struct {
	Event     string `json:"event"`
	SessionID string `json:"session_id,omitempty"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
}

package session

import "errors"

var (
	// ErrAlreadyStarted is returned by Start on any state but Idle.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrNoPositionAvailable is returned by AddWaypoint before any
	// point has been recorded.
	ErrNoPositionAvailable = errors.New("no position available")
	// ErrSessionInactive is returned by AddWaypoint outside of the
	// Active and Paused states.
	ErrSessionInactive = errors.New("session is not active")
)

package liveness

import "errors"

var (
	// ErrNoSession is returned when a frame or cancel arrives before Start
	ErrNoSession = errors.New("no liveness session")
	// ErrSessionActive is returned by Start while a session is running
	ErrSessionActive = errors.New("liveness session already active")
	// ErrSessionEnded is returned for frames submitted after a terminal status
	ErrSessionEnded = errors.New("liveness session has ended")
	// ErrInvalidFrame is returned for frames without usable dimensions
	ErrInvalidFrame = errors.New("invalid frame dimensions")
	// ErrLockedOut is returned when a subject exceeded the spoof limit
	ErrLockedOut = errors.New("subject is locked out")
	// ErrUnknownSession is returned for session IDs the manager does not hold
	ErrUnknownSession = errors.New("unknown session")
	// ErrTooManySessions is returned when the manager is at capacity
	ErrTooManySessions = errors.New("too many concurrent sessions")
)

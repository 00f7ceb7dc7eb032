package liveness

import (
	"fmt"
	"time"
)

// StatusKind is the coarse state reported after each frame
type StatusKind string

const (
	StatusNoFace      StatusKind = "NO_FACE"
	StatusAligning    StatusKind = "ALIGNING"
	StatusHolding     StatusKind = "HOLDING"
	StatusChallenge   StatusKind = "CHALLENGE"
	StatusSuccess     StatusKind = "SUCCESS"
	StatusSpoofFailed StatusKind = "SPOOF_FAILED"
	StatusCancelled   StatusKind = "CANCELLED"
	StatusTimedOut    StatusKind = "TIMED_OUT"
)

// Terminal reports whether the kind ends a session
func (k StatusKind) Terminal() bool {
	switch k {
	case StatusSuccess, StatusSpoofFailed, StatusCancelled, StatusTimedOut:
		return true
	default:
		return false
	}
}

// Status is the per-frame result handed back to the caller
type Status struct {
	Kind StatusKind `json:"kind"`
	// Remaining is the hold time left while HOLDING
	Remaining time.Duration `json:"remaining,omitempty"`
	// Challenge, Step and Total describe the active challenge while CHALLENGE
	Challenge ChallengeType `json:"challenge,omitempty"`
	Step      int           `json:"step,omitempty"`
	Total     int           `json:"total,omitempty"`
	// Artifact is set only on the frame that produced SUCCESS
	Artifact *Artifact `json:"artifact,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// Terminal reports whether the session ended with this status
func (s Status) Terminal() bool {
	return s.Kind.Terminal()
}

func (s Status) String() string {
	switch s.Kind {
	case StatusHolding:
		return fmt.Sprintf("%s (%.1fs)", s.Kind, s.Remaining.Seconds())
	case StatusChallenge:
		return fmt.Sprintf("%s %s %d/%d", s.Kind, s.Challenge, s.Step, s.Total)
	default:
		return string(s.Kind)
	}
}

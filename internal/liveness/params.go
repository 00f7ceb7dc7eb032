// Package liveness implements the frame-driven liveness verification engine:
// signal extraction from face landmarks, a stability gate, depth-variance
// spoof detection, a randomized challenge sequence and the final face capture.
package liveness

import (
	"time"

	"github.com/MrCodeEU/LiveCheck/internal/config"
)

// Params holds every tunable of the engine
type Params struct {
	// Spoof detection
	DepthWindow   int
	SpoofVariance float64

	// Stability gate
	StabilityWindow int
	StabilityMaxStd float64
	Hold            time.Duration
	MouthClosedMax  float64

	// Head direction classification
	TurnLeft  float64
	TurnRight float64

	// Challenges
	Challenges       []ChallengeType
	BlinkThreshold   float64
	BlinkFrames      int
	MouthOpenMin     float64
	MouthOpenFrames  int
	TurnFrames       int
	ChallengeTimeout time.Duration

	// Capture
	PadX        float64
	PadY        float64
	JPEGQuality int
}

// DefaultParams returns the engine defaults
func DefaultParams() Params {
	return FromConfig(config.DefaultConfig())
}

// FromConfig maps the application configuration onto engine parameters
func FromConfig(cfg *config.Config) Params {
	l, ch, c := cfg.Liveness, cfg.Challenge, cfg.Capture

	return Params{
		DepthWindow:      l.DepthWindow,
		SpoofVariance:    l.SpoofVariance,
		StabilityWindow:  l.StabilityWindow,
		StabilityMaxStd:  l.StabilityMaxStd,
		Hold:             time.Duration(l.HoldSeconds * float64(time.Second)),
		MouthClosedMax:   l.MouthClosedMax,
		TurnLeft:         l.TurnLeftThreshold,
		TurnRight:        l.TurnRightThreshold,
		Challenges:       ParseChallengeTypes(ch.ChallengeTypes),
		BlinkThreshold:   ch.BlinkThreshold,
		BlinkFrames:      ch.BlinkFrames,
		MouthOpenMin:     ch.MouthOpenMin,
		MouthOpenFrames:  ch.MouthOpenFrames,
		TurnFrames:       ch.TurnFrames,
		ChallengeTimeout: time.Duration(ch.TimeoutSeconds * float64(time.Second)),
		PadX:             c.PadX,
		PadY:             c.PadY,
		JPEGQuality:      c.JPEGQuality,
	}
}

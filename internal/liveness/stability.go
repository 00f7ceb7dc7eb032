package liveness

import (
	"math"
	"time"

	"github.com/montanaflynn/stats"
)

// GateResult describes the stability gate after one frame
type GateResult struct {
	// Aligned is true while the face is centered, the mouth closed and the
	// nose position stable
	Aligned bool
	// Open is true once the face stayed aligned for the full hold duration
	Open bool
	// Remaining is the hold time still required while aligned
	Remaining time.Duration
}

// StabilityGate requires the face to be centered, mouth closed and motionless
// for a continuous hold period before challenges begin
type StabilityGate struct {
	xs, ys         *window
	maxStd         float64
	mouthClosedMax float64
	hold           time.Duration
	holdStart      time.Time
}

// NewStabilityGate creates a gate from the engine parameters
func NewStabilityGate(p Params) *StabilityGate {
	return &StabilityGate{
		xs:             newWindow(p.StabilityWindow),
		ys:             newWindow(p.StabilityWindow),
		maxStd:         p.StabilityMaxStd,
		mouthClosedMax: p.MouthClosedMax,
		hold:           p.Hold,
	}
}

// Evaluate feeds one frame into the gate. Any frame that breaks alignment
// restarts the full hold requirement.
func (g *StabilityGate) Evaluate(sig Signals, now time.Time) GateResult {
	g.xs.push(sig.Nose.X)
	g.ys.push(sig.Nose.Y)

	if sig.Direction != DirectionCenter || sig.MouthRatio >= g.mouthClosedMax || !g.stable() {
		g.ResetHold()
		return GateResult{}
	}

	if g.holdStart.IsZero() {
		g.holdStart = now
	}

	elapsed := now.Sub(g.holdStart)
	if elapsed >= g.hold {
		return GateResult{Aligned: true, Open: true}
	}

	return GateResult{Aligned: true, Remaining: g.hold - elapsed}
}

// stable reports whether the buffered nose positions barely move
func (g *StabilityGate) stable() bool {
	if !g.xs.full() {
		return false
	}

	stdX, err := stats.StandardDeviationPopulation(g.xs.values())
	if err != nil {
		return false
	}
	stdY, err := stats.StandardDeviationPopulation(g.ys.values())
	if err != nil {
		return false
	}

	return math.Max(stdX, stdY) < g.maxStd
}

// ResetHold clears the hold timer without touching the position history
func (g *StabilityGate) ResetHold() {
	g.holdStart = time.Time{}
}

// Holding reports whether a hold interval is in progress
func (g *StabilityGate) Holding() bool {
	return !g.holdStart.IsZero()
}

// Reset discards the position history and the hold timer
func (g *StabilityGate) Reset() {
	g.xs.reset()
	g.ys.reset()
	g.ResetHold()
}

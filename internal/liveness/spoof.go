package liveness

import "github.com/montanaflynn/stats"

// SpoofVerdict is the outcome of one spoof check
type SpoofVerdict int

const (
	// SpoofPending means the depth window is not full yet
	SpoofPending SpoofVerdict = iota
	// SpoofLive means the depth signal varies like a 3D face
	SpoofLive
	// SpoofDetected means the depth signal is flat, as from a photo or replay
	SpoofDetected
)

func (v SpoofVerdict) String() string {
	switch v {
	case SpoofLive:
		return "live"
	case SpoofDetected:
		return "spoof"
	default:
		return "pending"
	}
}

// SpoofDetector tracks the temporal variance of the nose depth signal.
// A live face shows natural micro-movement; a flat or looping replay
// produces near-constant depth.
type SpoofDetector struct {
	depths    *window
	threshold float64
	variance  float64
}

// NewSpoofDetector creates a detector over the last size depth samples that
// reports a spoof when their population variance is at or below threshold
func NewSpoofDetector(size int, threshold float64) *SpoofDetector {
	return &SpoofDetector{
		depths:    newWindow(size),
		threshold: threshold,
	}
}

// Check records a depth sample and evaluates the window
func (d *SpoofDetector) Check(depth float64) SpoofVerdict {
	d.depths.push(depth)
	if !d.depths.full() {
		return SpoofPending
	}

	variance, err := stats.PopulationVariance(d.depths.values())
	if err != nil {
		return SpoofPending
	}
	d.variance = variance

	if variance <= d.threshold {
		return SpoofDetected
	}
	return SpoofLive
}

// Variance returns the variance computed by the last full-window check
func (d *SpoofDetector) Variance() float64 {
	return d.variance
}

// Samples returns the number of buffered depth samples
func (d *SpoofDetector) Samples() int {
	return d.depths.len()
}

// Reset discards all buffered samples
func (d *SpoofDetector) Reset() {
	d.depths.reset()
	d.variance = 0
}

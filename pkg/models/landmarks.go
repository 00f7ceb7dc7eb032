// Package models provides the facial landmark data model and the client for
// the external landmark service
package models

import "math"

// MediaPipe face mesh landmark indices used by the liveness engine
const (
	NoseTip    = 1
	UpperLip   = 13
	LowerLip   = 14
	MouthLeft  = 61
	MouthRight = 291
	FaceLeft   = 234
	FaceRight  = 454

	// MinLandmarks is the smallest landmark set that covers every index above
	MinLandmarks = FaceRight + 1

	// FaceMeshLandmarks is the size of a full face mesh with irises
	FaceMeshLandmarks = 478
)

// Eye contour indices in EAR order: outer corner, two upper lid points,
// inner corner, two lower lid points.
var (
	LeftEye  = [6]int{33, 160, 158, 133, 153, 144}
	RightEye = [6]int{362, 385, 387, 263, 373, 380}
)

// Point3D is a normalized landmark. X and Y are fractions of the frame width
// and height, Z is a relative depth offset.
type Point3D struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Landmarks is the ordered keypoint set for one face in one frame
type Landmarks []Point3D

// Valid reports whether every index the engine reads is present and finite
func (l Landmarks) Valid() bool {
	if len(l) < MinLandmarks {
		return false
	}
	for _, p := range l {
		if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
			return false
		}
	}
	return true
}

// Distance2D returns the Euclidean distance between two landmarks in the image plane
func Distance2D(a, b Point3D) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

package liveness

import (
	"github.com/MrCodeEU/LiveCheck/pkg/models"
)

// HeadDirection is the coarse yaw classification of the head
type HeadDirection string

const (
	DirectionLeft   HeadDirection = "LEFT"
	DirectionCenter HeadDirection = "CENTER"
	DirectionRight  HeadDirection = "RIGHT"
)

// Signals are the per-frame scalars derived from a landmark set
type Signals struct {
	LeftEAR    float64
	RightEAR   float64
	MouthRatio float64
	Direction  HeadDirection
	Depth      float64
	Nose       models.Point3D
}

// MeanEAR returns the mean eye aspect ratio of both eyes
func (s Signals) MeanEAR() float64 {
	return (s.LeftEAR + s.RightEAR) / 2
}

// ExtractSignals derives the liveness signals from one frame's landmarks.
// It returns false when the landmark set is empty or malformed, which callers
// treat exactly like a frame without a face.
func ExtractSignals(lm models.Landmarks, turnLeft, turnRight float64) (Signals, bool) {
	if !lm.Valid() {
		return Signals{}, false
	}

	direction, depth := HeadPoseAndDepth(lm, turnLeft, turnRight)

	return Signals{
		LeftEAR:    EyeAspectRatio(lm, models.LeftEye),
		RightEAR:   EyeAspectRatio(lm, models.RightEye),
		MouthRatio: MouthRatio(lm),
		Direction:  direction,
		Depth:      depth,
		Nose:       lm[models.NoseTip],
	}, true
}

// EyeAspectRatio calculates the eye aspect ratio for blink detection.
// idx lists the six contour points: P0 and P3 are the horizontal corners,
// P1, P2, P4 and P5 the lid points.
func EyeAspectRatio(lm models.Landmarks, idx [6]int) float64 {
	p := make([]models.Point3D, 6)
	for i, j := range idx {
		p[i] = lm[j]
	}

	// Horizontal distance
	c := models.Distance2D(p[0], p[3])
	if c == 0 {
		return 0
	}

	// Vertical distances
	a := models.Distance2D(p[1], p[5])
	b := models.Distance2D(p[2], p[4])

	// EAR = (A + B) / (2 * C)
	return (a + b) / (2 * c)
}

// MouthRatio returns the vertical lip distance over the mouth width
func MouthRatio(lm models.Landmarks) float64 {
	width := models.Distance2D(lm[models.MouthLeft], lm[models.MouthRight])
	if width == 0 {
		return 0
	}
	return models.Distance2D(lm[models.UpperLip], lm[models.LowerLip]) / width
}

// HeadPoseAndDepth classifies head yaw from the nose position relative to the
// face edges and measures how far the nose sits in front of the face plane.
func HeadPoseAndDepth(lm models.Landmarks, turnLeft, turnRight float64) (HeadDirection, float64) {
	nose := lm[models.NoseTip]
	left := lm[models.FaceLeft]
	right := lm[models.FaceRight]

	faceWidth := right.X - left.X
	if faceWidth <= 0 {
		return DirectionCenter, 0
	}

	direction := DirectionCenter
	rel := (nose.X - left.X) / faceWidth
	if rel < turnLeft {
		direction = DirectionLeft
	} else if rel > turnRight {
		direction = DirectionRight
	}

	depth := nose.Z - (left.Z+right.Z)/2
	if depth < 0 {
		depth = -depth
	}

	return direction, depth
}

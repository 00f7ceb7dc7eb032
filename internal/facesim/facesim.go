// Package facesim builds synthetic MediaPipe-shaped landmark sets for
// exercising the liveness engine without a camera or a landmark model.
package facesim

import (
	"strings"
	"time"

	"github.com/MrCodeEU/LiveCheck/pkg/models"
)

// Pose describes what the synthetic face is doing
type Pose struct {
	Yaw        string // "", "left" or "right"
	EyesClosed bool
	MouthOpen  bool
	// Depth is how far the nose tip sits in front of the face edges
	Depth float64
	// OffsetX and OffsetY shift the whole face in normalized coordinates
	OffsetX float64
	OffsetY float64
}

const (
	eyeOpenHalf   = 0.006 // EAR 0.30
	eyeClosedHalf = 0.001 // EAR 0.05
	lipClosedHalf = 0.004 // mouth ratio 0.08
	lipOpenHalf   = 0.03  // mouth ratio 0.60
)

// Face returns a full 478 point landmark set for the pose
func Face(p Pose) models.Landmarks {
	lm := make(models.Landmarks, models.FaceMeshLandmarks)

	// Filler points spread over the inner face
	for i := range lm {
		lm[i] = models.Point3D{
			X: 0.35 + 0.3*float64((i*37)%100)/99,
			Y: 0.3 + 0.45*float64((i*53)%100)/99,
		}
	}

	lm[models.FaceLeft] = models.Point3D{X: 0.30, Y: 0.5}
	lm[models.FaceRight] = models.Point3D{X: 0.70, Y: 0.5}

	nose := models.Point3D{X: 0.5, Y: 0.5, Z: -p.Depth}
	switch strings.ToLower(p.Yaw) {
	case "left":
		nose.X = 0.32
	case "right":
		nose.X = 0.68
	}
	lm[models.NoseTip] = nose

	eyeHalf := eyeOpenHalf
	if p.EyesClosed {
		eyeHalf = eyeClosedHalf
	}
	placeEye(lm, models.LeftEye, 0.42, 0.42, eyeHalf)
	placeEye(lm, models.RightEye, 0.58, 0.42, eyeHalf)

	lipHalf := lipClosedHalf
	if p.MouthOpen {
		lipHalf = lipOpenHalf
	}
	lm[models.MouthLeft] = models.Point3D{X: 0.45, Y: 0.65}
	lm[models.MouthRight] = models.Point3D{X: 0.55, Y: 0.65}
	lm[models.UpperLip] = models.Point3D{X: 0.5, Y: 0.65 - lipHalf}
	lm[models.LowerLip] = models.Point3D{X: 0.5, Y: 0.65 + lipHalf}

	if p.OffsetX != 0 || p.OffsetY != 0 {
		for i := range lm {
			lm[i].X += p.OffsetX
			lm[i].Y += p.OffsetY
		}
	}

	return lm
}

// placeEye lays out the six contour points: corners at idx[0] and idx[3],
// upper lid at idx[1] and idx[2], lower lid at idx[4] and idx[5]
func placeEye(lm models.Landmarks, idx [6]int, cx, cy, half float64) {
	lm[idx[0]] = models.Point3D{X: cx - 0.02, Y: cy}
	lm[idx[1]] = models.Point3D{X: cx - 0.007, Y: cy - half}
	lm[idx[2]] = models.Point3D{X: cx + 0.007, Y: cy - half}
	lm[idx[3]] = models.Point3D{X: cx + 0.02, Y: cy}
	lm[idx[4]] = models.Point3D{X: cx + 0.007, Y: cy + half}
	lm[idx[5]] = models.Point3D{X: cx - 0.007, Y: cy + half}
}

// PoseFor returns the pose that satisfies a challenge name such as "BLINK"
// or "turn_left". Unknown names yield the neutral pose.
func PoseFor(challenge string) Pose {
	switch strings.ToUpper(challenge) {
	case "BLINK":
		return Pose{EyesClosed: true}
	case "TURN_LEFT":
		return Pose{Yaw: "left"}
	case "TURN_RIGHT":
		return Pose{Yaw: "right"}
	case "OPEN_MOUTH":
		return Pose{MouthOpen: true}
	default:
		return Pose{}
	}
}

// SawtoothDepth oscillates between 0.01 and 0.02 over ten frames
func SawtoothDepth(i int) float64 {
	return 0.01 + 0.01*float64(i%10)/9
}

// Frame is one step of a scripted sequence
type Frame struct {
	At        time.Duration
	Landmarks models.Landmarks
}

// Script options
const (
	NeutralFrames   = 40
	QualifyFrames   = 8
	RecoveryFrames  = 3
	DefaultInterval = 100 * time.Millisecond
)

// Script builds a live sequence: a still neutral face long enough to pass
// the stability gate, then each challenge in order followed by a few
// neutral frames. Depth follows SawtoothDepth throughout.
func Script(challenges []string, interval time.Duration) []Frame {
	if interval <= 0 {
		interval = DefaultInterval
	}

	var poses []Pose
	for n := 0; n < NeutralFrames; n++ {
		poses = append(poses, Pose{})
	}
	for _, c := range challenges {
		for n := 0; n < QualifyFrames; n++ {
			poses = append(poses, PoseFor(c))
		}
		for n := 0; n < RecoveryFrames; n++ {
			poses = append(poses, Pose{})
		}
	}

	frames := make([]Frame, len(poses))
	for i, p := range poses {
		p.Depth = SawtoothDepth(i)
		frames[i] = Frame{At: time.Duration(i) * interval, Landmarks: Face(p)}
	}
	return frames
}

// FlatScript builds n neutral frames with constant depth, as a printed photo
// or a screen replay would produce
func FlatScript(n int, depth float64, interval time.Duration) []Frame {
	if interval <= 0 {
		interval = DefaultInterval
	}

	frames := make([]Frame, n)
	for i := range frames {
		frames[i] = Frame{At: time.Duration(i) * interval, Landmarks: Face(Pose{Depth: depth})}
	}
	return frames
}

package models

import (
	"math"
	"testing"
)

func TestLandmarksValid(t *testing.T) {
	full := make(Landmarks, FaceMeshLandmarks)

	withNaN := make(Landmarks, MinLandmarks)
	withNaN[NoseTip].X = math.NaN()

	tests := []struct {
		name     string
		lm       Landmarks
		expected bool
	}{
		{"Nil", nil, false},
		{"TooFew", make(Landmarks, MinLandmarks-1), false},
		{"Minimal", make(Landmarks, MinLandmarks), true},
		{"FullMesh", full, true},
		{"NaN", withNaN, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.lm.Valid(); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestDistance2D(t *testing.T) {
	d := Distance2D(Point3D{X: 0, Y: 0, Z: 5}, Point3D{X: 0.3, Y: 0.4, Z: -5})
	if math.Abs(d-0.5) > 1e-12 {
		t.Errorf("Expected 0.5 ignoring depth, got %f", d)
	}
}

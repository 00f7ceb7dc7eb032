package liveness

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"testing"

	"github.com/MrCodeEU/LiveCheck/internal/facesim"
	"github.com/MrCodeEU/LiveCheck/pkg/models"
)

func TestFaceRegion(t *testing.T) {
	tests := []struct {
		name     string
		lm       models.Landmarks
		width    int
		height   int
		expected image.Rectangle
	}{
		{
			// Landmarks span x 0.30..0.70 and y 0.30..0.75
			name:     "CenteredFace",
			lm:       facesim.Face(facesim.Pose{}),
			width:    640,
			height:   480,
			expected: image.Rect(128, 68, 512, 436),
		},
		{
			name:     "ClampedAtTopLeft",
			lm:       facesim.Face(facesim.Pose{OffsetX: -0.3, OffsetY: -0.3}),
			width:    640,
			height:   480,
			expected: image.Rect(0, 0, 320, 292),
		},
		{
			name:     "SinglePoint",
			lm:       models.Landmarks{{X: 0.5, Y: 0.5}},
			width:    640,
			height:   480,
			expected: image.Rect(320, 240, 321, 241),
		},
		{
			name:     "SinglePointOnFarEdge",
			lm:       models.Landmarks{{X: 1, Y: 1}},
			width:    640,
			height:   480,
			expected: image.Rect(639, 479, 640, 480),
		},
		{
			name:     "OutsideFrame",
			lm:       models.Landmarks{{X: -0.5, Y: 2}},
			width:    640,
			height:   480,
			expected: image.Rect(0, 479, 1, 480),
		},
		{
			name:     "HugeCoordinate",
			lm:       append(facesim.Face(facesim.Pose{}), models.Point3D{X: 1e300, Y: 1e300}),
			width:    640,
			height:   480,
			expected: image.Rect(80, 26, 640, 480),
		},
		{
			name:     "Empty",
			lm:       nil,
			width:    640,
			height:   480,
			expected: image.Rect(0, 0, 1, 1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FaceRegion(tt.lm, tt.width, tt.height, 0.25, 0.35)
			if got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestFaceRegionAlwaysInsideFrame(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		width := 1 + rng.Intn(1920)
		height := 1 + rng.Intn(1080)

		lm := make(models.Landmarks, 1+rng.Intn(20))
		for j := range lm {
			lm[j] = models.Point3D{X: rng.Float64()*1.6 - 0.3, Y: rng.Float64()*1.6 - 0.3}
		}

		r := FaceRegion(lm, width, height, 0.25, 0.35)
		if r.Min.X < 0 || r.Min.Y < 0 || r.Max.X > width || r.Max.Y > height {
			t.Fatalf("Iteration %d: region %v outside %dx%d frame", i, r, width, height)
		}
		if r.Dx() < 1 || r.Dy() < 1 {
			t.Fatalf("Iteration %d: degenerate region %v", i, r)
		}
	}
}

func testFrame(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func TestFinalize(t *testing.T) {
	p := DefaultParams()
	lm := facesim.Face(facesim.Pose{})

	t.Run("WithImage", func(t *testing.T) {
		artifact, err := Finalize(lm, FrameMeta{Width: 640, Height: 480, Image: testFrame(640, 480)}, p)
		if err != nil {
			t.Fatalf("Failed to finalize: %v", err)
		}
		if len(artifact.JPEG) == 0 {
			t.Fatal("Expected encoded JPEG")
		}

		decoded, err := jpeg.Decode(bytes.NewReader(artifact.JPEG))
		if err != nil {
			t.Fatalf("Failed to decode artifact: %v", err)
		}
		b := decoded.Bounds()
		if b.Dx() != artifact.Width || b.Dy() != artifact.Height {
			t.Errorf("Expected %dx%d image, got %dx%d", artifact.Width, artifact.Height, b.Dx(), b.Dy())
		}
		if artifact.Region != image.Rect(128, 68, 512, 436) {
			t.Errorf("Unexpected region %v", artifact.Region)
		}
	})

	t.Run("OffsetImageBounds", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(100, 50, 740, 530))
		artifact, err := Finalize(lm, FrameMeta{Image: img, Width: 640, Height: 480}, p)
		if err != nil {
			t.Fatalf("Failed to finalize: %v", err)
		}
		decoded, err := jpeg.Decode(bytes.NewReader(artifact.JPEG))
		if err != nil {
			t.Fatalf("Failed to decode artifact: %v", err)
		}
		if decoded.Bounds().Dx() != artifact.Region.Dx() || decoded.Bounds().Dy() != artifact.Region.Dy() {
			t.Errorf("Expected crop of %v, got %v", artifact.Region, decoded.Bounds())
		}
	})

	t.Run("ImageSizeWins", func(t *testing.T) {
		artifact, err := Finalize(lm, FrameMeta{Width: 1280, Height: 960, Image: testFrame(640, 480)}, p)
		if err != nil {
			t.Fatalf("Failed to finalize: %v", err)
		}
		if artifact.Region != image.Rect(128, 68, 512, 436) {
			t.Errorf("Expected region in image pixels, got %v", artifact.Region)
		}
		decoded, err := jpeg.Decode(bytes.NewReader(artifact.JPEG))
		if err != nil {
			t.Fatalf("Failed to decode artifact: %v", err)
		}
		if decoded.Bounds().Dx() != 384 || decoded.Bounds().Dy() != 368 {
			t.Errorf("Expected 384x368 crop, got %v", decoded.Bounds())
		}
	})

	t.Run("WithoutImage", func(t *testing.T) {
		artifact, err := Finalize(lm, FrameMeta{Width: 640, Height: 480}, p)
		if err != nil {
			t.Fatalf("Failed to finalize: %v", err)
		}
		if artifact.JPEG != nil {
			t.Error("Expected no JPEG without a source image")
		}
		if artifact.Width != 384 || artifact.Height != 368 {
			t.Errorf("Expected 384x368 region, got %dx%d", artifact.Width, artifact.Height)
		}
	})
}

package replay

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrCodeEU/LiveCheck/internal/facesim"
	"github.com/MrCodeEU/LiveCheck/internal/liveness"
)

func TestSimulateAndReplay(t *testing.T) {
	p := liveness.DefaultParams()
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))

	tests := []struct {
		name     string
		spoof    bool
		expected liveness.StatusKind
		frames   int
	}{
		{"Live", false, liveness.StatusSuccess, 0},
		{"Spoof", true, liveness.StatusSpoofFailed, p.DepthWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "fixtures", tt.name+".yaml")
			if err := Simulate(p, 1234, 320, 240, tt.spoof).Save(path); err != nil {
				t.Fatalf("Failed to save fixture: %v", err)
			}

			fx, err := Load(path)
			if err != nil {
				t.Fatalf("Failed to load fixture: %v", err)
			}
			if fx.Seed != 1234 || fx.Width != 320 || len(fx.Frames) == 0 {
				t.Fatalf("Unexpected fixture header %s %dx%d seed %d", fx.Name, fx.Width, fx.Height, fx.Seed)
			}

			var statuses int
			res, err := fx.Run(fx.Controller(p, nil), img, func(i int, st liveness.Status) { statuses++ })
			if err != nil {
				t.Fatalf("Replay failed: %v", err)
			}

			if res.Final.Kind != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, res.Final)
			}
			if tt.frames > 0 && res.Frames != tt.frames {
				t.Errorf("Expected to stop after %d frames, got %d", tt.frames, res.Frames)
			}
			if statuses != res.Frames {
				t.Errorf("Expected %d status callbacks, got %d", res.Frames, statuses)
			}
			if tt.expected == liveness.StatusSuccess && len(res.Session.Artifact().JPEG) == 0 {
				t.Error("Expected an encoded capture")
			}
		})
	}
}

func TestFramePoints(t *testing.T) {
	lm := facesim.Face(facesim.Pose{Depth: 0.0123})
	f := NewFrame(1500*time.Millisecond, lm)

	if f.TimestampMs != 1500 {
		t.Errorf("Expected 1500ms, got %d", f.TimestampMs)
	}

	got := f.Points()
	if len(got) != len(lm) {
		t.Fatalf("Expected %d points, got %d", len(lm), len(got))
	}
	for i := range lm {
		if got[i] != lm[i] {
			t.Fatalf("Point %d: expected %+v, got %+v", i, lm[i], got[i])
		}
	}

	if (Frame{TimestampMs: 10}).Points() != nil {
		t.Error("Expected no landmarks for an empty frame")
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("name: x\nwidth: 0\nheight: 10\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("Expected error for zero width")
	}

	broken := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(broken, []byte("frames: [[[1, 2]"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(broken); err == nil {
		t.Error("Expected parse error")
	}
}

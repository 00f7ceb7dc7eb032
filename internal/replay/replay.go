// Package replay drives liveness sessions from recorded landmark fixtures
package replay

import (
	"fmt"
	"image"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/MrCodeEU/LiveCheck/internal/facesim"
	"github.com/MrCodeEU/LiveCheck/internal/liveness"
	"github.com/MrCodeEU/LiveCheck/pkg/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Fixture is a recorded frame sequence
type Fixture struct {
	Name   string `yaml:"name"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	// Seed fixes the challenge order so recorded challenge poses line up
	Seed   int64   `yaml:"seed"`
	Frames []Frame `yaml:"frames"`
}

// Frame is one recorded frame. An empty landmark list is a frame in which
// no face was found.
type Frame struct {
	TimestampMs int64        `yaml:"t_ms"`
	Landmarks   [][3]float64 `yaml:"landmarks,flow,omitempty"`
}

// Points converts the recorded landmarks
func (f Frame) Points() models.Landmarks {
	if len(f.Landmarks) == 0 {
		return nil
	}
	lm := make(models.Landmarks, len(f.Landmarks))
	for i, p := range f.Landmarks {
		lm[i] = models.Point3D{X: p[0], Y: p[1], Z: p[2]}
	}
	return lm
}

// NewFrame records landmarks at an offset from the start of the sequence
func NewFrame(at time.Duration, lm models.Landmarks) Frame {
	f := Frame{TimestampMs: at.Milliseconds()}
	for _, p := range lm {
		f.Landmarks = append(f.Landmarks, [3]float64{p.X, p.Y, p.Z})
	}
	return f
}

// Load reads a fixture file
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}

	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	if fx.Width <= 0 || fx.Height <= 0 {
		return nil, fmt.Errorf("fixture %s has invalid frame size %dx%d", path, fx.Width, fx.Height)
	}

	return &fx, nil
}

// Save writes a fixture file
func (fx *Fixture) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create fixture directory: %w", err)
	}

	data, err := yaml.Marshal(fx)
	if err != nil {
		return fmt.Errorf("failed to encode fixture: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write fixture: %w", err)
	}
	return nil
}

// Simulate records a synthetic sequence. A live sequence performs the
// challenges in the order a controller seeded with seed will ask for them;
// a spoofed one holds a flat, motionless face.
func Simulate(p liveness.Params, seed int64, width, height int, spoof bool) *Fixture {
	fx := &Fixture{
		Name:   "live",
		Width:  width,
		Height: height,
		Seed:   seed,
	}

	var frames []facesim.Frame
	if spoof {
		fx.Name = "spoof"
		frames = facesim.FlatScript(2*p.DepthWindow, 0.015, facesim.DefaultInterval)
	} else {
		order := liveness.NewChallengeSequencer(p, rand.New(rand.NewSource(seed))).Order()
		names := make([]string, len(order))
		for i, c := range order {
			names[i] = string(c)
		}
		frames = facesim.Script(names, facesim.DefaultInterval)
	}

	for _, f := range frames {
		fx.Frames = append(fx.Frames, NewFrame(f.At, f.Landmarks))
	}
	return fx
}

// Result summarizes a replay
type Result struct {
	Final   liveness.Status
	Session *liveness.Session
	// Frames is the number of fixture frames consumed
	Frames int
}

// Controller creates a controller whose challenge order matches the fixture
func (fx *Fixture) Controller(p liveness.Params, logger *logrus.Logger) *liveness.Controller {
	return liveness.NewController(p, logger, liveness.WithRand(rand.New(rand.NewSource(fx.Seed))))
}

// Run starts a session and feeds the fixture until it ends or the frames run
// out. img, when not nil, is used as the pixels of every frame.
func (fx *Fixture) Run(ctrl *liveness.Controller, img image.Image, onStatus func(i int, st liveness.Status)) (*Result, error) {
	s, err := ctrl.Start()
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	base := time.Now()
	res := &Result{Session: s}

	for i, f := range fx.Frames {
		meta := liveness.FrameMeta{
			Width:     fx.Width,
			Height:    fx.Height,
			Timestamp: base.Add(time.Duration(f.TimestampMs) * time.Millisecond),
			Image:     img,
		}

		st, err := ctrl.SubmitFrame(f.Points(), meta)
		if err != nil {
			return res, fmt.Errorf("frame %d: %w", i, err)
		}

		res.Final = st
		res.Frames = i + 1
		if onStatus != nil {
			onStatus(i, st)
		}
		if st.Terminal() {
			break
		}
	}

	return res, nil
}

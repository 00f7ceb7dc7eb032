package liveness

import (
	"fmt"
	"image"
	"io"
	"math/rand"
	"time"

	"github.com/MrCodeEU/LiveCheck/pkg/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FrameMeta carries everything about a frame except its landmarks
type FrameMeta struct {
	// Width and Height are the source frame size in pixels. When zero they
	// are taken from Image.
	Width  int
	Height int
	// Timestamp drives the hold timer; the controller clock is used when zero
	Timestamp time.Time
	// Image is optional; without it a successful session yields only the
	// crop region
	Image image.Image
}

// Outcome summarizes a finished session
type Outcome struct {
	SessionID      string
	Subject        string
	Status         StatusKind
	ChallengeOrder []ChallengeType
	Frames         int
	StartedAt      time.Time
	Duration       time.Duration
	Artifact       *Artifact
}

// Session is one verification attempt, from Start to a terminal status
type Session struct {
	id        string
	sequencer *ChallengeSequencer
	gate      *StabilityGate
	spoof     *SpoofDetector
	active    bool
	status    Status
	artifact  *Artifact
	frames    int
	startedAt time.Time
	endedAt   time.Time
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// ChallengeOrder returns the shuffled challenge order
func (s *Session) ChallengeOrder() []ChallengeType { return s.sequencer.Order() }

// CurrentIndex is -1 before challenges begin and len(order) on success
func (s *Session) CurrentIndex() int { return s.sequencer.Index() }

// Progress returns the consecutive qualifying frames of the current challenge
func (s *Session) Progress() int { return s.sequencer.Progress() }

// Active reports whether the session still accepts frames
func (s *Session) Active() bool { return s.active }

// Status returns the last reported status
func (s *Session) Status() Status { return s.status }

// Artifact returns the captured face, nil unless the session succeeded
func (s *Session) Artifact() *Artifact { return s.artifact }

// Frames returns the number of processed frames
func (s *Session) Frames() int { return s.frames }

// Outcome summarizes the session. Duration runs to the terminal frame, or
// to the last frame while the session is still active.
func (s *Session) Outcome() Outcome {
	return Outcome{
		SessionID:      s.id,
		Status:         s.status.Kind,
		ChallengeOrder: s.sequencer.Order(),
		Frames:         s.frames,
		StartedAt:      s.startedAt,
		Duration:       s.endedAt.Sub(s.startedAt),
		Artifact:       s.artifact,
	}
}

// Controller drives one session at a time through the engine. It is not
// safe for concurrent use; Manager serializes access per session.
type Controller struct {
	params  Params
	logger  *logrus.Logger
	rng     *rand.Rand
	now     func() time.Time
	session *Session
}

// Option configures a Controller
type Option func(*Controller)

// WithRand sets the random source used to shuffle challenges
func WithRand(rng *rand.Rand) Option {
	return func(c *Controller) {
		c.rng = rng
	}
}

// WithClock sets the clock used for frames without a timestamp
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// NewController creates a session controller
func NewController(p Params, logger *logrus.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	c := &Controller{
		params: p,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return c
}

// Session returns the current session, or nil before Start and after Reset
func (c *Controller) Session() *Session {
	return c.session
}

// Start begins a new session with a freshly shuffled challenge order and
// empty buffers. A session that already ended is replaced.
func (c *Controller) Start() (*Session, error) {
	if c.session != nil && c.session.active {
		return nil, ErrSessionActive
	}

	now := c.now()
	s := &Session{
		id:        uuid.NewString(),
		sequencer: NewChallengeSequencer(c.params, c.rng),
		gate:      NewStabilityGate(c.params),
		spoof:     NewSpoofDetector(c.params.DepthWindow, c.params.SpoofVariance),
		active:    true,
		status:    Status{Kind: StatusNoFace},
		startedAt: now,
		endedAt:   now,
	}
	c.session = s

	c.logger.Infof("Liveness session %s started, challenges: %v", s.id, s.sequencer.Order())
	return s, nil
}

// SubmitFrame runs one frame through the engine and returns the new status.
// A nil or malformed landmark set means no face was found.
func (c *Controller) SubmitFrame(lm models.Landmarks, meta FrameMeta) (Status, error) {
	s := c.session
	if s == nil {
		return Status{}, ErrNoSession
	}
	if !s.active {
		return s.endedStatus(), ErrSessionEnded
	}

	if (meta.Width <= 0 || meta.Height <= 0) && meta.Image != nil {
		b := meta.Image.Bounds()
		meta.Width, meta.Height = b.Dx(), b.Dy()
	}

	sig, ok := ExtractSignals(lm, c.params.TurnLeft, c.params.TurnRight)
	// Only frames with a face can reach the capture, which needs the size
	if ok && (meta.Width <= 0 || meta.Height <= 0) {
		return s.status, ErrInvalidFrame
	}

	now := meta.Timestamp
	if now.IsZero() {
		now = c.now()
	}
	s.frames++
	s.endedAt = now

	if !ok {
		s.gate.ResetHold()
		return s.report(Status{Kind: StatusNoFace, Message: "No face detected"}), nil
	}

	if s.spoof.Check(sig.Depth) == SpoofDetected {
		c.logger.Warnf("Spoof detected in session %s (depth variance %.3g)", s.id, s.spoof.Variance())
		s.spoof.Reset()
		s.gate.Reset()
		return c.terminate(s, Status{Kind: StatusSpoofFailed, Message: "Spoof detected"}), nil
	}

	if !s.sequencer.Started() {
		gate := s.gate.Evaluate(sig, now)
		switch {
		case gate.Open:
			s.sequencer.Begin(now)
			c.logger.Infof("Session %s: face stable, starting challenges", s.id)
		case gate.Aligned:
			return s.report(Status{Kind: StatusHolding, Remaining: gate.Remaining, Message: "Hold still"}), nil
		default:
			c.logger.Debugf("Session %s: aligning (direction %s, mouth %.2f)", s.id, sig.Direction, sig.MouthRatio)
			return s.report(Status{Kind: StatusAligning, Message: "Center your face and close your mouth"}), nil
		}
	}

	result := s.sequencer.Evaluate(sig, now)
	if result.Passed != "" {
		c.logger.Infof("Session %s: challenge %s passed", s.id, result.Passed)
	}

	switch {
	case result.Completed:
		artifact, err := Finalize(lm, meta, c.params)
		if err != nil {
			// The session stays active; the next frame retries the capture
			return s.status, fmt.Errorf("failed to finalize capture: %w", err)
		}
		s.artifact = artifact
		c.logger.Infof("Session %s succeeded after %d frames", s.id, s.frames)
		return c.terminate(s, Status{Kind: StatusSuccess, Artifact: artifact, Message: "Liveness verified"}), nil
	case result.TimedOut:
		current, _ := s.sequencer.Current()
		c.logger.Infof("Session %s: challenge %s timed out", s.id, current)
		return c.terminate(s, Status{Kind: StatusTimedOut, Challenge: current, Message: "Challenge timed out"}), nil
	}

	current, _ := s.sequencer.Current()
	c.logger.Debugf("Session %s: %s progress %d/%d", s.id, current, s.sequencer.Progress(), s.sequencer.Required(current))

	return s.report(Status{
		Kind:      StatusChallenge,
		Challenge: current,
		Step:      s.sequencer.Index() + 1,
		Total:     len(s.sequencer.order),
		Message:   current.Description(),
	}), nil
}

// Cancel ends the running session without an artifact
func (c *Controller) Cancel() error {
	s := c.session
	if s == nil {
		return ErrNoSession
	}
	if !s.active {
		return ErrSessionEnded
	}

	s.endedAt = c.now()
	c.terminate(s, Status{Kind: StatusCancelled, Message: "Cancelled"})
	c.logger.Infof("Session %s cancelled", s.id)
	return nil
}

// Reset discards the session so a fresh one can be started
func (c *Controller) Reset() {
	if c.session != nil {
		c.logger.Debugf("Session %s discarded", c.session.id)
	}
	c.session = nil
}

func (c *Controller) terminate(s *Session, st Status) Status {
	s.active = false
	return s.report(st)
}

func (s *Session) report(st Status) Status {
	s.status = st
	return st
}

// endedStatus is the terminal status without the one-time artifact
func (s *Session) endedStatus() Status {
	st := s.status
	st.Artifact = nil
	return st
}

package liveness

import (
	"math/rand"
	"strings"
	"time"
)

// ChallengeType represents the type of challenge
type ChallengeType string

const (
	ChallengeBlink     ChallengeType = "BLINK"
	ChallengeTurnLeft  ChallengeType = "TURN_LEFT"
	ChallengeTurnRight ChallengeType = "TURN_RIGHT"
	ChallengeOpenMouth ChallengeType = "OPEN_MOUTH"
)

// AllChallenges is the full challenge set
var AllChallenges = []ChallengeType{
	ChallengeBlink,
	ChallengeTurnLeft,
	ChallengeTurnRight,
	ChallengeOpenMouth,
}

// Description returns the instruction shown to the user
func (t ChallengeType) Description() string {
	switch t {
	case ChallengeBlink:
		return "Please blink your eyes"
	case ChallengeTurnLeft:
		return "Please turn your head to the left"
	case ChallengeTurnRight:
		return "Please turn your head to the right"
	case ChallengeOpenMouth:
		return "Please open your mouth"
	default:
		return ""
	}
}

// ParseChallengeTypes converts configured names ("blink", "turn_left", ...)
// into challenge types, skipping unknown names and duplicates
func ParseChallengeTypes(names []string) []ChallengeType {
	var types []ChallengeType
	seen := make(map[ChallengeType]bool)

	for _, name := range names {
		t := ChallengeType(strings.ToUpper(strings.TrimSpace(name)))
		switch t {
		case ChallengeBlink, ChallengeTurnLeft, ChallengeTurnRight, ChallengeOpenMouth:
		default:
			continue
		}
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}

	return types
}

// SequenceResult describes the challenge sequence after one frame
type SequenceResult struct {
	Passed    ChallengeType // challenge completed on this frame, if any
	Completed bool          // every challenge has been passed
	TimedOut  bool          // the current challenge exceeded its timeout
}

// ChallengeSequencer steps through a randomized order of challenges. Each
// challenge must hold for a number of consecutive frames before the
// sequence advances.
type ChallengeSequencer struct {
	params    Params
	order     []ChallengeType
	index     int
	progress  int
	startedAt time.Time
}

// NewChallengeSequencer shuffles the configured challenges into a new order
func NewChallengeSequencer(p Params, rng *rand.Rand) *ChallengeSequencer {
	types := p.Challenges
	if len(types) == 0 {
		types = AllChallenges
	}

	order := make([]ChallengeType, len(types))
	copy(order, types)
	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})

	return &ChallengeSequencer{
		params: p,
		order:  order,
		index:  -1,
	}
}

// Begin starts the first challenge
func (s *ChallengeSequencer) Begin(now time.Time) {
	if s.index >= 0 {
		return
	}
	s.index = 0
	s.progress = 0
	s.startedAt = now
}

// Started reports whether challenges have begun
func (s *ChallengeSequencer) Started() bool {
	return s.index >= 0
}

// Done reports whether every challenge has been passed
func (s *ChallengeSequencer) Done() bool {
	return s.index >= len(s.order)
}

// Current returns the challenge being evaluated
func (s *ChallengeSequencer) Current() (ChallengeType, bool) {
	if s.index < 0 || s.Done() {
		return "", false
	}
	return s.order[s.index], true
}

// Index returns -1 before challenges begin, the current position during
// the sequence and len(order) once it completed
func (s *ChallengeSequencer) Index() int {
	return s.index
}

// Progress returns the consecutive qualifying frames for the current challenge
func (s *ChallengeSequencer) Progress() int {
	return s.progress
}

// Order returns a copy of the challenge order
func (s *ChallengeSequencer) Order() []ChallengeType {
	order := make([]ChallengeType, len(s.order))
	copy(order, s.order)
	return order
}

// Required returns the consecutive frame count a challenge needs
func (s *ChallengeSequencer) Required(t ChallengeType) int {
	var n int
	switch t {
	case ChallengeBlink:
		n = s.params.BlinkFrames
	case ChallengeOpenMouth:
		n = s.params.MouthOpenFrames
	default:
		n = s.params.TurnFrames
	}
	return max(n, 1)
}

// Evaluate checks the current challenge against one frame's signals
func (s *ChallengeSequencer) Evaluate(sig Signals, now time.Time) SequenceResult {
	current, ok := s.Current()
	if !ok {
		return SequenceResult{Completed: s.Done()}
	}

	if s.satisfies(current, sig) {
		s.progress++
	} else {
		s.progress = 0
	}

	if s.progress >= s.Required(current) {
		s.index++
		s.progress = 0
		s.startedAt = now
		return SequenceResult{Passed: current, Completed: s.Done()}
	}

	if s.params.ChallengeTimeout > 0 && now.Sub(s.startedAt) >= s.params.ChallengeTimeout {
		return SequenceResult{TimedOut: true}
	}

	return SequenceResult{}
}

func (s *ChallengeSequencer) satisfies(t ChallengeType, sig Signals) bool {
	switch t {
	case ChallengeBlink:
		return sig.MeanEAR() < s.params.BlinkThreshold
	case ChallengeOpenMouth:
		return sig.MouthRatio > s.params.MouthOpenMin
	case ChallengeTurnLeft:
		return sig.Direction == DirectionLeft
	case ChallengeTurnRight:
		return sig.Direction == DirectionRight
	default:
		return false
	}
}

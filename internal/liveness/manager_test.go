package liveness

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrCodeEU/LiveCheck/internal/config"
	"github.com/MrCodeEU/LiveCheck/internal/facesim"
)

type memoryRecorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *memoryRecorder) RecordOutcome(o Outcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
	return nil
}

func (r *memoryRecorder) all() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// driveLive plays a cooperative subject: neutral until challenged, then
// whatever the current challenge asks for
func driveLive(m *Manager, id string, maxFrames int) (Status, error) {
	var st Status
	for i := 0; i < maxFrames; i++ {
		pose := facesim.Pose{}
		if st.Kind == StatusChallenge {
			pose = facesim.PoseFor(string(st.Challenge))
		}
		pose.Depth = facesim.SawtoothDepth(i)

		var err error
		st, err = m.Submit(id, facesim.Face(pose), meta(time.Duration(i)*facesim.DefaultInterval, nil))
		if err != nil {
			return st, err
		}
		if st.Terminal() {
			return st, nil
		}
	}
	return st, fmt.Errorf("session did not finish in %d frames", maxFrames)
}

func driveSpoof(m *Manager, id string) (Status, error) {
	var st Status
	for i, f := range facesim.FlatScript(50, 0.015, 0) {
		var err error
		st, err = m.Submit(id, f.Landmarks, meta(time.Duration(i)*facesim.DefaultInterval, nil))
		if err != nil {
			return st, err
		}
	}
	return st, nil
}

func TestManagerSuccess(t *testing.T) {
	rec := &memoryRecorder{}
	m := NewManager(config.DefaultConfig(), rec, nil)

	id, st, err := m.Start("alice")
	if err != nil {
		t.Fatalf("Failed to start: %v", err)
	}
	if st.Kind != StatusNoFace {
		t.Errorf("Expected initial NO_FACE, got %s", st)
	}

	st, err = driveLive(m, id, 200)
	if err != nil {
		t.Fatalf("Failed to drive session: %v", err)
	}
	if st.Kind != StatusSuccess || st.Artifact == nil {
		t.Fatalf("Expected SUCCESS with artifact, got %+v", st)
	}

	if _, err := m.Submit(id, facesim.Face(facesim.Pose{}), meta(time.Hour, nil)); !errors.Is(err, ErrSessionEnded) {
		t.Errorf("Expected ErrSessionEnded, got %v", err)
	}

	outcomes := rec.all()
	if len(outcomes) != 1 {
		t.Fatalf("Expected 1 recorded outcome, got %d", len(outcomes))
	}
	o := outcomes[0]
	if o.Subject != "alice" || o.SessionID != id || o.Status != StatusSuccess || len(o.ChallengeOrder) != 4 {
		t.Errorf("Unexpected outcome %+v", o)
	}
}

func TestManagerLockout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Daemon.MaxSpoofs = 2
	cfg.Daemon.LockoutDuration = 60

	clock := &testClock{now: testBase}
	rec := &memoryRecorder{}
	m := NewManager(cfg, rec, nil, WithManagerClock(clock.Now))

	for attempt := 0; attempt < 2; attempt++ {
		id, _, err := m.Start("mallory")
		if err != nil {
			t.Fatalf("Attempt %d: failed to start: %v", attempt, err)
		}
		st, err := driveSpoof(m, id)
		if err != nil || st.Kind != StatusSpoofFailed {
			t.Fatalf("Attempt %d: expected SPOOF_FAILED, got %s (%v)", attempt, st, err)
		}
		if _, err := m.Remove(id); err != nil {
			t.Fatalf("Failed to remove session: %v", err)
		}
	}

	if _, _, err := m.Start("mallory"); !errors.Is(err, ErrLockedOut) {
		t.Fatalf("Expected ErrLockedOut, got %v", err)
	}
	if _, _, err := m.Start("alice"); err != nil {
		t.Errorf("Expected other subjects unaffected, got %v", err)
	}

	clock.Advance(61 * time.Second)
	id, _, err := m.Start("mallory")
	if err != nil {
		t.Fatalf("Expected lockout to expire, got %v", err)
	}

	if _, err := driveLive(m, id, 200); err != nil {
		t.Fatalf("Failed to drive session: %v", err)
	}
	m.mu.RLock()
	_, tracked := m.failedAttempts["mallory"]
	m.mu.RUnlock()
	if tracked {
		t.Error("Expected success to clear the failure count")
	}

	spoofs := 0
	for _, o := range rec.all() {
		if o.Status == StatusSpoofFailed {
			spoofs++
		}
	}
	if spoofs != 2 {
		t.Errorf("Expected 2 recorded spoofs, got %d", spoofs)
	}
}

func TestManagerLockoutAdmin(t *testing.T) {
	clock := &testClock{now: testBase}
	m := NewManager(config.DefaultConfig(), nil, nil, WithManagerClock(clock.Now))

	for i := 0; i < 3; i++ {
		m.RecordFailure("bob")
	}
	if err := m.CheckLockout("bob"); !errors.Is(err, ErrLockedOut) {
		t.Fatalf("Expected ErrLockedOut, got %v", err)
	}

	m.ClearLockout("bob")
	if err := m.CheckLockout("bob"); err != nil {
		t.Errorf("Expected lockout cleared, got %v", err)
	}

	m.RecordFailure("carol")
	clock.Advance(2 * time.Hour)
	m.CleanupExpiredLockouts()
	m.mu.RLock()
	remaining := len(m.failedAttempts)
	m.mu.RUnlock()
	if remaining != 0 {
		t.Errorf("Expected expired entries removed, %d left", remaining)
	}
}

func TestManagerSessions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Daemon.MaxSessions = 2
	rec := &memoryRecorder{}
	m := NewManager(cfg, rec, nil)

	first, _, err := m.Start("a")
	if err != nil {
		t.Fatalf("Failed to start: %v", err)
	}
	if _, _, err := m.Start("b"); err != nil {
		t.Fatalf("Failed to start: %v", err)
	}
	if _, _, err := m.Start("c"); !errors.Is(err, ErrTooManySessions) {
		t.Fatalf("Expected ErrTooManySessions, got %v", err)
	}

	t.Run("Cancel", func(t *testing.T) {
		st, err := m.Cancel(first)
		if err != nil || st.Kind != StatusCancelled {
			t.Fatalf("Expected CANCELLED, got %s (%v)", st, err)
		}
		if _, err := m.Cancel(first); !errors.Is(err, ErrSessionEnded) {
			t.Errorf("Expected ErrSessionEnded, got %v", err)
		}
		if st, _ := m.Status(first); st.Kind != StatusCancelled {
			t.Errorf("Expected CANCELLED to stick, got %s", st)
		}
	})

	t.Run("Restart", func(t *testing.T) {
		id, st, err := m.Restart(first)
		if err != nil {
			t.Fatalf("Failed to restart: %v", err)
		}
		if id == first || st.Kind != StatusNoFace {
			t.Errorf("Expected a fresh session, got %s with %s", id, st)
		}
		if _, err := m.Status(first); !errors.Is(err, ErrUnknownSession) {
			t.Errorf("Expected old session gone, got %v", err)
		}
		first = id
	})

	t.Run("Unknown", func(t *testing.T) {
		if _, err := m.Submit("missing", nil, meta(0, nil)); !errors.Is(err, ErrUnknownSession) {
			t.Errorf("Expected ErrUnknownSession, got %v", err)
		}
		if _, err := m.Remove("missing"); !errors.Is(err, ErrUnknownSession) {
			t.Errorf("Expected ErrUnknownSession, got %v", err)
		}
	})

	t.Run("Close", func(t *testing.T) {
		m.Close()
		if m.Len() != 0 {
			t.Errorf("Expected no sessions after close, got %d", m.Len())
		}
		// Every session ends up recorded exactly once
		if got := len(rec.all()); got != 3 {
			t.Errorf("Expected 3 recorded outcomes, got %d", got)
		}
	})
}

func TestManagerConcurrentSessions(t *testing.T) {
	rec := &memoryRecorder{}
	m := NewManager(config.DefaultConfig(), rec, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id, _, err := m.Start(fmt.Sprintf("user%d", n))
			if err != nil {
				errs <- err
				return
			}
			st, err := driveLive(m, id, 200)
			if err != nil {
				errs <- err
				return
			}
			if st.Kind != StatusSuccess {
				errs <- fmt.Errorf("session %s ended with %s", id, st)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	if got := len(rec.all()); got != 8 {
		t.Errorf("Expected 8 recorded outcomes, got %d", got)
	}
}

package liveness

import (
	"io"
	"sync"
	"time"

	"github.com/MrCodeEU/LiveCheck/internal/config"
	"github.com/MrCodeEU/LiveCheck/pkg/models"
	"github.com/sirupsen/logrus"
)

// OutcomeRecorder persists finished sessions
type OutcomeRecorder interface {
	RecordOutcome(outcome Outcome) error
}

// Manager runs many independent sessions, each owned by its own Controller,
// and locks out subjects that repeatedly fail the spoof check
type Manager struct {
	params          Params
	logger          *logrus.Logger
	recorder        OutcomeRecorder
	maxSessions     int
	maxSpoofs       int
	lockoutDuration time.Duration
	now             func() time.Time
	sessions        map[string]*managedSession
	failedAttempts  map[string]*FailureTracker
	mu              sync.RWMutex
}

type managedSession struct {
	mu       sync.Mutex
	ctrl     *Controller
	subject  string
	recorded bool
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithManagerClock sets the clock used for sessions and lockouts
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a session manager. recorder may be nil.
func NewManager(cfg *config.Config, recorder OutcomeRecorder, logger *logrus.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	m := &Manager{
		params:          FromConfig(cfg),
		logger:          logger,
		recorder:        recorder,
		maxSessions:     cfg.Daemon.MaxSessions,
		maxSpoofs:       cfg.Daemon.MaxSpoofs,
		lockoutDuration: time.Duration(cfg.Daemon.LockoutDuration) * time.Second,
		now:             time.Now,
		sessions:        make(map[string]*managedSession),
		failedAttempts:  make(map[string]*FailureTracker),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.maxSpoofs <= 0 {
		m.maxSpoofs = 3
	}
	if m.lockoutDuration <= 0 {
		m.lockoutDuration = 5 * time.Minute
	}

	return m
}

// Start opens a session for subject and returns its ID
func (m *Manager) Start(subject string) (string, Status, error) {
	if err := m.CheckLockout(subject); err != nil {
		return "", Status{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		return "", Status{}, ErrTooManySessions
	}

	ctrl := NewController(m.params, m.logger, WithClock(m.now))
	s, err := ctrl.Start()
	if err != nil {
		return "", Status{}, err
	}

	m.sessions[s.ID()] = &managedSession{ctrl: ctrl, subject: subject}
	return s.ID(), s.Status(), nil
}

// Submit feeds one frame into a session
func (m *Manager) Submit(id string, lm models.Landmarks, meta FrameMeta) (Status, error) {
	ms, err := m.get(id)
	if err != nil {
		return Status{}, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	st, err := ms.ctrl.SubmitFrame(lm, meta)
	if err == nil && st.Terminal() {
		m.finish(ms)
	}
	return st, err
}

// Cancel ends a session without an artifact
func (m *Manager) Cancel(id string) (Status, error) {
	ms, err := m.get(id)
	if err != nil {
		return Status{}, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.ctrl.Session() == nil {
		return Status{}, ErrUnknownSession
	}
	if err := ms.ctrl.Cancel(); err != nil {
		return ms.ctrl.Session().endedStatus(), err
	}
	m.finish(ms)
	return ms.ctrl.Session().Status(), nil
}

// Restart discards a session, cancelling it if still running, and starts a
// fresh one for the same subject
func (m *Manager) Restart(id string) (string, Status, error) {
	subject, err := m.Remove(id)
	if err != nil {
		return "", Status{}, err
	}
	return m.Start(subject)
}

// Remove discards a session, cancelling it if still running, and returns
// its subject
func (m *Manager) Remove(id string) (string, error) {
	m.mu.Lock()
	ms, exists := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !exists {
		return "", ErrUnknownSession
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if s := ms.ctrl.Session(); s != nil && s.Active() {
		_ = ms.ctrl.Cancel()
		m.finish(ms)
	}
	ms.ctrl.Reset()

	return ms.subject, nil
}

// Status returns the last status of a session
func (m *Manager) Status(id string) (Status, error) {
	ms, err := m.get(id)
	if err != nil {
		return Status{}, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	// Removed concurrently
	if ms.ctrl.Session() == nil {
		return Status{}, ErrUnknownSession
	}
	return ms.ctrl.Session().Status(), nil
}

// Len returns the number of sessions held
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close cancels and removes every session
func (m *Manager) Close() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		_, _ = m.Remove(id)
	}
}

func (m *Manager) get(id string) (*managedSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ms, exists := m.sessions[id]
	if !exists {
		return nil, ErrUnknownSession
	}
	return ms, nil
}

// finish records a terminal session once. Callers hold ms.mu.
func (m *Manager) finish(ms *managedSession) {
	if ms.recorded {
		return
	}
	ms.recorded = true

	outcome := ms.ctrl.Session().Outcome()
	outcome.Subject = ms.subject

	switch outcome.Status {
	case StatusSpoofFailed:
		m.RecordFailure(ms.subject)
	case StatusSuccess:
		m.RecordSuccess(ms.subject)
	}

	if m.recorder == nil {
		return
	}
	if err := m.recorder.RecordOutcome(outcome); err != nil {
		m.logger.Warnf("Failed to record outcome of session %s: %v", outcome.SessionID, err)
	}
}

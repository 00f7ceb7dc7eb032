package liveness

import (
	"fmt"
	"time"
)

// FailureTracker tracks spoof failures for one subject
type FailureTracker struct {
	Count       int
	LastAttempt time.Time
	LockedUntil time.Time
}

// CheckLockout checks if a subject is currently locked out
func (m *Manager) CheckLockout(subject string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tracker, exists := m.failedAttempts[subject]
	if !exists {
		return nil
	}

	now := m.now()
	if now.Before(tracker.LockedUntil) {
		remaining := tracker.LockedUntil.Sub(now)
		return fmt.Errorf("%w for %v after %d spoof attempts", ErrLockedOut, remaining.Round(time.Second), tracker.Count)
	}

	return nil
}

// RecordFailure records a spoof failure and locks the subject out once the
// limit is reached
func (m *Manager) RecordFailure(subject string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tracker, exists := m.failedAttempts[subject]
	if !exists {
		tracker = &FailureTracker{}
		m.failedAttempts[subject] = tracker
	}

	tracker.Count++
	tracker.LastAttempt = m.now()

	if tracker.Count >= m.maxSpoofs {
		tracker.LockedUntil = tracker.LastAttempt.Add(m.lockoutDuration)
		m.logger.Warnf("Subject %s locked out for %v after %d spoof attempts",
			subject, m.lockoutDuration, tracker.Count)
	}
}

// RecordSuccess clears the failures of a subject
func (m *Manager) RecordSuccess(subject string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.failedAttempts, subject)
}

// ClearLockout clears lockout for a subject (admin function)
func (m *Manager) ClearLockout(subject string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.failedAttempts, subject)
	m.logger.Infof("Lockout cleared for subject %s", subject)
}

// CleanupExpiredLockouts removes lockout entries that expired more than an
// hour after the last attempt
func (m *Manager) CleanupExpiredLockouts() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for subject, tracker := range m.failedAttempts {
		if now.After(tracker.LockedUntil) && now.Sub(tracker.LastAttempt) > time.Hour {
			delete(m.failedAttempts, subject)
		}
	}
}

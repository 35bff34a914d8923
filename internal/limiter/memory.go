package limiter

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	failures     int
	blockedUntil time.Time
}

// Memory is an in-process Limiter: after maxFailures consecutive failures
// for a username, logins are refused for the cooldown window. State does
// not survive a restart, which is acceptable for a single-device vault.
type Memory struct {
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewMemory constructs a Memory limiter.
func NewMemory(maxFailures int, cooldown time.Duration) *Memory {
	return &Memory{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
		entries:     map[string]*entry{},
	}
}

func (m *Memory) Allow(_ context.Context, username string) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[username]
	if !ok {
		return true, 0, nil
	}
	if left := e.blockedUntil.Sub(m.now()); left > 0 {
		return false, left, nil
	}
	return true, 0, nil
}

func (m *Memory) Success(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, username)
	return nil
}

func (m *Memory) Failure(_ context.Context, username string) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[username]
	if !ok {
		e = &entry{}
		m.entries[username] = e
	}
	e.failures++
	if e.failures >= m.maxFailures {
		e.blockedUntil = m.now().Add(m.cooldown)
		e.failures = 0
		return true, m.cooldown, nil
	}
	return false, 0, nil
}

// Noop is a Limiter that never blocks; used when lockout is disabled.
type Noop struct{}

func (Noop) Allow(context.Context, string) (bool, time.Duration, error) { return true, 0, nil }

func (Noop) Success(context.Context, string) error { return nil }

func (Noop) Failure(context.Context, string) (bool, time.Duration, error) { return false, 0, nil }

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager holds one Session per browser, keyed by an opaque ID, and reaps
// sessions that have been idle longer than idleTimeout.
type Manager struct {
	ctrl        *Controller
	idleTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(ctrl *Controller, idleTimeout time.Duration) *Manager {
	return &Manager{
		ctrl:        ctrl,
		idleTimeout: idleTimeout,
		sessions:    make(map[string]*Session),
	}
}

// New creates a fresh session in the menu state.
func (m *Manager) New() *Session {
	s := newSession(uuid.NewString(), m.ctrl.clock.Now())

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.ctrl.log.Debug().Str("session", s.id).Msg("created session")

	return s
}

// Get returns the session with the given ID and marks it active.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()

	if ok {
		s.touch(m.ctrl.clock.Now())
	}

	return s, ok
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sessions)
}

// Run reaps idle sessions until ctx is done, then discards every session
// that is left.
func (m *Manager) Run(ctx context.Context) {
	defer m.discardAll()

	if m.idleTimeout <= 0 {
		<-ctx.Done()

		return
	}

	ticker := m.ctrl.clock.NewTicker(m.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.Chan():
			if n := m.reap(now); n > 0 {
				m.ctrl.log.Info().Int("reaped", n).Int("remaining", m.Len()).Msg("reaped idle sessions")
			}
		}
	}
}

func (m *Manager) reap(now time.Time) int {
	cutoff := now.Add(-m.idleTimeout)

	var idle []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			idle = append(idle, s)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		m.ctrl.Discard(s)
	}

	return len(idle)
}

func (m *Manager) discardAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		delete(m.sessions, id)
		all = append(all, s)
	}
	m.mu.Unlock()

	for _, s := range all {
		m.ctrl.Discard(s)
	}
}

package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mohammed-shakir/sportmap/internal/core/model"
	"github.com/mohammed-shakir/sportmap/internal/core/observability"
	"github.com/mohammed-shakir/sportmap/internal/events"
	"github.com/mohammed-shakir/sportmap/internal/logger"
)

type Manager struct {
	parent  context.Context
	deps    Deps
	idleTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates sessions bound to ctx. idleTTL <= 0 disables expiry.
func NewManager(ctx context.Context, deps Deps, idleTTL time.Duration) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	return &Manager{
		parent:   ctx,
		deps:     deps,
		idleTTL:  idleTTL,
		sessions: map[string]*Session{},
	}
}

func (m *Manager) Create() *Session {
	id := logger.NewID()
	s := newSession(m.parent, id, m.deps)

	m.mu.Lock()
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()

	observability.SetSessionsActive(n)
	m.deps.Logger.InfoContext(logger.WithSessionID(m.parent, id), "session created")
	m.deps.Events.Publish(events.Event{Type: events.TypeSession, SessionID: id, Op: "open"})
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: session %q", model.ErrNotFound, id)
	}
	s.touch()
	return s, nil
}

func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: session %q", model.ErrNotFound, id)
	}
	observability.SetSessionsActive(n)
	s.Close()
	return nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle since before now-idleTTL and returns how many.
func (m *Manager) Sweep(now time.Time) int {
	if m.idleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-m.idleTTL)

	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if len(expired) > 0 {
		observability.SetSessionsActive(n)
		m.deps.Logger.Info("idle sessions expired", "count", len(expired))
	}
	for _, s := range expired {
		s.Close()
	}
	return len(expired)
}

// Run sweeps idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	if m.idleTTL <= 0 {
		<-ctx.Done()
		return
	}
	every := max(m.idleTTL/4, time.Second)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			m.Sweep(now)
		}
	}
}

func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
	observability.SetSessionsActive(0)
}

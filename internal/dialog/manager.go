// Package dialog tracks where each user is inside a multi-step conversation.
// State lives in memory only and is lost on restart.
package dialog

import (
	"sync"
	"time"

	"github.com/tazhate/weekping/internal/domain"
)

// Flow names the conversation a session belongs to. A user is in at most one
// flow at a time; starting another one replaces the session.
type Flow int

const (
	FlowNone Flow = iota
	FlowCreation
	FlowAlteration
)

// Session is the per-user flow state together with the event being built or
// edited. Callers must hold the user's lock while touching it.
type Session struct {
	Flow       Flow
	Creation   CreationState
	Alteration AlterationState

	// Draft is the event under construction (creation) or a working copy of
	// the stored event (alteration).
	Draft *domain.Event
	// Selected collects the offsets ticked in the ping keyboard.
	Selected domain.OffsetSet
	// EventID is the stored event an alteration or deletion refers to.
	EventID string

	touched time.Time
}

type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	locks    map[int64]*sync.Mutex
	now      func() time.Time
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[int64]*Session),
		locks:    make(map[int64]*sync.Mutex),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for idle tracking.
func (m *Manager) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Manager) userLock(userID int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[userID] = l
	}
	return l
}

// Lock serializes interactions of one user and returns the unlock func.
func (m *Manager) Lock(userID int64) func() {
	l := m.userLock(userID)
	l.Lock()
	return l.Unlock
}

// Session returns the user's session or nil.
func (m *Manager) Session(userID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[userID]
	if s != nil {
		s.touched = m.now()
	}
	return s
}

// Begin starts a fresh session for flow, dropping whatever the user had.
func (m *Manager) Begin(userID int64, flow Flow) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &Session{Flow: flow, Selected: domain.NewOffsetSet(), touched: m.now()}
	m.sessions[userID] = s
	return s
}

// End removes the user's session.
func (m *Manager) End(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Evict drops sessions idle for longer than maxIdle and returns how many were
// removed. Users currently inside an interaction are skipped.
func (m *Manager) Evict(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxIdle)
	n := 0
	for id, s := range m.sessions {
		if !s.touched.Before(cutoff) {
			continue
		}
		l := m.locks[id]
		if l != nil && !l.TryLock() {
			continue
		}
		delete(m.sessions, id)
		if l != nil {
			l.Unlock()
		}
		n++
	}
	return n
}

func (m *Manager) flowSession(userID int64, flow Flow) *Session {
	s := m.Session(userID)
	if s == nil || s.Flow != flow {
		return nil
	}
	return s
}

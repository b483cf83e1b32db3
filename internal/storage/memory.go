package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/tazhate/weekping/internal/domain"
)

// Memory keeps everything in process memory. It satisfies the same contract
// as Storage and is selected with STORAGE_DRIVER=memory.
type Memory struct {
	mu              sync.RWMutex
	settings        map[int64]domain.Settings
	events          map[int64][]*domain.Event
	meta            map[string]string
	defaultLanguage string
}

func NewMemory() *Memory {
	return &Memory{
		settings:        make(map[int64]domain.Settings),
		events:          make(map[int64][]*domain.Event),
		meta:            make(map[string]string),
		defaultLanguage: DefaultLanguage,
	}
}

func (m *Memory) SetDefaultLanguage(lang string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultLanguage = lang
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) LoadSettings(_ context.Context, userID int64) (*domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.settings[userID]
	if !ok {
		st = *domain.DefaultSettings(userID, m.defaultLanguage)
		m.settings[userID] = st
	}
	return &st, nil
}

func (m *Memory) SaveSettings(_ context.Context, st *domain.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[st.UserID] = *st
	return nil
}

func (m *Memory) ListUserIDs(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[int64]bool)
	for id := range m.settings {
		seen[id] = true
	}
	for id, evs := range m.events {
		if len(evs) > 0 {
			seen[id] = true
		}
	}
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Memory) SaveEvent(_ context.Context, e *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	evs := m.events[e.UserID]
	for i, cur := range evs {
		if cur.ID == e.ID {
			// created_at is kept from the first insert, like the sqlite upsert.
			c := e.Clone()
			c.CreatedAt = cur.CreatedAt
			evs[i] = c
			return nil
		}
	}
	m.events[e.UserID] = append(evs, e.Clone())
	return nil
}

func (m *Memory) GetEvent(_ context.Context, userID int64, eventID string) (*domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.events[userID] {
		if e.ID == eventID {
			return e.Clone(), nil
		}
	}
	return nil, nil
}

func (m *Memory) LoadEvents(_ context.Context, userID int64) ([]*domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	evs := m.events[userID]
	out := make([]*domain.Event, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Clone())
	}
	return out, nil
}

func (m *Memory) DeleteEvent(_ context.Context, userID int64, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	evs := m.events[userID]
	for i, e := range evs {
		if e.ID == eventID {
			m.events[userID] = append(evs[:i:i], evs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *Memory) GetMeta(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.meta[key], nil
}

func (m *Memory) SetMeta(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta[key] = value
	return nil
}

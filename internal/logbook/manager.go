package logbook

import (
	"sync"
	"time"
)

// Manager hands out one engine per owner, constructed lazily against the
// adapter the factory picks for that owner (SQLite for registered users,
// a local JSON file for guests).
type Manager struct {
	mu      sync.Mutex
	factory func(ownerID string) Adapter
	clock   func() time.Time
	engines map[string]*Engine
}

// NewManager creates a manager. A nil clock means time.Now.
func NewManager(factory func(ownerID string) Adapter, clock func() time.Time) *Manager {
	if clock == nil {
		clock = time.Now
	}
	return &Manager{
		factory: factory,
		clock:   clock,
		engines: make(map[string]*Engine),
	}
}

// Engine returns the cached engine for the owner, creating one on first
// use.
func (m *Manager) Engine(ownerID string) (*Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.engines[ownerID]; ok {
		return e, nil
	}
	e, err := New(m.factory(ownerID), WithClock(m.clock))
	if err != nil {
		return nil, err
	}
	m.engines[ownerID] = e
	return e, nil
}

// Evict drops the cached engine for an owner. The next request reloads
// from durable state.
func (m *Manager) Evict(ownerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.engines, ownerID)
}

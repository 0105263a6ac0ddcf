package risk

import (
	"context"
	"errors"
	"sync"
)

// ErrStateNotFound is returned when no persisted state exists for a date
var ErrStateNotFound = errors.New("risk state not found")

// Store persists daily risk state across restarts.
type Store interface {
	Load(ctx context.Context, date string) (*DayState, error)
	Save(ctx context.Context, state *DayState) error
}

// MemoryStore is an in-process Store. State does not survive a restart; it
// exists for paper runs and tests.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]*DayState
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*DayState)}
}

func (m *MemoryStore) Load(ctx context.Context, date string) (*DayState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[date]
	if !ok {
		return nil, ErrStateNotFound
	}
	return state.Clone(), nil
}

func (m *MemoryStore) Save(ctx context.Context, state *DayState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.Date] = state.Clone()
	return nil
}

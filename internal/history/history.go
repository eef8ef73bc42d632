package history

import (
	"context"
	"sync"

	"chat-proxy/internal/storage"
)

// Manager is an in-process storage.Store. Nothing survives a restart.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string][]storage.Turn
	memory   map[string]storage.Memory
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string][]storage.Turn),
		memory:   make(map[string]storage.Memory),
	}
}

func (m *Manager) Append(_ context.Context, userID string, role storage.Role, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = append(m.sessions[userID], storage.Turn{UserID: userID, Role: role, Text: text})
	return nil
}

// Get returns a copy of the user's turns in append order.
func (m *Manager) Get(userID string) []storage.Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	es := m.sessions[userID]
	out := make([]storage.Turn, len(es))
	copy(out, es)
	return out
}

func (m *Manager) ReadAll(_ context.Context, userID string) ([]storage.Turn, error) {
	return m.Get(userID), nil
}

func (m *Manager) GetMemory(_ context.Context, userID string) (storage.Memory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if mem, ok := m.memory[userID]; ok {
		return mem.Clone(), nil
	}
	return storage.Memory{}, nil
}

func (m *Manager) PutMemory(_ context.Context, userID string, mem storage.Memory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memory[userID] = mem.Clone()
	return nil
}

func (m *Manager) Close(context.Context) error { return nil }

var _ storage.Store = (*Manager)(nil)

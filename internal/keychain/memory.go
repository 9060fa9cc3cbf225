package keychain

import "sync"

// Memory is an in-process Store. Nothing survives a restart; it backs
// tests and the explicit "memory" backend for throwaway sessions.
type Memory struct {
	mu     sync.Mutex
	values map[Kind]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[Kind]string)}
}

// Save stores a value, overwriting any previous one.
func (m *Memory) Save(kind Kind, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[kind] = value

	return nil
}

// Get returns the stored value, or false if the kind was never written
// or has been cleared.
func (m *Memory) Get(kind Kind) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.values[kind]

	return v, ok
}

// Clear removes both secrets.
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, kind := range kinds {
		delete(m.values, kind)
	}

	return nil
}

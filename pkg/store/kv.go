// Package store persists registered identities. Identities are serialized
// as one JSON string each and kept in a string list under a single key of
// a pluggable key-value backend.
package store

import "sync"

// KV is the persistent key-value string-list contract backing the store.
type KV interface {
	// GetStringList returns the list stored under key, or an empty list
	// when the key is absent.
	GetStringList(key string) ([]string, error)

	// SetStringList replaces the list stored under key.
	SetStringList(key string, values []string) error

	// Remove deletes the key and its list.
	Remove(key string) error
}

// MemoryKV is an in-memory KV, used in tests and ephemeral sessions.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]string
}

// NewMemoryKV creates an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]string)}
}

// GetStringList implements KV.
func (m *MemoryKV) GetStringList(key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	values := make([]string, len(m.data[key]))
	copy(values, m.data[key])
	return values, nil
}

// SetStringList implements KV.
func (m *MemoryKV) SetStringList(key string, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]string, len(values))
	copy(stored, values)
	m.data[key] = stored
	return nil
}

// Remove implements KV.
func (m *MemoryKV) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

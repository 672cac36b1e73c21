// Package storage provides the per-client key/value storage that plays the role of a
// browser's local storage: string values, synchronous calls, one namespace per client.
package storage

import (
	"errors"
	"sync"
)

// ErrInvalidKey is returned for keys or namespaces that cannot be stored safely
var ErrInvalidKey = errors.New("invalid storage key")

// LocalStorage is the key/value store of one client
type LocalStorage interface {
	// GetItem returns the stored value and whether the key exists
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
	// RemoveItem deletes a key; removing a missing key is not an error
	RemoveItem(key string) error
}

// Backend hands out the LocalStorage of a client
type Backend interface {
	For(clientID string) (LocalStorage, error)
	Close() error
}

// MemoryBackend keeps every client's storage in process memory
type MemoryBackend struct {
	mu      sync.Mutex
	clients map[string]*Memory
}

// NewMemoryBackend creates an empty memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{clients: make(map[string]*Memory)}
}

// For returns the storage of clientID, creating it on first use
func (b *MemoryBackend) For(clientID string) (LocalStorage, error) {
	if !validName(clientID) {
		return nil, ErrInvalidKey
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.clients[clientID]
	if !ok {
		m = NewMemory()
		b.clients[clientID] = m
	}
	return m, nil
}

// Close releases nothing
func (b *MemoryBackend) Close() error { return nil }

// Memory is a LocalStorage held in a map
type Memory struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemory creates an empty memory storage
func NewMemory() *Memory {
	return &Memory{items: make(map[string]string)}
}

func (m *Memory) GetItem(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *Memory) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *Memory) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// validName accepts ids and keys made of letters, digits, '-' and '_'
func validName(name string) bool {
	if name == "" || len(name) > 128 {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

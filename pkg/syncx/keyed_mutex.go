// Package syncx holds small synchronization helpers missing from the standard library.
package syncx

import "sync"

// KeyedMutex serializes work per key. Entries are reference counted and
// dropped once no goroutine holds or waits on them.
type KeyedMutex[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates an empty keyed mutex
func NewKeyedMutex[K comparable]() *KeyedMutex[K] {
	return &KeyedMutex[K]{entries: make(map[K]*keyedEntry)}
}

// Lock acquires the lock for key and returns its release func.
func (m *KeyedMutex[K]) Lock(key K) (unlock func()) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &keyedEntry{}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		m.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(m.entries, key)
		}
		m.mu.Unlock()
	}
}

// Len reports how many keys are currently held or awaited.
func (m *KeyedMutex[K]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

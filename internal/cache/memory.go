package cache

import (
	"sync"
	"time"
)

type memEntry struct {
	body      []byte
	expiresAt time.Time
}

// Memory is an in-process Store. Expired entries are deleted on read.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memEntry),
		now:     time.Now,
	}
}

// Get implements Store.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if m.now().After(e.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock: another goroutine may have refreshed it.
		if cur, ok := m.entries[key]; ok && m.now().After(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false
	}
	// Callers may mutate what they get back; the stored entry must not see it.
	body := make([]byte, len(e.body))
	copy(body, e.body)
	return body, true
}

// Set implements Store.
func (m *Memory) Set(key string, body []byte, ttlSeconds int) {
	if ttlSeconds <= 0 {
		return
	}
	m.mu.Lock()
	m.entries[key] = memEntry{
		body:      body,
		expiresAt: m.now().Add(time.Duration(ttlSeconds) * time.Second),
	}
	m.mu.Unlock()
}

// Len returns the number of live-or-stale entries currently held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

package rate

import (
	"sync"
	"time"
)

type counterEntry struct {
	count     int64
	expiresAt time.Time
}

// memoryCounters is the in-process fallback. One mutex serializes all
// access, giving the same per-key atomicity the Redis script provides.
type memoryCounters struct {
	mu       sync.Mutex
	counters map[string]counterEntry
	flags    map[string]time.Time
}

func newMemoryCounters() *memoryCounters {
	return &memoryCounters{
		counters: make(map[string]counterEntry),
		flags:    make(map[string]time.Time),
	}
}

func (m *memoryCounters) increment(key string, window time.Duration) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	entry, ok := m.counters[key]
	if !ok || !entry.expiresAt.After(now) {
		m.counters[key] = counterEntry{count: 1, expiresAt: now.Add(window)}
		return 1
	}

	entry.count++
	m.counters[key] = entry
	return entry.count
}

func (m *memoryCounters) lock(key string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[key] = time.Now().Add(ttl)
}

func (m *memoryCounters) isLocked(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	until, ok := m.flags[key]
	if !ok {
		return false
	}
	if !until.After(time.Now()) {
		delete(m.flags, key)
		return false
	}
	return true
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultMaxSize = 1000

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Memory is an in-process TTL cache bounded by entry count with LRU eviction.
// Entries keep their own expiry so Set can override the default TTL.
type Memory struct {
	entries *lru.Cache[string, memoryEntry]
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	stats Stats
}

// NewMemory creates a cache holding at most maxSize entries. defaultTTL applies
// when Set is called with a zero TTL.
func NewMemory(maxSize int, defaultTTL time.Duration) *Memory {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	// lru.New only fails for a non-positive size.
	entries, _ := lru.New[string, memoryEntry](maxSize)
	return &Memory{entries: entries, ttl: defaultTTL, now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	entry, ok := m.entries.Get(key)
	if ok && entry.expired(m.now()) {
		m.entries.Remove(key)
		ok = false
	}
	m.mu.Lock()
	if ok {
		m.stats.Hits++
	} else {
		m.stats.Misses++
	}
	m.mu.Unlock()
	if !ok {
		return false, nil
	}

	if err := json.Unmarshal(entry.data, dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (m *Memory) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cached %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = m.ttl
	}
	entry := memoryEntry{data: data}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	if evicted := m.entries.Add(key, entry); evicted {
		m.mu.Lock()
		m.stats.Evictions++
		m.mu.Unlock()
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.entries.Remove(key)
	return nil
}

// Cleanup drops expired entries and returns how many were removed.
func (m *Memory) Cleanup() int {
	now := m.now()
	removed := 0
	for _, key := range m.entries.Keys() {
		entry, ok := m.entries.Peek(key)
		if ok && entry.expired(now) && m.entries.Remove(key) {
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of the counters.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	stats := m.stats
	m.mu.Unlock()
	stats.Size = m.entries.Len()
	return stats
}

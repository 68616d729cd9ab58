package draft

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryEntry struct {
	buf       []byte
	expiresAt time.Time
}

func (e *memoryEntry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// MemoryCache is an in-process Cache for development and tests. Entries
// are stored as marshaled JSON so Load round-trips exactly like the
// Redis implementation. Expired entries are dropped on access.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	ttl     time.Duration
}

// NewMemoryCache creates a MemoryCache. ttl zero means 7 days.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &MemoryCache{entries: make(map[string]*memoryEntry), ttl: ttl}
}

// Save writes the value. Unmarshalable values are dropped.
func (c *MemoryCache) Save(_ context.Context, slot Slot, v any) {
	buf, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[slot.storageKey()] = &memoryEntry{
		buf:       buf,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Load reads the value into dst, reporting whether one was present.
func (c *MemoryCache) Load(_ context.Context, slot Slot, dst any) bool {
	c.mu.RLock()
	e, ok := c.entries[slot.storageKey()]
	c.mu.RUnlock()
	if !ok || e.expired() {
		return false
	}
	return json.Unmarshal(e.buf, dst) == nil
}

// Clear removes the entry.
func (c *MemoryCache) Clear(_ context.Context, slot Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, slot.storageKey())
}

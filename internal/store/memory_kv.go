package store

import (
	"context"
	"sync"
	"time"
)

// MemoryKV implements KVCache using an in-memory map
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]kvItem
}

type kvItem struct {
	value     string
	expiresAt time.Time
}

// NewMemoryKV creates a new in-memory cache backend
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		data: make(map[string]kvItem),
	}
}

// Get returns the stored value, or ErrNotFound when the key is absent
func (c *MemoryKV) Get(ctx context.Context, key string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.data[key]
	if !exists {
		return "", ErrNotFound
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		return "", ErrNotFound
	}
	return item.value, nil
}

// Set stores value under key; a zero ttl means no expiry
func (c *MemoryKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := kvItem{value: value}
	if ttl > 0 {
		item.expiresAt = time.Now().Add(ttl)
	}
	c.data[key] = item
	return nil
}

// Ping always succeeds for the in-memory backend
func (c *MemoryKV) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory backend
func (c *MemoryKV) Close() error {
	return nil
}

// Size returns the number of keys held, including blanked entries
func (c *MemoryKV) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

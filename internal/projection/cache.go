package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Cache stores serialized projections keyed by team and mirror snapshot.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// InMemoryCache is a process-local Cache with per-entry expiry. Expired entries
// are dropped on read and swept on every write.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// NewInMemoryCache creates an empty cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{data: make(map[string]entry), now: time.Now}
}

func (c *InMemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		delete(c.data, key)
		return nil, fmt.Errorf("key expired: %s", key)
	}
	return e.value, nil
}

func (c *InMemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.sweep()
	c.data[key] = entry{value: value, expiresAt: exp}
	c.mu.Unlock()
	return nil
}

// sweep must be called with mu held.
func (c *InMemoryCache) sweep() {
	now := c.now()
	for k, e := range c.data {
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			delete(c.data, k)
		}
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

func (c *InMemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

// Key builds a cache key for a projection of a team at one mirror snapshot.
// Generations are never reused and a new snapshot bumps the version, so stale
// entries are never read again.
func Key(name, teamID string, generation, version uint64) string {
	return fmt.Sprintf("projection:%s:%s:%d:%d", name, teamID, generation, version)
}

// Cached returns the cached value at key, computing and storing it on a miss.
func Cached[T any](ctx context.Context, c Cache, key string, ttl time.Duration, compute func() T) T {
	if raw, err := c.Get(ctx, key); err == nil {
		var v T
		if json.Unmarshal(raw, &v) == nil {
			return v
		}
	}
	v := compute()
	if raw, err := json.Marshal(v); err == nil {
		_ = c.Set(ctx, key, raw, ttl)
	}
	return v
}

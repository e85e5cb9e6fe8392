package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is a map guarded by a RWMutex whose entries expire after a TTL.
type TTLCache[K comparable, V any] struct {
	mu         sync.RWMutex
	data       map[K]entry[V]
	DefaultTTL time.Duration
	now        func() time.Time
}

func NewTTLCache[K comparable, V any](defaultTTL time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		data:       map[K]entry[V]{},
		DefaultTTL: defaultTTL,
		now:        time.Now,
	}
}

func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	x, found := c.data[key]
	if !found || !x.expiresAt.After(c.now()) {
		var zero V
		return zero, false
	}
	return x.value, true
}

func (c *TTLCache[K, V]) Put(key K, value V) {
	c.PutWithTTL(key, value, c.DefaultTTL)
}

func (c *TTLCache[K, V]) PutWithTTL(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry[V]{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
}

func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

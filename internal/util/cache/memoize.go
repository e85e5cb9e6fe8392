package cache

import "time"

// MemoizeCache is a read-through cache. Concurrent misses for the same key may
// each call the loader; the last result wins, so loaders must be idempotent.
type MemoizeCache[K comparable, V any] struct {
	data *TTLCache[K, V]
}

func NewMemoizeCache[K comparable, V any](defaultTTL time.Duration) *MemoizeCache[K, V] {
	return &MemoizeCache[K, V]{
		data: NewTTLCache[K, V](defaultTTL),
	}
}

func (c *MemoizeCache[K, V]) Memoize(key K, f func() V) V {
	value, _ := c.MemoizeCanErr(key, func() (V, error) {
		return f(), nil
	})
	return value
}

// MemoizeCanErr caches only successful loads; a failed load is retried on the next call.
func (c *MemoizeCache[K, V]) MemoizeCanErr(key K, f func() (V, error)) (V, error) {
	if value, found := c.data.Get(key); found {
		return value, nil
	}
	value, err := f()
	if err != nil {
		return value, err
	}
	c.data.Put(key, value)
	return value, nil
}

func (c *MemoizeCache[K, V]) Forget(key K) {
	c.data.Delete(key)
}

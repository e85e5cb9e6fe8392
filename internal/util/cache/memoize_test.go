package cache

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoizeCache_Memoize(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	cache := NewMemoizeCache[string, string](time.Minute)
	now := time.Now()
	cache.data.now = func() time.Time { return now }

	counter := int32(0)
	pong := func() string {
		return fmt.Sprintf("pong %d", atomic.AddInt32(&counter, 1))
	}

	require.Equal("pong 1", cache.Memoize("ping", pong))
	require.Equal("pong 1", cache.Memoize("ping", pong))

	now = now.Add(2 * time.Minute)
	require.Equal("pong 2", cache.Memoize("ping", pong))
}

func TestMemoizeCache_MemoizeCanErr(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	cache := NewMemoizeCache[string, string](time.Minute)

	calls := 0
	_, err := cache.MemoizeCanErr("endpoint", func() (string, error) {
		calls++
		return "", errors.New("unavailable")
	})
	require.Error(err)

	value, err := cache.MemoizeCanErr("endpoint", func() (string, error) {
		calls++
		return "mqtts://iot.example.com:8883", nil
	})
	require.NoError(err)
	require.Equal("mqtts://iot.example.com:8883", value)

	value, err = cache.MemoizeCanErr("endpoint", func() (string, error) {
		calls++
		return "other", nil
	})
	require.NoError(err)
	require.Equal("mqtts://iot.example.com:8883", value)
	require.Equal(2, calls)

	cache.Forget("endpoint")
	value = cache.Memoize("endpoint", func() string { return "other" })
	require.Equal("other", value)
}

package cachesvc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCache(t *testing.T) {
	now := time.Now()
	cache := NewMemoryCache()
	cache.nowFunc = func() time.Time { return now }

	t.Run("missing key", func(t *testing.T) {
		val, ok := cache.Get("nope")
		assert.False(t, ok)
		assert.Nil(t, val)
	})

	t.Run("set and get", func(t *testing.T) {
		cache.Set("k", "v", time.Minute)
		val, ok := cache.Get("k")
		assert.True(t, ok)
		assert.Equal(t, "v", val)
	})

	t.Run("expires on ttl", func(t *testing.T) {
		cache.Set("ttl", "v", time.Minute)

		now = now.Add(time.Minute + time.Second)
		val, ok := cache.Get("ttl")
		assert.False(t, ok)
		assert.Nil(t, val)
	})

	t.Run("get does not refresh ttl", func(t *testing.T) {
		cache.Set("fixed", "v", time.Minute)

		now = now.Add(30 * time.Second)
		_, ok := cache.Get("fixed")
		assert.True(t, ok)

		now = now.Add(31 * time.Second)
		_, ok = cache.Get("fixed")
		assert.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		cache.Set("del", "v", time.Minute)
		cache.Delete("del")
		_, ok := cache.Get("del")
		assert.False(t, ok)
	})
}

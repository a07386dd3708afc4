package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetGet(t *testing.T) {
	c := NewInMemoryCache[string, int](time.Minute)

	c.Set("a", 1, 0)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	c := NewInMemoryCache[string, int](time.Minute)

	c.Set("short", 1, 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("short")
	assert.False(t, ok)
	// 过期项未清理前仍占据容量
	assert.Equal(t, 1, c.Size())

	c.Cleanup()
	assert.Equal(t, 0, c.Size())
}

func TestDeleteAndClear(t *testing.T) {
	c := NewInMemoryCache[uint64, string](time.Minute)

	c.Set(1, "a", 0)
	c.Set(2, "b", 0)
	c.Delete(1)
	assert.Equal(t, 1, c.Size())

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

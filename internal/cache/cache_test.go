package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_SetGetExpire(t *testing.T) {
	c := New(true)
	defer c.Close()
	now := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	etag := c.Set("games:all", []byte(`[1]`), time.Minute)
	data, got, ok := c.Get("games:all")
	assert.True(t, ok)
	assert.Equal(t, etag, got)
	assert.Equal(t, `[1]`, string(data))

	now = now.Add(2 * time.Minute)
	_, _, ok = c.Get("games:all")
	assert.False(t, ok)

	c.evict()
	assert.Equal(t, 0, c.Stats()["total_keys"])
}

func TestCache_Disabled(t *testing.T) {
	c := New(false)
	etag := c.Set("k", []byte("x"), time.Minute)
	assert.Equal(t, ComputeETag([]byte("x")), etag)
	_, _, ok := c.Get("k")
	assert.False(t, ok)
}

func TestCache_InvalidatePrefix(t *testing.T) {
	c := New(true)
	defer c.Close()
	c.Set("games:a", []byte("1"), time.Minute)
	c.Set("games:b", []byte("2"), time.Minute)
	c.Set("potg:a", []byte("3"), time.Minute)

	assert.Equal(t, 2, c.InvalidatePrefix("games:"))
	_, _, ok := c.Get("potg:a")
	assert.True(t, ok)
}

func TestCheckETagMatch(t *testing.T) {
	etag := ComputeETag([]byte("body"))
	assert.False(t, CheckETagMatch("", etag))
	assert.True(t, CheckETagMatch("*", etag))
	assert.True(t, CheckETagMatch(etag, etag))
	assert.True(t, CheckETagMatch(`W/"other", `+etag, etag))
	assert.False(t, CheckETagMatch(`W/"other"`, etag))
}

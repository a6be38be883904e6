package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_GetSet(t *testing.T) {
	c := NewMemoryCache(10, time.Hour)
	ctx := context.Background()

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	v := []byte("value")
	require.NoError(t, c.Set(ctx, "k", v, time.Minute))
	v[0] = 'X'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "value", string(got))
}

func TestMemoryCache_PerEntryTTL(t *testing.T) {
	c := NewMemoryCache(10, time.Hour)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	now = now.Add(59 * time.Second)
	_, err := c.Get(ctx, "k")
	assert.NoError(t, err)

	now = now.Add(time.Second)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Eviction(t *testing.T) {
	c := NewMemoryCache(2, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_DeleteByPattern(t *testing.T) {
	c := NewMemoryCache(100, time.Hour)
	ctx := context.Background()

	keys := []string{
		"articles:1:10:{}",
		`articles:2:10:{"title":"a/b"}`,
		"articles:3:5:{}",
		"users:1",
		"articles",
	}
	for _, k := range keys {
		require.NoError(t, c.Set(ctx, k, []byte("v"), time.Minute))
	}

	n, err := c.DeleteByPattern(ctx, "articles:*")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	for _, k := range keys[:3] {
		_, err := c.Get(ctx, k)
		assert.ErrorIs(t, err, ErrCacheMiss, k)
	}
	for _, k := range keys[3:] {
		_, err := c.Get(ctx, k)
		assert.NoError(t, err, k)
	}
}

func TestGlobToRegexp(t *testing.T) {
	tests := []struct {
		pattern, key string
		want         bool
	}{
		{"articles:*", "articles:1:10:{}", true},
		{"articles:*", "articles:", true},
		{"articles:*", "articlesX", false},
		{"a?c", "abc", true},
		{"a?c", "ac", false},
		{"a.c", "abc", false},
		{"*", "any/thing", true},
	}
	for _, tt := range tests {
		re, err := globToRegexp(tt.pattern)
		require.NoError(t, err)
		assert.Equal(t, tt.want, re.MatchString(tt.key), "%s ~ %s", tt.pattern, tt.key)
	}
}

func TestMemoryCache_PingClose(t *testing.T) {
	c := NewMemoryCache(1, time.Minute)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))

	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

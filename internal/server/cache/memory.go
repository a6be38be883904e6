package cache

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache implements Cache in process on an expiring LRU. maxTTL bounds
// every entry's lifetime; shorter per-entry TTLs are checked on read.
type MemoryCache struct {
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

// NewMemoryCache holds at most size entries, none living longer than maxTTL.
func NewMemoryCache(size int, maxTTL time.Duration) *MemoryCache {
	return &MemoryCache{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.lru.Remove(key)
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.lru.Add(key, e)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) (int64, error) {
	var n int64
	for _, k := range keys {
		if c.lru.Remove(k) {
			n++
		}
	}
	return n, nil
}

func (c *MemoryCache) DeleteByPattern(ctx context.Context, pattern string) (int64, error) {
	re, err := globToRegexp(pattern)
	if err != nil {
		return 0, err
	}
	var matched []string
	for _, k := range c.lru.Keys() {
		if re.MatchString(k) {
			matched = append(matched, k)
		}
	}
	return c.Delete(ctx, matched...)
}

func (c *MemoryCache) Ping(context.Context) error { return nil }

func (c *MemoryCache) Close() error {
	c.lru.Purge()
	return nil
}

var (
	globMu    sync.Mutex
	globCache = map[string]*regexp.Regexp{}
)

// globToRegexp compiles a Redis MATCH style pattern. Only `*` and `?` are
// special; `*` matches across any character, including `/`.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	globMu.Lock()
	defer globMu.Unlock()

	if re, ok := globCache[pattern]; ok {
		return re, nil
	}

	var b strings.Builder
	b.WriteString(`(?s)^`)
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`$`)

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}
	globCache[pattern] = re
	return re, nil
}

package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryCache is an in-process Cache bounded by entry count. It is used when
// no Redis URL is configured and in tests.
type MemoryCache struct {
	mu      sync.Mutex
	entries *lru.Cache[string, memEntry]
	now     func() time.Time
}

// NewMemoryCache creates a MemoryCache holding at most size entries.
func NewMemoryCache(size int) (*MemoryCache, error) {
	entries, err := lru.New[string, memEntry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{entries: entries, now: time.Now}, nil
}

func (c *MemoryCache) Ping(_ context.Context) error { return nil }
func (c *MemoryCache) Close() error                 { return nil }

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Add(key, c.entry(value, ttl))
	return nil
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if e.expired(c.now()) {
		c.entries.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// IncrWithExpiry increments a counter stored as a decimal string and resets
// its expiry, matching the Redis INCR+EXPIRE pipeline.
func (c *MemoryCache) IncrWithExpiry(_ context.Context, key string, expiry time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	if e, ok := c.entries.Get(key); ok && !e.expired(c.now()) {
		n, _ = strconv.ParseInt(string(e.value), 10, 64)
	}
	n++
	c.entries.Add(key, c.entry([]byte(strconv.FormatInt(n, 10)), expiry))
	return n, nil
}

func (c *MemoryCache) entry(value []byte, ttl time.Duration) memEntry {
	e := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	return e
}

var _ Cache = (*MemoryCache)(nil)

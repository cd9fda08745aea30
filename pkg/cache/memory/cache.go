// Package memory implements the gateway's in-process response cache.
//
// Entries expire lazily: a read that finds a stale entry removes it. There is
// no background sweeper and no capacity bound.
package memory

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/pario-ai/chatgate/pkg/models"
)

const defaultShards = 32

type entry struct {
	value     string
	expiresAt time.Time
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// Cache is an exact-match TTL cache keyed by message text.
type Cache struct {
	shards []*shard
	nowFn  func() time.Time
	hits   atomic.Int64
	misses atomic.Int64

	// beforeEvict runs between dropping the read lock and taking the write
	// lock on the stale path. Tests use it to interleave a Put.
	beforeEvict func()
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.nowFn = now
		}
	}
}

// WithShards sets the number of lock shards. Values below 1 are ignored.
func WithShards(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.shards = newShards(n)
		}
	}
}

// New creates an empty Cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		shards: newShards(defaultShards),
		nowFn:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newShards(n int) []*shard {
	out := make([]*shard, n)
	for i := range out {
		out[i] = &shard{entries: make(map[string]*entry)}
	}
	return out
}

func (c *Cache) shardFor(key string) *shard {
	return c.shards[xxhash.Sum64String(key)%uint64(len(c.shards))]
}

// Get returns the value stored under key if it has not expired. A stale
// entry is removed, unless a concurrent Put has already replaced it.
func (c *Cache) Get(key string) (string, bool) {
	s := c.shardFor(key)
	now := c.nowFn()

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		return "", false
	}
	if now.Before(e.expiresAt) {
		c.hits.Add(1)
		return e.value, true
	}

	if c.beforeEvict != nil {
		c.beforeEvict()
	}
	s.mu.Lock()
	if cur, ok := s.entries[key]; ok && cur == e {
		delete(s.entries, key)
	}
	s.mu.Unlock()

	c.misses.Add(1)
	return "", false
}

// Put inserts or replaces the value under key, expiring ttl from now.
func (c *Cache) Put(key, value string, ttl time.Duration) {
	e := &entry{value: value, expiresAt: c.nowFn().Add(ttl)}
	s := c.shardFor(key)
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
}

// Delete removes key if present.
func (c *Cache) Delete(key string) {
	s := c.shardFor(key)
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Len returns the number of stored entries, including ones that have expired
// but not yet been read.
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// Stats returns cache performance metrics.
func (c *Cache) Stats() (models.CacheStats, error) {
	return models.CacheStats{
		Entries: int64(c.Len()),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear removes cache entries and returns how many were dropped. If
// expiredOnly is true, only expired entries are removed.
func (c *Cache) Clear(expiredOnly bool) int {
	now := c.nowFn()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		if !expiredOnly {
			removed += len(s.entries)
			s.entries = make(map[string]*entry)
			s.mu.Unlock()
			continue
		}
		for k, e := range s.entries {
			if !now.Before(e.expiresAt) {
				delete(s.entries, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

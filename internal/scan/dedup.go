package scan

import (
	"context"
	"sync"
	"time"

	"taskpulse/internal/storage"
	"taskpulse/pkg/logx"
)

// dedupCache is the dispatch cache: notification ID -> instant it was last
// dispatched. Entries older than the TTL count as absent. The in-memory map
// is authoritative; the optional persistent store only widens the cache
// across restarts and its failures are never allowed to block a dispatch.
type dedupCache struct {
	persist storage.Store // may be nil
	log     logx.Logger

	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time
}

func newDedupCache(ttl time.Duration, persist storage.Store, log logx.Logger) *dedupCache {
	return &dedupCache{
		ttl:     ttl,
		persist: persist,
		log:     log,
		entries: map[string]time.Time{},
	}
}

func (c *dedupCache) setTTL(ttl time.Duration) {
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
}

// seen reports whether id was dispatched within the TTL.
func (c *dedupCache) seen(ctx context.Context, id string, now time.Time) bool {
	c.mu.Lock()
	at, ok := c.entries[id]
	ttl := c.ttl
	c.mu.Unlock()
	if ok && now.Sub(at) < ttl {
		return true
	}
	if c.persist != nil {
		until, ok, err := c.persist.GetDedup(ctx, id)
		if err != nil {
			c.log.Debug("persistent dedup read failed", logx.String("id", id), logx.Err(err))
		} else if ok && now.Before(until) {
			return true
		}
	}
	return false
}

// mark records a dispatch of id at now.
func (c *dedupCache) mark(ctx context.Context, id string, now time.Time) {
	c.mu.Lock()
	c.entries[id] = now
	ttl := c.ttl
	c.mu.Unlock()
	if c.persist != nil {
		if err := c.persist.PutDedup(ctx, id, now.Add(ttl)); err != nil {
			c.log.Debug("persistent dedup write failed", logx.String("id", id), logx.Err(err))
		}
	}
}

// prune drops entries past the TTL to bound memory.
func (c *dedupCache) prune(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, at := range c.entries {
		if now.Sub(at) >= c.ttl {
			delete(c.entries, id)
		}
	}
}

func (c *dedupCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ctxforge/contextstore/internal/ctxmodel"
)

// ResponseCache is the Orchestrator's pluggable response cache (C17): the
// default is an in-memory FIFO-by-insertion-age map (spec.md §4.8); an
// optional Redis-backed implementation satisfies the same interface.
type ResponseCache interface {
	Get(ctx context.Context, key string) (ctxmodel.ContextResponse, bool)
	Set(ctx context.Context, key string, resp ctxmodel.ContextResponse, ttl time.Duration)
	Invalidate(ctx context.Context)
}

type cacheEntry struct {
	resp       ctxmodel.ContextResponse
	insertedAt time.Time
	ttl        time.Duration
}

func (e cacheEntry) expired(now time.Time) bool {
	return e.ttl > 0 && now.After(e.insertedAt.Add(e.ttl))
}

// MemoryCache is the default ResponseCache: bounded at MaxEntries, evicting
// the EvictCount oldest entries by insertion time on overflow (spec.md
// §4.8: "LRU-bounded at 100 entries, evicting by age" — "age" here is
// insertion age per SPEC_FULL.md §9, so this is strictly FIFO, not a true
// access-recency LRU).
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	maxEntries int
	evictCount int
}

func NewMemoryCache(maxEntries, evictCount int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	if evictCount <= 0 {
		evictCount = 20
	}
	return &MemoryCache{entries: make(map[string]cacheEntry), maxEntries: maxEntries, evictCount: evictCount}
}

func (c *MemoryCache) Get(_ context.Context, key string) (ctxmodel.ContextResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return ctxmodel.ContextResponse{}, false
	}
	if e.expired(time.Now()) {
		delete(c.entries, key)
		return ctxmodel.ContextResponse{}, false
	}
	return e.resp, true
}

func (c *MemoryCache) Set(_ context.Context, key string, resp ctxmodel.ContextResponse, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{resp: resp, insertedAt: time.Now(), ttl: ttl}
	if len(c.entries) > c.maxEntries {
		c.evictOldestLocked()
	}
}

func (c *MemoryCache) evictOldestLocked() {
	type keyed struct {
		key        string
		insertedAt time.Time
	}
	ordered := make([]keyed, 0, len(c.entries))
	for k, e := range c.entries {
		ordered = append(ordered, keyed{key: k, insertedAt: e.insertedAt})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].insertedAt.Before(ordered[j].insertedAt) })
	n := c.evictCount
	if n > len(ordered) {
		n = len(ordered)
	}
	for i := 0; i < n; i++ {
		delete(c.entries, ordered[i].key)
	}
}

func (c *MemoryCache) Invalidate(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

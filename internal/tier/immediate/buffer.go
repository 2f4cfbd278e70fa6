// Package immediate implements the hot FIFO+TTL cache tier (spec.md §4.1).
package immediate

import (
	"strings"
	"sync"
	"time"

	"github.com/ctxforge/contextstore/internal/ctxmodel"
)

// Metrics is the snapshot returned by Buffer.Metrics.
type Metrics struct {
	CurrentSize    int
	MaxSize        int
	TotalAdds      int64
	TotalEvictions int64
	TTLSeconds     int
	OldestAge      time.Duration
	NewestAge      time.Duration
}

// Buffer is a bounded FIFO with lazy TTL expiry, guarded by a single lock
// per spec.md §5 ("one lock per tier"). Expiration only happens on read
// and on Metrics, never on a background timer, bounding worst-case work at
// O(k) where k is the number of expired items at the head (spec.md §4.1).
type Buffer struct {
	mu             sync.RWMutex
	items          []ctxmodel.ContextItem
	maxSize        int
	ttl            time.Duration
	totalAdds      int64
	totalEvictions int64
}

// New constructs a Buffer bounded at maxSize with the given TTL.
func New(maxSize int, ttl time.Duration) *Buffer {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Buffer{maxSize: maxSize, ttl: ttl}
}

// Add appends item, evicting the oldest entry if the buffer was already at
// max_size (spec.md §4.1: "Succeeds unconditionally").
func (b *Buffer) Add(item ctxmodel.ContextItem) {
	if b.ttl > 0 {
		deadline := item.Timestamp.Add(b.ttl)
		item.ExpiresAt = &deadline
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalAdds++
	if len(b.items) >= b.maxSize {
		b.items = b.items[1:]
		b.totalEvictions++
	}
	b.items = append(b.items, item)
}

// dropExpiredLocked removes expired items from the head of the slice.
// Caller must hold b.mu for writing.
func (b *Buffer) dropExpiredLocked(now time.Time) {
	i := 0
	for i < len(b.items) && b.items[i].Expired(now) {
		i++
	}
	if i > 0 {
		b.totalEvictions += int64(i)
		b.items = b.items[i:]
	}
}

// GetRecent returns up to maxItems items, newest first, optionally filtered
// by conversationID. Expired items are dropped first. Returned items are
// marked accessed (spec.md §4.1).
func (b *Buffer) GetRecent(maxItems int, conversationID string) []ctxmodel.ContextItem {
	now := time.Now()
	b.mu.Lock()
	b.dropExpiredLocked(now)
	out := make([]ctxmodel.ContextItem, 0, maxItems)
	for i := len(b.items) - 1; i >= 0 && len(out) < maxItems; i-- {
		if conversationID != "" && b.items[i].ConversationID != conversationID {
			continue
		}
		b.items[i] = b.items[i].Touch(now)
		out = append(out, b.items[i])
	}
	b.mu.Unlock()
	return out
}

// GetByQuery returns GetRecent filtered further by a substring/keyword
// match against query (spec.md §4.8 Retrieve step 2: "Immediate:
// GetRecent(...) then substring/keyword filter if query non-empty").
func (b *Buffer) GetByQuery(maxItems int, conversationID, query string) []ctxmodel.ContextItem {
	candidates := b.GetRecent(b.maxSize, conversationID)
	if query == "" {
		if len(candidates) > maxItems {
			candidates = candidates[:maxItems]
		}
		return candidates
	}
	lowered := strings.ToLower(query)
	out := make([]ctxmodel.ContextItem, 0, maxItems)
	for _, it := range candidates {
		if strings.Contains(strings.ToLower(it.Content), lowered) {
			out = append(out, it)
			if len(out) == maxItems {
				break
			}
		}
	}
	return out
}

// Clear drops all items, or only those matching conversationID if set,
// preserving the order of the remainder (spec.md §4.1).
func (b *Buffer) Clear(conversationID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if conversationID == "" {
		b.items = nil
		return
	}
	kept := b.items[:0:0]
	for _, it := range b.items {
		if it.ConversationID != conversationID {
			kept = append(kept, it)
		}
	}
	b.items = kept
}

// Metrics reports the buffer's current counters (spec.md §4.1).
func (b *Buffer) Metrics() Metrics {
	now := time.Now()
	b.mu.Lock()
	b.dropExpiredLocked(now)
	m := Metrics{
		CurrentSize:    len(b.items),
		MaxSize:        b.maxSize,
		TotalAdds:      b.totalAdds,
		TotalEvictions: b.totalEvictions,
		TTLSeconds:     int(b.ttl / time.Second),
	}
	if len(b.items) > 0 {
		m.OldestAge = now.Sub(b.items[0].Timestamp)
		m.NewestAge = now.Sub(b.items[len(b.items)-1].Timestamp)
	}
	b.mu.Unlock()
	return m
}

package ctxmodel

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContextItem is the atomic unit stored and retrieved by every tier
// (spec.md §3 "ContextItem").
type ContextItem struct {
	ID              string
	Content         string
	Metadata        Metadata
	Timestamp       time.Time
	ConversationID  string
	TaskID          string
	ExpiresAt       *time.Time
	AccessCount     int64
	LastAccessed    *time.Time
	ImportanceScore float64
	RelevanceScore  float64
	Embedding       []float32
}

// New constructs a ContextItem, deriving ImportanceScore from metadata at
// construction time per invariant 2 (it never changes afterward) and
// TaskID from metadata.task_id per the reserved-key table.
func New(content string, md Metadata, conversationID string) ContextItem {
	taskID := md.TaskID
	return ContextItem{
		ID:              uuid.NewString(),
		Content:         content,
		Metadata:        md,
		Timestamp:       time.Now(),
		ConversationID:  conversationID,
		TaskID:          taskID,
		ImportanceScore: md.ImportanceScore(),
	}
}

// Expired reports whether the item's expires_at deadline has passed
// (invariant 5: expired items must never be returned from retrieval).
func (c ContextItem) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// Touch records an access: bumps AccessCount (invariant 4: monotonically
// non-decreasing) and sets LastAccessed (invariant 3: timestamp <=
// last_accessed once set). Returns the updated copy; callers hold items by
// value within their own tier lock, so mutation is always local.
func (c ContextItem) Touch(now time.Time) ContextItem {
	c.AccessCount++
	c.LastAccessed = &now
	return c
}

// DedupKey is the deduplication key from invariant 6 / spec.md §3: the
// trimmed, lower-cased content.
func DedupKey(content string) string {
	return strings.ToLower(strings.TrimSpace(content))
}

// MatchesFilters implements the shared filter predicate semantics of
// spec.md §4.9: a filters map matches an item iff for every (k,v), either
// item.metadata[k] == v (scalar) or v is a list and item.metadata[k] is a
// member of it. A missing key, or an unknown-typed comparison, is no match.
func (c ContextItem) MatchesFilters(filters map[string]Value) bool {
	for k, want := range filters {
		got, ok := c.Metadata.Get(k)
		if !ok {
			return false
		}
		if list, isList := want.AsStringList(); isList {
			s, isStr := got.AsString()
			if !isStr {
				return false
			}
			matched := false
			for _, w := range list {
				if w == s {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
			continue
		}
		if !got.Equal(want) {
			return false
		}
	}
	return true
}

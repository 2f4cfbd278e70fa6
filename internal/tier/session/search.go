package session

import (
	"sort"
	"time"

	"github.com/ctxforge/contextstore/internal/ctxmodel"
)

// relevance computes the spec.md §4.2 blended relevance score:
// 0.6*matchFraction + 0.4*jaccard.
func relevance(query, content string) float64 {
	a := ctxmodel.WordMatchFraction(query, content)
	b := ctxmodel.Jaccard(query, content)
	return 0.6*a + 0.4*b
}

// Search implements spec.md §4.2 "Search": filter by conversation/task and
// metadata predicate, score by query relevance (or recency if query is
// empty), and return the top max_results. Returned items are marked
// accessed.
func (s *Store) Search(query string, maxResults int, filters map[string]ctxmodel.Value, conversationID, taskID string) []ctxmodel.ContextItem {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates := s.candidateIDsLocked(conversationID, taskID)
	type scored struct {
		item  ctxmodel.ContextItem
		score float64
	}
	out := make([]scored, 0, len(candidates))
	for id := range candidates {
		it, ok := s.items[id]
		if !ok || it.Expired(now) {
			continue
		}
		if !it.MatchesFilters(filters) {
			continue
		}
		if query != "" {
			rel := relevance(query, it.Content)
			if rel < s.cfg.RelevanceThreshold {
				continue
			}
			out = append(out, scored{item: it, score: rel * it.ImportanceScore})
		} else {
			out = append(out, scored{item: it, score: float64(it.Timestamp.Unix()) * it.ImportanceScore})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].score > out[j].score })
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	result := make([]ctxmodel.ContextItem, len(out))
	for i, sc := range out {
		touched := sc.item.Touch(now)
		s.items[touched.ID] = touched
		result[i] = touched
	}
	return result
}

// candidateIDsLocked narrows the candidate set by conversation/task index,
// or returns every resident id if neither is set. Caller holds s.mu.
func (s *Store) candidateIDsLocked(conversationID, taskID string) map[string]struct{} {
	if conversationID == "" && taskID == "" {
		all := make(map[string]struct{}, len(s.items))
		for id := range s.items {
			all[id] = struct{}{}
		}
		return all
	}
	var sets []map[string]struct{}
	if conversationID != "" {
		sets = append(sets, s.byConversation[conversationID])
	}
	if taskID != "" {
		sets = append(sets, s.byTask[taskID])
	}
	if len(sets) == 1 {
		cp := make(map[string]struct{}, len(sets[0]))
		for id := range sets[0] {
			cp[id] = struct{}{}
		}
		return cp
	}
	// Intersection of both indices.
	out := make(map[string]struct{})
	for id := range sets[0] {
		if _, ok := sets[1][id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// Clear removes every resident item.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]ctxmodel.ContextItem)
	s.byConversation = make(map[string]map[string]struct{})
	s.byTask = make(map[string]map[string]struct{})
}

// ClearConversation removes every item in the given conversation, updating
// both secondary indices (spec.md §4.2 "Clearing").
func (s *Store) ClearConversation(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.byConversation[conversationID] {
		if it, ok := s.items[id]; ok {
			s.unindexLocked(it)
			delete(s.items, id)
		}
	}
}

// ClearTask removes every item under the given task, updating both
// secondary indices.
func (s *Store) ClearTask(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.byTask[taskID] {
		if it, ok := s.items[id]; ok {
			s.unindexLocked(it)
			delete(s.items, id)
		}
	}
}

// Size returns the current resident count (used to assert invariant 10:
// size <= max_size after every Add).
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Snapshot returns a copy of every resident item; the package's tests use it
// to inspect store contents.
func (s *Store) Snapshot() []ctxmodel.ContextItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ctxmodel.ContextItem, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	return out
}

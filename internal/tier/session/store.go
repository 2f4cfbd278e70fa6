// Package session implements the bounded, importance-aware working-set
// tier (spec.md §4.2).
package session

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ctxforge/contextstore/internal/archive"
	"github.com/ctxforge/contextstore/internal/ctxmodel"
	"github.com/ctxforge/contextstore/internal/telemetry"
)

// Config bounds a Store's capacity and behavior.
type Config struct {
	MaxSize                int
	RelevanceThreshold     float64
	ConsolidationEnabled   bool
	ConsolidationThreshold int // trigger Add count; 0 disables
	ConsolidationMinGroup  int // default 5 per spec.md §4.2
}

// Store is the bounded associative SessionStore with a primary index by id
// and secondary indices by conversation_id and task_id (spec.md §4.2).
// Guarded by a single lock per spec.md §5.
type Store struct {
	mu    sync.RWMutex
	cfg   Config
	items map[string]ctxmodel.ContextItem

	byConversation map[string]map[string]struct{}
	byTask         map[string]map[string]struct{}

	addsSinceConsolidation int
	archiveSink            archive.Sink
}

func New(cfg Config) *Store {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1
	}
	if cfg.RelevanceThreshold <= 0 {
		cfg.RelevanceThreshold = 0.1
	}
	if cfg.ConsolidationMinGroup <= 0 {
		cfg.ConsolidationMinGroup = 5
	}
	return &Store{
		cfg:            cfg,
		items:          make(map[string]ctxmodel.ContextItem),
		byConversation: make(map[string]map[string]struct{}),
		byTask:         make(map[string]map[string]struct{}),
		archiveSink:    archive.None{},
	}
}

// SetArchiveSink wires an optional cold-storage destination for evicted or
// consolidated items (SPEC_FULL.md §4.2 "Archival on destruction").
func (s *Store) SetArchiveSink(sink archive.Sink) {
	if sink == nil {
		sink = archive.None{}
	}
	s.mu.Lock()
	s.archiveSink = sink
	s.mu.Unlock()
}

func (s *Store) indexLocked(it ctxmodel.ContextItem) {
	if it.ConversationID != "" {
		set, ok := s.byConversation[it.ConversationID]
		if !ok {
			set = make(map[string]struct{})
			s.byConversation[it.ConversationID] = set
		}
		set[it.ID] = struct{}{}
	}
	if it.TaskID != "" {
		set, ok := s.byTask[it.TaskID]
		if !ok {
			set = make(map[string]struct{})
			s.byTask[it.TaskID] = set
		}
		set[it.ID] = struct{}{}
	}
}

func (s *Store) unindexLocked(it ctxmodel.ContextItem) {
	if it.ConversationID != "" {
		if set, ok := s.byConversation[it.ConversationID]; ok {
			delete(set, it.ID)
			if len(set) == 0 {
				delete(s.byConversation, it.ConversationID)
			}
		}
	}
	if it.TaskID != "" {
		if set, ok := s.byTask[it.TaskID]; ok {
			delete(set, it.ID)
			if len(set) == 0 {
				delete(s.byTask, it.TaskID)
			}
		}
	}
}

// evictScore is the eviction-only scoring formula from spec.md §4.2.
func evictScore(it ctxmodel.ContextItem, now time.Time) float64 {
	ref := it.Timestamp
	if it.LastAccessed != nil && it.LastAccessed.After(ref) {
		ref = *it.LastAccessed
	}
	ageHours := now.Sub(ref).Hours()
	recency := 1 / (1 + ageHours)
	return recency * it.ImportanceScore * (1 + float64(it.AccessCount))
}

// Add inserts or updates item. If the store is at max_size and this is a
// new id, the lowest-scoring resident is evicted first (spec.md §4.2
// "Admission"). Re-Add with an existing id updates in place (spec.md §4.10).
func (s *Store) Add(item ctxmodel.ContextItem) {
	now := time.Now()
	s.mu.Lock()
	var evicted *ctxmodel.ContextItem
	if _, exists := s.items[item.ID]; !exists && len(s.items) >= s.cfg.MaxSize {
		evicted = s.evictOneLocked(now)
	}
	if old, exists := s.items[item.ID]; exists {
		s.unindexLocked(old)
	}
	s.items[item.ID] = item
	s.indexLocked(item)
	s.addsSinceConsolidation++

	var toConsolidate []ctxmodel.ContextItem
	var synthetic *ctxmodel.ContextItem
	if s.cfg.ConsolidationEnabled && s.cfg.ConsolidationThreshold > 0 &&
		s.addsSinceConsolidation >= s.cfg.ConsolidationThreshold {
		s.addsSinceConsolidation = 0
		toConsolidate, synthetic = s.consolidateLocked(item.ConversationID)
	}
	sink := s.archiveSink
	s.mu.Unlock()

	var toArchive []ctxmodel.ContextItem
	if evicted != nil {
		toArchive = append(toArchive, *evicted)
	}
	toArchive = append(toArchive, toConsolidate...)
	_ = synthetic
	if len(toArchive) > 0 {
		go archiveAsync(sink, toArchive)
	}
}

func archiveAsync(sink archive.Sink, items []ctxmodel.ContextItem) {
	if err := sink.Archive(context.Background(), items); err != nil {
		telemetry.LoggerWithTrace(context.Background()).Warn().Err(err).Msg("session archive failed")
	}
}

// evictOneLocked scores every resident item and evicts the minimum,
// tie-breaking by oldest timestamp (spec.md §4.2). Caller holds s.mu.
func (s *Store) evictOneLocked(now time.Time) *ctxmodel.ContextItem {
	var worstID string
	var worst ctxmodel.ContextItem
	first := true
	for id, it := range s.items {
		sc := evictScore(it, now)
		if first {
			worstID, worst, first = id, it, false
			continue
		}
		wsc := evictScore(worst, now)
		if sc < wsc || (sc == wsc && it.Timestamp.Before(worst.Timestamp)) {
			worstID, worst = id, it
		}
	}
	if first {
		return nil
	}
	s.unindexLocked(worst)
	delete(s.items, worstID)
	cp := worst
	return &cp
}

// consolidateLocked groups items by conversation_id; for groups of at least
// ConsolidationMinGroup, replaces them with a single synthetic item
// (spec.md §4.2 "Consolidation"). If conversationID is non-empty, only that
// conversation's group is considered; otherwise every conversation with a
// sufficient group is consolidated.
func (s *Store) consolidateLocked(conversationID string) ([]ctxmodel.ContextItem, *ctxmodel.ContextItem) {
	groups := make(map[string][]ctxmodel.ContextItem)
	for _, it := range s.items {
		if it.Metadata.Type == ctxmodel.TypeConsolidated {
			continue
		}
		if conversationID != "" && it.ConversationID != conversationID {
			continue
		}
		groups[it.ConversationID] = append(groups[it.ConversationID], it)
	}
	var removed []ctxmodel.ContextItem
	var lastSynthetic *ctxmodel.ContextItem
	for cid, members := range groups {
		if cid == "" || len(members) < s.cfg.ConsolidationMinGroup {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].Timestamp.Before(members[j].Timestamp) })
		var b strings.Builder
		var sumImportance float64
		for i, m := range members {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString("[" + m.Timestamp.Format("15:04") + "] " + m.Content)
			sumImportance += m.ImportanceScore
		}
		synthetic := ctxmodel.ContextItem{
			ID:              newSyntheticID(),
			Content:         b.String(),
			ConversationID:  cid,
			Timestamp:       members[0].Timestamp,
			ImportanceScore: sumImportance / float64(len(members)),
		}
		synthetic.Metadata.Type = ctxmodel.TypeConsolidated
		synthetic.Metadata.Persistence = ctxmodel.PersistenceSession

		for _, m := range members {
			s.unindexLocked(m)
			delete(s.items, m.ID)
			removed = append(removed, m)
		}
		s.items[synthetic.ID] = synthetic
		s.indexLocked(synthetic)
		cp := synthetic
		lastSynthetic = &cp
	}
	return removed, lastSynthetic
}

func newSyntheticID() string {
	return "consolidated-" + time.Now().Format("20060102T150405.000000000")
}

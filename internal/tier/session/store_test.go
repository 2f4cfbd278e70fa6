package session

import (
	"strings"
	"testing"

	"github.com/ctxforge/contextstore/internal/ctxmodel"
)

func itemWithImportance(content string, imp ctxmodel.Importance) ctxmodel.ContextItem {
	md := ctxmodel.NewMetadata()
	md.Importance = imp
	return ctxmodel.New(content, md, "")
}

// TestImportanceRetentionUnderPressure covers scenario S2 from spec.md §8.
func TestImportanceRetentionUnderPressure(t *testing.T) {
	s := New(Config{MaxSize: 5})
	s.Add(itemWithImportance("low one", ctxmodel.ImportanceLow))
	s.Add(itemWithImportance("normal one", ctxmodel.ImportanceNormal))
	s.Add(itemWithImportance("contains high", ctxmodel.ImportanceHigh))
	s.Add(itemWithImportance("contains critical", ctxmodel.ImportanceCritical))

	for i := 0; i < 15; i++ {
		s.Add(itemWithImportance("low filler", ctxmodel.ImportanceLow))
	}

	if s.Size() > 5 {
		t.Fatalf("size bound violated: %d", s.Size())
	}
	var hasHigh, hasCritical bool
	for _, it := range s.Snapshot() {
		if strings.Contains(it.Content, "critical") {
			hasCritical = true
		}
		if strings.Contains(it.Content, "high") {
			hasHigh = true
		}
	}
	if !hasHigh || !hasCritical {
		t.Fatalf("expected high and critical items to survive eviction storm; snapshot=%v", s.Snapshot())
	}
}

// TestSizeBoundedAfterEveryAdd covers universal invariant 10.
func TestSizeBoundedAfterEveryAdd(t *testing.T) {
	s := New(Config{MaxSize: 3})
	for i := 0; i < 50; i++ {
		s.Add(itemWithImportance("x", ctxmodel.ImportanceNormal))
		if s.Size() > 3 {
			t.Fatalf("size exceeded max_size after add %d: %d", i, s.Size())
		}
	}
}

func TestReAddUpdatesInPlace(t *testing.T) {
	s := New(Config{MaxSize: 5})
	it := itemWithImportance("v1", ctxmodel.ImportanceNormal)
	s.Add(it)
	it.Content = "v2"
	s.Add(it)
	if s.Size() != 1 {
		t.Fatalf("expected exactly one entry after re-add, got %d", s.Size())
	}
	got := s.Snapshot()
	if got[0].Content != "v2" {
		t.Fatalf("expected latest content v2, got %q", got[0].Content)
	}
}

func TestConsolidation(t *testing.T) {
	s := New(Config{MaxSize: 50, ConsolidationEnabled: true, ConsolidationThreshold: 5, ConsolidationMinGroup: 5})
	for i := 0; i < 5; i++ {
		it := itemWithImportance("msg", ctxmodel.ImportanceNormal)
		it.ConversationID = "conv-1"
		s.Add(it)
	}
	var sawConsolidated bool
	for _, it := range s.Snapshot() {
		if it.Metadata.Type == ctxmodel.TypeConsolidated {
			sawConsolidated = true
		}
	}
	if !sawConsolidated {
		t.Fatalf("expected a consolidated item after 5 same-conversation adds, got %+v", s.Snapshot())
	}
}

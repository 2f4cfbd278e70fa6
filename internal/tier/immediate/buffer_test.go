package immediate

import (
	"testing"
	"time"

	"github.com/ctxforge/contextstore/internal/ctxmodel"
)

func newItem(content string) ctxmodel.ContextItem {
	return ctxmodel.New(content, ctxmodel.NewMetadata(), "")
}

// TestImmediateRecall covers scenario S1 from spec.md §8: capacity=3, store
// A,B,C,D in order, GetRecent returns D,C,B newest-first.
func TestImmediateRecall(t *testing.T) {
	buf := New(3, 60*time.Second)
	for _, c := range []string{"A", "B", "C", "D"} {
		buf.Add(newItem(c))
		time.Sleep(time.Millisecond)
	}
	got := buf.GetRecent(10, "")
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	want := []string{"D", "C", "B"}
	for i, w := range want {
		if got[i].Content != w {
			t.Fatalf("index %d: want %q, got %q", i, w, got[i].Content)
		}
	}
}

func TestImmediateEvictsOldestOnOverflow(t *testing.T) {
	buf := New(2, time.Minute)
	buf.Add(newItem("1"))
	buf.Add(newItem("2"))
	buf.Add(newItem("3"))
	got := buf.GetRecent(10, "")
	if len(got) != 2 {
		t.Fatalf("expected 2 items after overflow, got %d", len(got))
	}
	if got[0].Content != "3" || got[1].Content != "2" {
		t.Fatalf("unexpected contents: %+v", got)
	}
	if buf.Metrics().TotalEvictions != 1 {
		t.Fatalf("expected 1 eviction, got %d", buf.Metrics().TotalEvictions)
	}
}

func TestImmediateExpiresLazily(t *testing.T) {
	buf := New(5, 10*time.Millisecond)
	buf.Add(newItem("gone-soon"))
	time.Sleep(30 * time.Millisecond)
	got := buf.GetRecent(10, "")
	if len(got) != 0 {
		t.Fatalf("expected expired item to be dropped, got %d items", len(got))
	}
}

func TestImmediateClearByConversation(t *testing.T) {
	buf := New(10, time.Minute)
	a := newItem("a")
	a.ConversationID = "x"
	b := newItem("b")
	b.ConversationID = "y"
	buf.Add(a)
	buf.Add(b)
	buf.Clear("x")
	got := buf.GetRecent(10, "")
	if len(got) != 1 || got[0].Content != "b" {
		t.Fatalf("expected only conversation y to remain, got %+v", got)
	}
}

package retrieve

import (
	"context"
	"testing"

	"github.com/ctxforge/contextstore/internal/backend/graph"
	"github.com/ctxforge/contextstore/internal/backend/vector"
	"github.com/ctxforge/contextstore/internal/bm25"
	"github.com/ctxforge/contextstore/internal/ctxmodel"
)

func newKeywordIndex() *bm25.Index {
	idx := bm25.New()
	idx.AddDocument("d1", "machine learning algorithms", nil)
	idx.AddDocument("d2", "machine learning and deep learning", nil)
	idx.AddDocument("d3", "learning to code", nil)
	return idx
}

func rankOf(results []Result, id string) int {
	for i, r := range results {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// TestFusionMonotonicity covers universal invariant 7 from spec.md §8:
// increasing w_kw (others held constant) cannot decrease the combined rank
// of a result that scores only via keyword among the retrieved triple.
func TestFusionMonotonicity(t *testing.T) {
	keywordOnly := map[string][]Result{
		"keyword":  {{ID: "kw-only", Score: 1.0}},
		"semantic": {{ID: "sem-only", Score: 1.0}},
		"graph":    {{ID: "gr-only", Score: 1.0}},
	}
	lowKW := fuse(keywordOnly, Weights{Keyword: 0.1, Semantic: 0.45, Graph: 0.45}.normalize())
	highKW := fuse(keywordOnly, Weights{Keyword: 0.8, Semantic: 0.1, Graph: 0.1}.normalize())
	lowRank := rankOf(lowKW, "kw-only")
	highRank := rankOf(highKW, "kw-only")
	if highRank > lowRank {
		t.Fatalf("increasing w_kw should not worsen kw-only's rank: low=%d high=%d", lowRank, highRank)
	}
}

// TestHybridFusionWithPartialBackend covers scenario S4 from spec.md §8:
// vector backend offline, BM25 matches 3 docs, graph matches 1 — response
// contains all 4 distinct docs sorted by combined score.
func TestHybridFusionWithPartialBackend(t *testing.T) {
	kw := newKeywordIndex()
	gr := graph.NewMemory()
	ctx := context.Background()
	gr.AddEntity(ctx, "g1", "topic", "Python machine learning", nil)

	r := New(kw, nil, gr)
	results, errs := r.Retrieve(ctx, "machine learning", 10, ctxmodel.StrategyHybrid, nil)
	if len(errs) != 0 {
		t.Fatalf("expected no hard errors from an absent (nil) vector backend, got %v", errs)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 distinct results (3 keyword + 1 graph), got %d: %+v", len(results), results)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("results not sorted by descending combined score at index %d", i)
		}
	}
}

func TestMinMaxNormalizeConstantScores(t *testing.T) {
	results := []Result{{ID: "a", Score: 5}, {ID: "b", Score: 5}}
	norm := minMaxNormalize(results)
	for _, v := range norm {
		if v != 1.0 {
			t.Fatalf("expected all-equal scores to normalize to 1.0, got %v", norm)
		}
	}
}

func TestVectorBackendErrorTreatedAsEmptyComponent(t *testing.T) {
	kw := newKeywordIndex()
	failing := &failingVector{}
	r := New(kw, failing, nil)
	results, errs := r.Retrieve(context.Background(), "machine learning", 10, ctxmodel.StrategyHybrid, nil)
	if len(errs) == 0 {
		t.Fatalf("expected the vector backend's error to be recorded")
	}
	if len(results) == 0 {
		t.Fatalf("expected fusion to proceed over the remaining components")
	}
}

type failingVector struct{}

func (f *failingVector) Add(ctx context.Context, id, content string, metadata map[string]string, embedding []float32) (string, error) {
	return "", errFailing
}
func (f *failingVector) AddBatch(ctx context.Context, items []vector.Item) ([]string, error) {
	return nil, errFailing
}
func (f *failingVector) Search(ctx context.Context, query string, maxResults int, scoreThreshold float64, filters map[string]string) ([]vector.Result, error) {
	return nil, errFailing
}
func (f *failingVector) SearchByEmbedding(ctx context.Context, vec []float32, maxResults int, scoreThreshold float64, filters map[string]string) ([]vector.Result, error) {
	return nil, errFailing
}
func (f *failingVector) Delete(ctx context.Context, id string) (bool, error) { return false, errFailing }

var errFailing = &fakeErr{"backend unavailable"}

type fakeErr struct{ msg string }

func (e *fakeErr) Error() string { return e.msg }

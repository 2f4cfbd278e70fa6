// Package retrieve implements the HybridRetriever (spec.md §4.7): parallel
// fan-out over keyword, semantic, and graph backends, min-max score
// normalization, weighted fusion, and an optional reranking hook.
package retrieve

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ctxforge/contextstore/internal/backend/graph"
	"github.com/ctxforge/contextstore/internal/backend/vector"
	"github.com/ctxforge/contextstore/internal/bm25"
	"github.com/ctxforge/contextstore/internal/ctxmodel"
)

// Result is one fused retrieval hit.
type Result struct {
	ID         string
	Content    string
	Score      float64
	Method     string
	Metadata   map[string]ctxmodel.Value
	Components map[string]float64
}

// RerankFunc reorders the top results for a query. Pure function per
// spec.md §4.7: (query, results) -> results.
type RerankFunc func(query string, results []Result) []Result

// Weights are the component weights for hybrid fusion (spec.md §4.7),
// normalized at use so callers don't need them to sum to 1.
type Weights struct {
	Semantic float64
	Keyword  float64
	Graph    float64
}

// DefaultWeights matches spec.md §4.7's defaults.
func DefaultWeights() Weights {
	return Weights{Semantic: 0.5, Keyword: 0.3, Graph: 0.2}
}

func (w Weights) normalize() Weights {
	total := w.Semantic + w.Keyword + w.Graph
	if total <= 0 {
		return DefaultWeights()
	}
	return Weights{Semantic: w.Semantic / total, Keyword: w.Keyword / total, Graph: w.Graph / total}
}

// HybridRetriever fans requests out to whichever backends are configured.
// A nil VectorBackend/GraphBackend is treated as an absent, always-empty
// component (spec.md §4.7 failure model), matching the Orchestrator's
// "explicit interfaces, branch on presence" polymorphism choice.
type HybridRetriever struct {
	Keyword *bm25.Index
	Vector  vector.Backend
	Graph   graph.Backend
	Weights Weights
	Rerank  RerankFunc
}

func New(keyword *bm25.Index, vec vector.Backend, gr graph.Backend) *HybridRetriever {
	return &HybridRetriever{Keyword: keyword, Vector: vec, Graph: gr, Weights: DefaultWeights()}
}

// Retrieve runs the requested strategy and returns fused results plus any
// per-component error strings (never returned as a hard error — spec.md §7
// and §4.7's failure model treat backend trouble as "component empty").
func (h *HybridRetriever) Retrieve(ctx context.Context, query string, maxResults int, strategy ctxmodel.Strategy, filters map[string]ctxmodel.Value) ([]Result, []string) {
	if maxResults <= 0 {
		maxResults = 10
	}
	switch strategy {
	case ctxmodel.StrategyKeyword:
		res, errs := h.runKeyword(ctx, query, maxResults, filters)
		return limitResults(decorate(res, "keyword"), maxResults), errs
	case ctxmodel.StrategySemantic:
		res, errs := h.runSemantic(ctx, query, maxResults, filters)
		return limitResults(decorate(res, "semantic"), maxResults), errs
	case ctxmodel.StrategyGraph:
		res, errs := h.runGraph(ctx, query, maxResults, filters)
		return limitResults(decorate(res, "graph"), maxResults), errs
	default:
		return h.runHybrid(ctx, query, maxResults, filters)
	}
}

func decorate(results []Result, method string) []Result {
	for i := range results {
		results[i].Method = method
	}
	return results
}

func limitResults(results []Result, maxResults int) []Result {
	if len(results) > maxResults {
		return results[:maxResults]
	}
	return results
}

func (h *HybridRetriever) runKeyword(_ context.Context, query string, maxResults int, filters map[string]ctxmodel.Value) ([]Result, []string) {
	if h.Keyword == nil {
		return nil, nil
	}
	hits := h.Keyword.Search(query, maxResults, filters)
	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		out = append(out, Result{ID: hit.ID, Content: hit.Content, Score: hit.Score, Metadata: hit.Metadata})
	}
	return out, nil
}

func (h *HybridRetriever) runSemantic(ctx context.Context, query string, maxResults int, filters map[string]ctxmodel.Value) ([]Result, []string) {
	if h.Vector == nil {
		return nil, nil
	}
	hits, err := h.Vector.Search(ctx, query, maxResults, 0, stringFilters(filters))
	if err != nil {
		return nil, []string{fmt.Sprintf("semantic: %v", err)}
	}
	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		out = append(out, Result{ID: hit.ID, Content: hit.Content, Score: hit.Score, Metadata: stringMapToValues(hit.Metadata)})
	}
	return out, nil
}

func (h *HybridRetriever) runGraph(ctx context.Context, query string, maxResults int, filters map[string]ctxmodel.Value) ([]Result, []string) {
	if h.Graph == nil {
		return nil, nil
	}
	var types []string
	if v, ok := filters["type"]; ok {
		types = append(types, v.String())
	}
	hits, err := h.Graph.SemanticSearch(ctx, query, types, maxResults)
	if err != nil {
		return nil, []string{fmt.Sprintf("graph: %v", err)}
	}
	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		md := map[string]ctxmodel.Value{"entity_type": ctxmodel.StringValue(hit.Type)}
		for k, v := range hit.Props {
			md[k] = ctxmodel.StringValue(v)
		}
		out = append(out, Result{ID: hit.ID, Content: hit.Name, Score: hit.Score, Metadata: md})
	}
	return out, nil
}

// runHybrid fans the three lookups out on an errgroup.Group, but — unlike
// errgroup.WithContext — never lets one component's error cancel the
// others: each goroutine always returns nil to the group and stashes its
// own error string locally, since a failed or absent backend degrades to
// an empty component per spec.md §4.7 rather than aborting the request.
func (h *HybridRetriever) runHybrid(ctx context.Context, query string, maxResults int, filters map[string]ctxmodel.Value) ([]Result, []string) {
	fanOut := maxResults * 2
	var (
		kwResults, semResults, grResults []Result
		errs                             []string
		mu                               sync.Mutex
		g                                errgroup.Group
	)
	g.Go(func() error {
		res, e := h.runKeyword(ctx, query, fanOut, filters)
		mu.Lock()
		kwResults, errs = res, append(errs, e...)
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		res, e := h.runSemantic(ctx, query, fanOut, filters)
		mu.Lock()
		semResults, errs = res, append(errs, e...)
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		res, e := h.runGraph(ctx, query, fanOut, filters)
		mu.Lock()
		grResults, errs = res, append(errs, e...)
		mu.Unlock()
		return nil
	})
	_ = g.Wait()

	fused := fuse(map[string][]Result{
		"keyword":  kwResults,
		"semantic": semResults,
		"graph":    grResults,
	}, h.Weights.normalize())

	for i := range fused {
		fused[i].Method = "hybrid"
	}
	if h.Rerank != nil {
		fused = h.Rerank(query, fused)
	}
	return limitResults(fused, maxResults), errs
}

// fuse implements spec.md §4.7's fusion: min-max normalize each component's
// scores into [0,1] independently (all scores become 1.0 if max==min), then
// accumulate combined = sum(component_weight * normalized_score), retaining
// each component's normalized score in a sub-map.
func fuse(components map[string][]Result, weights Weights) []Result {
	weightOf := map[string]float64{"keyword": weights.Keyword, "semantic": weights.Semantic, "graph": weights.Graph}

	byID := make(map[string]*Result)
	for name, results := range components {
		normalized := minMaxNormalize(results)
		w := weightOf[name]
		for i, r := range results {
			entry, ok := byID[r.ID]
			if !ok {
				entry = &Result{ID: r.ID, Content: r.Content, Metadata: r.Metadata, Components: map[string]float64{}}
				byID[r.ID] = entry
			}
			entry.Components[name] = normalized[i]
			entry.Score += w * normalized[i]
		}
	}

	out := make([]Result, 0, len(byID))
	for _, r := range byID {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func minMaxNormalize(results []Result) []float64 {
	out := make([]float64, len(results))
	if len(results) == 0 {
		return out
	}
	min, max := math.Inf(1), math.Inf(-1)
	for _, r := range results {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}
	for i, r := range results {
		if max == min {
			out[i] = 1.0
			continue
		}
		out[i] = (r.Score - min) / (max - min)
	}
	return out
}

func stringFilters(filters map[string]ctxmodel.Value) map[string]string {
	if len(filters) == 0 {
		return nil
	}
	out := make(map[string]string, len(filters))
	for k, v := range filters {
		out[k] = v.String()
	}
	return out
}

func stringMapToValues(in map[string]string) map[string]ctxmodel.Value {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]ctxmodel.Value, len(in))
	for k, v := range in {
		out[k] = ctxmodel.StringValue(v)
	}
	return out
}

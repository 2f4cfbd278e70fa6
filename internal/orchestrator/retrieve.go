package orchestrator

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ctxforge/contextstore/internal/ctxmodel"
	"github.com/ctxforge/contextstore/internal/retrieve"
	"github.com/ctxforge/contextstore/internal/telemetry"
)

var tierWeight = map[string]float64{"immediate": 1.0, "session": 0.8, "longterm": 0.6}

type scoredItem struct {
	item  ctxmodel.ContextItem
	tier  string
	score float64
}

// Retrieve implements spec.md §4.8's assembly pipeline: cache lookup,
// parallel tier fan-out, retrieval scoring, dedup, sort, token-budget
// packing, cache install.
func (o *Orchestrator) Retrieve(ctx context.Context, req ctxmodel.ContextRequest) ctxmodel.ContextResponse {
	start := time.Now()
	if req.MaxResults <= 0 {
		req.MaxResults = o.cfg.DefaultMaxResults
	}
	if req.Strategy == "" {
		req.Strategy = o.cfg.DefaultStrategy
	}
	if req.MaxTokens <= 0 && o.cfg.ContextBudgetTokens > 0 {
		req.MaxTokens = o.cfg.ContextBudgetTokens
	}

	cacheKey := req.CacheKey()
	if o.cfg.CacheEnabled {
		if resp, ok := o.cache.Get(ctx, cacheKey); ok {
			resp.CacheHit = true
			o.metrics.IncCounter("cache_hit_total", nil)
			return resp
		}
	}
	o.metrics.IncCounter("cache_miss_total", nil)

	var immediateItems, sessionItems []ctxmodel.ContextItem
	var longTermResults []retrieve.Result
	var backendErrors []string

	var g errgroup.Group
	if req.IncludeImmediate {
		g.Go(func() error {
			immediateItems = o.immediate.GetByQuery(req.MaxResults, req.ConversationID, req.Query)
			return nil
		})
	}
	if req.IncludeSession {
		g.Go(func() error {
			sessionItems = o.session.Search(req.Query, req.MaxResults, req.Filters, req.ConversationID, req.TaskID)
			return nil
		})
	}
	if req.IncludeLongTerm && o.cfg.LongTermEnabled {
		g.Go(func() error {
			longTermResults, backendErrors = o.retriever.Retrieve(ctx, req.Query, req.MaxResults, req.Strategy, req.Filters)
			return nil
		})
	}
	_ = g.Wait()

	now := time.Now()
	scored := make([]scoredItem, 0, len(immediateItems)+len(sessionItems)+len(longTermResults))
	for _, it := range immediateItems {
		scored = append(scored, scoredItem{item: it, tier: "immediate", score: retrievalScore(it, "immediate", req.Query, now, 0)})
	}
	for _, it := range sessionItems {
		scored = append(scored, scoredItem{item: it, tier: "session", score: retrievalScore(it, "session", req.Query, now, 0)})
	}
	for _, r := range longTermResults {
		it := longTermResultToItem(r)
		scored = append(scored, scoredItem{item: it, tier: "longterm", score: retrievalScore(it, "longterm", req.Query, now, r.Score)})
	}

	deduped := dedupe(scored)
	sort.Slice(deduped, func(i, j int) bool { return deduped[i].score > deduped[j].score })

	items, estimatedTokens := pack(deduped, req.MaxTokens, req.MaxResults)

	resp := ctxmodel.ContextResponse{
		Items:           items,
		Strategy:        req.Strategy,
		ImmediateCount:  countTier(deduped, "immediate"),
		SessionCount:    countTier(deduped, "session"),
		LongTermCount:   countTier(deduped, "longterm"),
		CacheHit:        false,
		EstimatedTokens: estimatedTokens,
		BackendErrors:   backendErrors,
	}

	if o.cfg.CacheEnabled {
		o.cache.Set(ctx, cacheKey, resp, o.cfg.CacheTTL)
	}
	elapsed := time.Since(start)
	o.metrics.ObserveHistogram("retrieve_latency_seconds", elapsed.Seconds(), nil)
	o.eventSink.Record(ctx, telemetry.Event{
		Kind:           "retrieve",
		ConversationID: req.ConversationID,
		Strategy:       string(resp.Strategy),
		DurationMS:     float64(elapsed.Microseconds()) / 1000,
		ItemCount:      len(resp.Items),
		At:             start,
	})
	telemetry.LoggerWithTrace(ctx).Debug().
		Int("result_count", len(resp.Items)).
		Str("strategy", string(resp.Strategy)).
		Msg("retrieve_complete")
	return resp
}

// retrievalScore implements spec.md §4.8 step 3. For LongTerm items the
// fused hybrid score is used directly as relevance, per the spec's
// parenthetical.
func retrievalScore(item ctxmodel.ContextItem, tier, query string, now time.Time, fusedScore float64) float64 {
	ageHours := now.Sub(item.Timestamp).Hours()
	recency := 1 / (1 + ageHours/24)
	var relevance float64
	if tier == "longterm" {
		relevance = fusedScore
	} else if query != "" {
		relevance = ctxmodel.Jaccard(query, item.Content)
	}
	impMul := item.Metadata.ImportanceMultiplier()
	return tierWeight[tier] * recency * (0.5 + 0.5*relevance) * impMul
}

func longTermResultToItem(r retrieve.Result) ctxmodel.ContextItem {
	md := ctxmodel.Metadata{Extra: map[string]ctxmodel.Value{}}
	for k, v := range r.Metadata {
		md.Extra[k] = v
	}
	return ctxmodel.ContextItem{ID: r.ID, Content: r.Content, Metadata: md, Timestamp: time.Now(), RelevanceScore: r.Score}
}

// dedupe implements invariant 6 / spec.md §4.8 step 4: keep the
// highest-scoring representative per (trim+lowercase) content hash.
func dedupe(items []scoredItem) []scoredItem {
	best := make(map[string]scoredItem, len(items))
	order := make([]string, 0, len(items))
	for _, si := range items {
		key := ctxmodel.DedupKey(si.item.Content)
		cur, exists := best[key]
		if !exists {
			order = append(order, key)
			best[key] = si
			continue
		}
		if si.score > cur.score {
			best[key] = si
		}
	}
	out := make([]scoredItem, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}

// pack implements spec.md §4.8 step 6: accept items while the running
// char/4 token estimate stays within max_tokens, else take the first
// max_results.
func pack(items []scoredItem, maxTokens, maxResults int) ([]ctxmodel.ContextItem, int) {
	if maxTokens > 0 {
		out := make([]ctxmodel.ContextItem, 0, len(items))
		total := 0
		for _, si := range items {
			cost := ctxmodel.EstimateTokens(si.item.Content)
			if total+cost > maxTokens {
				break
			}
			total += cost
			out = append(out, si.item)
		}
		return out, total
	}
	n := maxResults
	if n <= 0 || n > len(items) {
		n = len(items)
	}
	out := make([]ctxmodel.ContextItem, n)
	total := 0
	for i := 0; i < n; i++ {
		out[i] = items[i].item
		total += ctxmodel.EstimateTokens(items[i].item.Content)
	}
	return out, total
}

func countTier(items []scoredItem, tier string) int {
	n := 0
	for _, si := range items {
		if si.tier == tier {
			n++
		}
	}
	return n
}

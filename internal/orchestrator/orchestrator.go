// Package orchestrator wires the three memory tiers, the hybrid retriever,
// and every ambient/domain-stack adapter into the Store/Retrieve pipeline
// of spec.md §4.8, grounded on the teacher's internal/agent/memory.Manager
// (config shape, synchronous+async write fan-out) and internal/rag/service
// (options/errors package shape).
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/ctxforge/contextstore/internal/archive"
	"github.com/ctxforge/contextstore/internal/backend/graph"
	"github.com/ctxforge/contextstore/internal/backend/vector"
	"github.com/ctxforge/contextstore/internal/bm25"
	"github.com/ctxforge/contextstore/internal/chunker"
	"github.com/ctxforge/contextstore/internal/ctxmodel"
	"github.com/ctxforge/contextstore/internal/embedding"
	"github.com/ctxforge/contextstore/internal/extraction"
	"github.com/ctxforge/contextstore/internal/ingest"
	"github.com/ctxforge/contextstore/internal/queue"
	"github.com/ctxforge/contextstore/internal/retrieve"
	"github.com/ctxforge/contextstore/internal/telemetry"
	"github.com/ctxforge/contextstore/internal/tier/immediate"
	"github.com/ctxforge/contextstore/internal/tier/session"
)

// Tier identifies one of the three memory layers a ContextItem may be
// routed to on write (spec.md §4.8 "Tier routing").
type Tier string

const (
	TierImmediate Tier = "immediate"
	TierSession   Tier = "session"
	TierLongTerm  Tier = "longterm"
)

// Orchestrator is the single consolidated shape (SPEC_FULL.md §9: "one
// orchestrator shape, no duplicate/legacy shapes") tying every component
// together.
type Orchestrator struct {
	cfg Config

	immediate *immediate.Buffer
	session   *session.Store

	ltKeyword  *bm25.Index
	ltVector   vector.Backend
	ltGraph    graph.Backend
	embedder   embedding.Func
	extractor  extraction.Func
	retriever  *retrieve.HybridRetriever

	writeQueue queue.Writer
	normalizer *ingest.Normalizer
	chunker    *chunker.Chunker

	cache     ResponseCache
	metrics   telemetry.Metrics
	eventSink *telemetry.ClickHouseSink
}

// Option configures optional collaborators at construction time.
type Option func(*Orchestrator)

func WithVectorBackend(v vector.Backend) Option { return func(o *Orchestrator) { o.ltVector = v } }
func WithGraphBackend(g graph.Backend) Option   { return func(o *Orchestrator) { o.ltGraph = g } }
func WithEmbedder(e embedding.Func) Option      { return func(o *Orchestrator) { o.embedder = e } }
func WithExtractor(e extraction.Func) Option    { return func(o *Orchestrator) { o.extractor = e } }
func WithArchiveSink(sink archive.Sink) Option {
	return func(o *Orchestrator) { o.session.SetArchiveSink(sink) }
}
func WithNormalizer(n *ingest.Normalizer) Option { return func(o *Orchestrator) { o.normalizer = n } }
func WithMetrics(m telemetry.Metrics) Option     { return func(o *Orchestrator) { o.metrics = m } }
func WithResponseCache(c ResponseCache) Option   { return func(o *Orchestrator) { o.cache = c } }
func WithWriteQueue(w queue.Writer) Option       { return func(o *Orchestrator) { o.writeQueue = w } }
func WithEventSink(s *telemetry.ClickHouseSink) Option {
	return func(o *Orchestrator) { o.eventSink = s }
}

// New constructs an Orchestrator. The default write queue is an in-process
// queue.Channel draining into o.drainLongTerm; pass WithWriteQueue to
// override with e.g. a queue.KafkaProducer.
func New(cfg Config, opts ...Option) *Orchestrator {
	chunkerOpt := chunker.DefaultOptions()
	if cfg.OverlapTokens > 0 {
		chunkerOpt.BaseOverlap = cfg.OverlapTokens
	}
	o := &Orchestrator{
		cfg: cfg,
		immediate: immediate.New(cfg.BufferSize, cfg.BufferTTL),
		session: session.New(session.Config{
			MaxSize:                cfg.SessionSize,
			RelevanceThreshold:     cfg.SessionRelevanceThreshold,
			ConsolidationEnabled:   cfg.SessionConsolidationEnabled,
			ConsolidationThreshold: cfg.SessionConsolidationThreshold,
		}),
		ltKeyword:  bm25.New(),
		extractor:  extraction.None{},
		normalizer: ingest.New(""),
		chunker:    chunker.New(chunkerOpt),
		metrics:    telemetry.NoopMetrics{},
	}
	if cfg.CacheEnabled {
		o.cache = NewMemoryCache(cfg.CacheMaxEntries, cfg.CacheEvictCount)
	} else {
		o.cache = NewMemoryCache(0, 0)
	}
	for _, opt := range opts {
		opt(o)
	}
	o.retriever = retrieve.New(o.ltKeyword, o.ltVector, o.ltGraph)
	if o.writeQueue == nil {
		o.writeQueue = queue.NewChannel(cfg.WriteQueueBuffer, o.drainLongTerm)
	}
	return o
}

// tierSet computes spec.md §4.8's write-path tier-routing rule.
func (o *Orchestrator) tierSet(md ctxmodel.Metadata) map[Tier]bool {
	set := map[Tier]bool{TierImmediate: true}
	if md.RoutesToSession() {
		set[TierSession] = true
	}
	if o.cfg.LongTermEnabled && md.RoutesToLongTerm() {
		set[TierLongTerm] = true
	}
	return set
}

// Store implements spec.md §4.8 Store: construct, route, dispatch, record.
func (o *Orchestrator) Store(ctx context.Context, content string, md ctxmodel.Metadata, layerHint []Tier, conversationID string) (ctxmodel.ContextItem, error) {
	if content == "" {
		return ctxmodel.ContextItem{}, fmt.Errorf("%w: content is empty", ErrInvalidInput)
	}
	start := time.Now()
	normalized, err := o.normalizer.Normalize(content)
	if err != nil {
		telemetry.LoggerWithTrace(ctx).Debug().Err(err).Msg("normalize_failed_using_original")
	} else {
		content = normalized
	}

	item := ctxmodel.New(content, md, conversationID)

	var tiers map[Tier]bool
	if len(layerHint) > 0 {
		tiers = make(map[Tier]bool, len(layerHint))
		for _, t := range layerHint {
			tiers[t] = true
		}
	} else {
		tiers = o.tierSet(md)
	}

	if tiers[TierImmediate] {
		o.immediate.Add(item)
		o.metrics.IncCounter("store_total", map[string]string{"tier": "immediate"})
	}
	if tiers[TierSession] {
		o.session.Add(item)
		o.metrics.IncCounter("store_total", map[string]string{"tier": "session"})
	}
	if tiers[TierLongTerm] {
		o.dispatchLongTerm(ctx, item)
		o.metrics.IncCounter("store_total", map[string]string{"tier": "longterm"})
	}

	o.cache.Invalidate(ctx)
	elapsed := time.Since(start)
	o.metrics.ObserveHistogram("store_latency_seconds", elapsed.Seconds(), nil)
	o.eventSink.Record(ctx, telemetry.Event{
		Kind:           "store",
		ConversationID: conversationID,
		DurationMS:     float64(elapsed.Microseconds()) / 1000,
		ItemCount:      1,
		At:             start,
	})
	return item, nil
}

// dispatchLongTerm enqueues item for async LongTerm processing (spec.md
// §4.8 step 3: "LongTerm writes are asynchronous if enabled, fire-and-
// forget task, errors logged only"). If async writes are disabled, the
// drain runs synchronously instead.
func (o *Orchestrator) dispatchLongTerm(ctx context.Context, item ctxmodel.ContextItem) {
	if !o.cfg.AsyncLongTermWrite {
		if err := o.drainLongTerm(ctx, item); err != nil {
			telemetry.LoggerWithTrace(ctx).Error().Err(err).Msg("longterm_write_failed")
		}
		return
	}
	if err := o.writeQueue.Enqueue(ctx, item); err != nil {
		telemetry.LoggerWithTrace(ctx).Error().Err(err).Str("item_id", item.ID).Msg("longterm_enqueue_failed")
	}
}

// drainLongTerm is the queue.Handler wired into the default queue.Channel:
// it indexes the item (chunked, if long, via the AdaptiveChunker) for
// keyword/vector search and, if a graph backend is configured, extracts
// and upserts entities/relationships (SPEC_FULL.md §4.8 and §4.15).
func (o *Orchestrator) drainLongTerm(ctx context.Context, item ctxmodel.ContextItem) error {
	for _, part := range o.chunksOf(item) {
		o.ltKeyword.AddDocument(part.id, part.content, metadataValues(item.Metadata))

		if o.ltVector != nil && o.embedder != nil {
			vec, err := o.embedder.Embed(ctx, part.content)
			if err != nil {
				return fmt.Errorf("embed longterm item: %w", err)
			}
			if _, err := o.ltVector.Add(ctx, part.id, part.content, metadataStrings(item.Metadata), vec); err != nil {
				return fmt.Errorf("vector add: %w", err)
			}
		}
	}

	if o.ltGraph != nil {
		entities, relationships, err := o.extractor.Extract(ctx, item.Content)
		if err != nil {
			telemetry.LoggerWithTrace(ctx).Warn().Err(err).Str("item_id", item.ID).Msg("extraction_failed")
			return nil
		}
		for _, e := range entities {
			if _, err := o.ltGraph.AddEntity(ctx, e.ID, e.Type, e.Name, nil); err != nil {
				telemetry.LoggerWithTrace(ctx).Warn().Err(err).Msg("graph_add_entity_failed")
			}
		}
		for _, r := range relationships {
			if _, err := o.ltGraph.AddRelationship(ctx, r.FromID, r.ToID, r.RelType, nil); err != nil {
				telemetry.LoggerWithTrace(ctx).Warn().Err(err).Msg("graph_add_relationship_failed")
			}
		}
	}
	return nil
}

type longTermPart struct {
	id      string
	content string
}

// chunksOf runs the AdaptiveChunker over content that exceeds one chunk's
// target size, so a single long LongTerm write becomes several separately
// searchable documents (spec.md §4.4); short content indexes as one part
// under the item's own id, unchanged.
func (o *Orchestrator) chunksOf(item ctxmodel.ContextItem) []longTermPart {
	chunks := o.chunker.Chunk(item.Content)
	if len(chunks) <= 1 {
		return []longTermPart{{id: item.ID, content: item.Content}}
	}
	parts := make([]longTermPart, len(chunks))
	for i, c := range chunks {
		parts[i] = longTermPart{id: fmt.Sprintf("%s#%d", item.ID, c.ChunkID), content: c.Content}
	}
	return parts
}

func metadataValues(md ctxmodel.Metadata) map[string]ctxmodel.Value {
	out := map[string]ctxmodel.Value{}
	if md.Importance != "" {
		out["importance"] = ctxmodel.StringValue(string(md.Importance))
	}
	if md.Persistence != "" {
		out["persistence"] = ctxmodel.StringValue(string(md.Persistence))
	}
	if md.Type != "" {
		out["type"] = ctxmodel.StringValue(string(md.Type))
	}
	if md.TaskID != "" {
		out["task_id"] = ctxmodel.StringValue(md.TaskID)
	}
	for k, v := range md.Extra {
		out[k] = v
	}
	return out
}

func metadataStrings(md ctxmodel.Metadata) map[string]string {
	out := map[string]string{}
	for k, v := range metadataValues(md) {
		out[k] = v.String()
	}
	return out
}

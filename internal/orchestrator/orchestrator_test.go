package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctxforge/contextstore/internal/ctxmodel"
)

func newTestOrchestrator() *Orchestrator {
	cfg := DefaultConfig()
	cfg.BufferSize = 50
	cfg.SessionSize = 50
	cfg.AsyncLongTermWrite = false // deterministic drain in tests
	return New(cfg)
}

func TestStoreAndRetrieveWithNilEventSinkDoNotPanic(t *testing.T) {
	o := newTestOrchestrator()
	_, err := o.Store(context.Background(), "no sink configured", ctxmodel.Metadata{}, nil, "conv-1")
	require.NoError(t, err)
	o.Retrieve(context.Background(), ctxmodel.ContextRequest{IncludeImmediate: true, ConversationID: "conv-1"})
}

func TestStoreTierRoutingImmediateOnly(t *testing.T) {
	o := newTestOrchestrator()
	item, err := o.Store(context.Background(), "just a note", ctxmodel.Metadata{}, nil, "conv-1")
	require.NoError(t, err)

	recent := o.immediate.GetRecent(10, "conv-1")
	assert.Len(t, recent, 1)
	assert.Equal(t, item.ID, recent[0].ID)
	assert.Equal(t, 0, o.session.Size())
}

func TestStoreTierRoutingHighImportanceReachesSession(t *testing.T) {
	o := newTestOrchestrator()
	md := ctxmodel.Metadata{Importance: ctxmodel.ImportanceHigh}
	_, err := o.Store(context.Background(), "an important fact", md, nil, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 1, o.session.Size())
}

func TestStoreRejectsEmptyContent(t *testing.T) {
	o := newTestOrchestrator()
	_, err := o.Store(context.Background(), "", ctxmodel.Metadata{}, nil, "conv-1")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// S5 — Token budget honored.
func TestRetrieveTokenBudgetHonored(t *testing.T) {
	o := newTestOrchestrator()
	content := strings.Repeat("lorem ipsum dolor sit amet consectetur adipiscing elit ", 7) // ~400 chars
	for i := 0; i < 10; i++ {
		_, err := o.Store(context.Background(), content, ctxmodel.Metadata{}, nil, "conv-1")
		require.NoError(t, err)
	}

	resp := o.Retrieve(context.Background(), ctxmodel.ContextRequest{
		IncludeImmediate: true,
		MaxTokens:        250,
		ConversationID:   "conv-1",
	})

	assert.LessOrEqual(t, len(resp.Items), 2)
	assert.LessOrEqual(t, resp.EstimatedTokens, 250)
}

// S6 — Dedup across tiers.
func TestRetrieveDedupAcrossTiers(t *testing.T) {
	o := newTestOrchestrator()
	content := "critical decision about the database migration plan"
	md := ctxmodel.Metadata{Importance: ctxmodel.ImportanceCritical, Persistence: ctxmodel.PersistencePermanent}
	_, err := o.Store(context.Background(), content, md, nil, "conv-1")
	require.NoError(t, err)

	query := strings.Join(strings.Fields(content)[:3], " ")
	resp := o.Retrieve(context.Background(), ctxmodel.ContextRequest{
		Query:            query,
		IncludeImmediate: true,
		IncludeSession:   true,
		IncludeLongTerm:  true,
		MaxResults:       10,
		ConversationID:   "conv-1",
	})

	matches := 0
	for _, it := range resp.Items {
		if it.Content == content {
			matches++
		}
	}
	assert.Equal(t, 1, matches)
}

func TestRetrieveCacheHitOnSecondCall(t *testing.T) {
	o := newTestOrchestrator()
	_, err := o.Store(context.Background(), "some content to retrieve", ctxmodel.Metadata{}, nil, "conv-1")
	require.NoError(t, err)

	req := ctxmodel.ContextRequest{IncludeImmediate: true, ConversationID: "conv-1", MaxResults: 5}
	first := o.Retrieve(context.Background(), req)
	assert.False(t, first.CacheHit)

	second := o.Retrieve(context.Background(), req)
	assert.True(t, second.CacheHit)
}

func TestStoreInvalidatesCache(t *testing.T) {
	o := newTestOrchestrator()
	req := ctxmodel.ContextRequest{IncludeImmediate: true, ConversationID: "conv-1", MaxResults: 5}
	_, err := o.Store(context.Background(), "first item", ctxmodel.Metadata{}, nil, "conv-1")
	require.NoError(t, err)
	first := o.Retrieve(context.Background(), req)
	assert.False(t, first.CacheHit)

	_, err = o.Store(context.Background(), "second item", ctxmodel.Metadata{}, nil, "conv-1")
	require.NoError(t, err)
	second := o.Retrieve(context.Background(), req)
	assert.False(t, second.CacheHit)
	assert.Len(t, second.Items, 2)
}

func TestMemoryCacheEvictsOldestOnOverflow(t *testing.T) {
	c := NewMemoryCache(5, 2)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		c.Set(ctx, string(rune('a'+i)), ctxmodel.ContextResponse{}, time.Hour)
		time.Sleep(time.Millisecond)
	}
	_, okA := c.Get(ctx, "a")
	_, okB := c.Get(ctx, "b")
	_, okF := c.Get(ctx, "f")
	assert.False(t, okA)
	assert.False(t, okB)
	assert.True(t, okF)
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SessionSize = 123
	cfg.CacheTTL = 2 * time.Minute

	data, err := cfg.ToYAML()
	require.NoError(t, err)

	parsed, err := ParseConfig(data)
	require.NoError(t, err)
	assert.Equal(t, cfg.SessionSize, parsed.SessionSize)
	assert.Equal(t, cfg.CacheTTL, parsed.CacheTTL)
	assert.Equal(t, cfg.DefaultStrategy, parsed.DefaultStrategy)
}

func TestMemoryCacheRespectsTTL(t *testing.T) {
	c := NewMemoryCache(10, 2)
	ctx := context.Background()
	c.Set(ctx, "k", ctxmodel.ContextResponse{}, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

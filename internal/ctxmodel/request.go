package ctxmodel

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Strategy selects the retrieval fusion mode for a ContextRequest.
type Strategy string

const (
	StrategyRecency  Strategy = "recency"
	StrategyRelevance Strategy = "relevance"
	StrategyHybrid   Strategy = "hybrid"
	StrategySemantic Strategy = "semantic"
	StrategyKeyword  Strategy = "keyword"
	StrategyGraph    Strategy = "graph"
)

// ContextRequest is the orchestrator's read-path input (spec.md §3).
type ContextRequest struct {
	Query            string
	MaxResults       int
	MaxTokens        int // 0 means unset
	IncludeImmediate bool
	IncludeSession   bool
	IncludeLongTerm  bool
	Strategy         Strategy
	Filters          map[string]Value
	ConversationID   string
	TaskID           string
	Since            *time.Time
	Until            *time.Time
}

// CacheKey derives the stable cache key of spec.md §3 ("hash of
// canonicalized fields") by hashing a deterministic encoding of every field
// that affects the response.
func (r ContextRequest) CacheKey() string {
	var b strings.Builder
	fmt.Fprintf(&b, "q=%s|mr=%d|mt=%d|ii=%t|is=%t|il=%t|st=%s|cid=%s|tid=%s",
		r.Query, r.MaxResults, r.MaxTokens, r.IncludeImmediate, r.IncludeSession,
		r.IncludeLongTerm, r.Strategy, r.ConversationID, r.TaskID)
	if r.Since != nil {
		fmt.Fprintf(&b, "|since=%d", r.Since.UnixNano())
	}
	if r.Until != nil {
		fmt.Fprintf(&b, "|until=%d", r.Until.UnixNano())
	}
	keys := make([]string, 0, len(r.Filters))
	for k := range r.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "|f.%s=%s", k, r.Filters[k].String())
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// ContextResponse is the orchestrator's read-path output (spec.md §3).
type ContextResponse struct {
	Items             []ContextItem
	Strategy          Strategy
	ImmediateCount    int
	SessionCount      int
	LongTermCount     int
	CacheHit          bool
	EstimatedTokens   int
	BackendErrors     []string
}

// EstimateTokens approximates token count as chars/4 (spec.md §4.8 step 6,
// GLOSSARY "Token budget").
func EstimateTokens(content string) int {
	return len(content) / 4
}

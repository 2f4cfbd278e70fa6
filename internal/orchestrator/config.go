package orchestrator

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ctxforge/contextstore/internal/ctxmodel"
)

// Config consolidates every tunable the Orchestrator and the tiers it owns
// need (spec.md §4.8's "Configuration" list), grounded on the teacher's
// internal/agent/memory.Manager Config shape: one flat struct, yaml-tagged,
// no nested file-loading logic (config *file* loading is explicitly out of
// scope per SPEC_FULL.md §1 — only the in-process struct is).
type Config struct {
	BufferSize int           `yaml:"buffer_size"`
	BufferTTL  time.Duration `yaml:"buffer_ttl"`

	SessionSize                   int     `yaml:"session_size"`
	SessionRelevanceThreshold     float64 `yaml:"session_relevance_threshold"`
	SessionConsolidationEnabled   bool    `yaml:"session_consolidation_enabled"`
	SessionConsolidationThreshold int     `yaml:"session_consolidation_threshold"`

	LongTermEnabled  bool `yaml:"long_term_enabled"`
	AsyncLongTermWrite bool `yaml:"async_long_term_write"`
	WriteQueueBuffer   int  `yaml:"write_queue_buffer"`

	ContextBudgetTokens int `yaml:"context_budget_tokens"`
	OverlapTokens       int `yaml:"overlap_tokens"`

	DefaultStrategy ctxmodel.Strategy `yaml:"default_strategy"`
	DefaultMaxResults int             `yaml:"default_max_results"`

	CacheEnabled    bool          `yaml:"cache_enabled"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	CacheMaxEntries int           `yaml:"cache_max_entries"`
	CacheEvictCount int           `yaml:"cache_evict_count"`
}

// DefaultConfig mirrors spec.md's literal defaults: 100-entry cache bound
// evicting 20 oldest, hybrid strategy, BM25/session thresholds matching
// each package's own New() defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize:                    50,
		BufferTTL:                     30 * time.Minute,
		SessionSize:                   500,
		SessionRelevanceThreshold:     0.1,
		SessionConsolidationEnabled:   true,
		SessionConsolidationThreshold: 20,
		LongTermEnabled:               true,
		AsyncLongTermWrite:            true,
		WriteQueueBuffer:              256,
		ContextBudgetTokens:           0,
		OverlapTokens:                 50,
		DefaultStrategy:               ctxmodel.StrategyHybrid,
		DefaultMaxResults:             10,
		CacheEnabled:                  true,
		CacheTTL:                      5 * time.Minute,
		CacheMaxEntries:               100,
		CacheEvictCount:               20,
	}
}

// ToYAML renders Config in the tagged shape above, for embedding in a host
// application's own config document (file loading itself stays out of
// scope; this only serializes the in-process struct).
func (c Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseConfig decodes a Config from YAML bytes previously produced by
// ToYAML (or hand-written in the same shape), starting from DefaultConfig
// so any field the document omits keeps its default.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

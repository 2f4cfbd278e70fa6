// Package vector defines the pluggable VectorBackend contract (spec.md
// §6.1) and ships an in-memory stub alongside Postgres/pgvector and Qdrant
// implementations (SPEC_FULL.md §4.5).
package vector

import "context"

// Result is one nearest-neighbor hit. Score is similarity: higher means
// more similar (spec.md §6.1).
type Result struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]string
}

// Backend is the external vector-search contract. Implementations are free
// to use cosine/dot/L2 internally.
type Backend interface {
	Add(ctx context.Context, id, content string, metadata map[string]string, embedding []float32) (string, error)
	AddBatch(ctx context.Context, items []Item) ([]string, error)
	Search(ctx context.Context, query string, maxResults int, scoreThreshold float64, filters map[string]string) ([]Result, error)
	SearchByEmbedding(ctx context.Context, vec []float32, maxResults int, scoreThreshold float64, filters map[string]string) ([]Result, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Item is one record passed to AddBatch.
type Item struct {
	ID        string
	Content   string
	Metadata  map[string]string
	Embedding []float32
}

// EmbedFunc is the host-supplied embedding function (spec.md §6.3), used by
// Search (text in, vector out, then delegate to SearchByEmbedding).
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// Package embedding provides the §6.3 embedding contract and concrete
// adapters (OpenAI, Gemini, a dependency-free deterministic hash embedder).
package embedding

import "context"

// Func is the host-supplied pure-function contract of spec.md §6.3:
// deterministic for a given model, optionally L2-normalized.
type Func interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

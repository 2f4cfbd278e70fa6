// Package queue implements the long-term write queue (SPEC_FULL.md §4.15):
// async dispatch of LongTerm writes, default in-process channel, optional
// Kafka-backed producer/consumer.
package queue

import (
	"context"

	"github.com/ctxforge/contextstore/internal/ctxmodel"
)

// Writer is the async long-term write dispatch contract.
type Writer interface {
	Enqueue(ctx context.Context, item ctxmodel.ContextItem) error
}

// Handler processes one drained item — the Orchestrator wires this to
// LongTerm storage plus, when a graph backend is configured, the
// extraction→GraphBackend pipeline.
type Handler func(ctx context.Context, item ctxmodel.ContextItem) error

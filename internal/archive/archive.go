// Package archive implements optional cold-storage archival of items that
// fall out of the Session tier (SPEC_FULL.md §4.2 "Archival on destruction").
package archive

import (
	"context"

	"github.com/ctxforge/contextstore/internal/ctxmodel"
)

// Sink receives batches of items that SessionStore evicted or consolidated
// away. Archive is best-effort: SessionStore calls it asynchronously and
// only logs failures, mirroring the LongTerm async-write failure policy
// (spec.md §7).
type Sink interface {
	Archive(ctx context.Context, items []ctxmodel.ContextItem) error
}

// None is the default no-op sink used when archival is not configured.
type None struct{}

func (None) Archive(context.Context, []ctxmodel.ContextItem) error { return nil }

package queue

import (
	"context"

	"github.com/ctxforge/contextstore/internal/ctxmodel"
	"github.com/ctxforge/contextstore/internal/telemetry"
)

// Channel is the default Writer: an in-process buffered channel drained by
// a background worker goroutine. Enqueue blocks while the buffer is full and
// returns an error only when ctx is done first; handler errors are logged
// only, per §7's
// "LongTerm async write failures are never surfaced" policy.
type Channel struct {
	items  chan ctxmodel.ContextItem
	done   chan struct{}
	handle Handler
}

// NewChannel starts the background worker immediately; Close stops it.
func NewChannel(bufferSize int, handle Handler) *Channel {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	c := &Channel{items: make(chan ctxmodel.ContextItem, bufferSize), done: make(chan struct{}), handle: handle}
	go c.run()
	return c
}

func (c *Channel) run() {
	for {
		select {
		case item, ok := <-c.items:
			if !ok {
				close(c.done)
				return
			}
			if c.handle == nil {
				continue
			}
			if err := c.handle(context.Background(), item); err != nil {
				telemetry.LoggerWithTrace(context.Background()).Error().Err(err).Str("item_id", item.ID).Msg("longterm_write_failed")
			}
		}
	}
}

func (c *Channel) Enqueue(ctx context.Context, item ctxmodel.ContextItem) error {
	select {
	case c.items <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new items and waits for the worker to drain.
func (c *Channel) Close() {
	close(c.items)
	<-c.done
}

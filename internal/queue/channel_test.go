package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ctxforge/contextstore/internal/ctxmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelDispatchesToHandler(t *testing.T) {
	var mu sync.Mutex
	var got []string
	done := make(chan struct{}, 1)

	c := NewChannel(4, func(_ context.Context, item ctxmodel.ContextItem) error {
		mu.Lock()
		got = append(got, item.ID)
		mu.Unlock()
		done <- struct{}{}
		return nil
	})
	defer c.Close()

	item := ctxmodel.New("hello", ctxmodel.Metadata{}, "conv-1")
	require.NoError(t, c.Enqueue(context.Background(), item))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{item.ID}, got)
}

func TestChannelHandlerErrorsAreSwallowed(t *testing.T) {
	called := make(chan struct{}, 1)
	c := NewChannel(1, func(_ context.Context, _ ctxmodel.ContextItem) error {
		called <- struct{}{}
		return errors.New("boom")
	})
	defer c.Close()

	err := c.Enqueue(context.Background(), ctxmodel.New("x", ctxmodel.Metadata{}, "conv-1"))
	require.NoError(t, err)

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never invoked")
	}
}

func TestChannelEnqueueRespectsContextCancellation(t *testing.T) {
	block := make(chan struct{})
	c := NewChannel(1, func(_ context.Context, _ ctxmodel.ContextItem) error {
		<-block
		return nil
	})
	defer func() {
		close(block)
		c.Close()
	}()

	// First item is picked up by the worker and blocks it on <-block; the
	// second fills the size-1 buffer, so a third send has no ready path
	// except ctx.Done() and must observe cancellation deterministically.
	require.NoError(t, c.Enqueue(context.Background(), ctxmodel.New("a", ctxmodel.Metadata{}, "c")))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, c.Enqueue(context.Background(), ctxmodel.New("b", ctxmodel.Metadata{}, "c")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Enqueue(ctx, ctxmodel.New("c", ctxmodel.Metadata{}, "c"))
	assert.Error(t, err)
}

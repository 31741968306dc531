package repository

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/docsagent/internal/domain"
)

type countingStore struct {
	StateStore
	loads atomic.Int32
}

func (c *countingStore) Load(ctx context.Context, id string) (*domain.ConversationState, error) {
	c.loads.Add(1)
	return c.StateStore.Load(ctx, id)
}

func newCached(t *testing.T) (*CachedStore, *countingStore) {
	t.Helper()
	inner := &countingStore{StateStore: NewMemoryStore(testDefaultAgent)}
	c, err := NewCachedStore(inner, 1<<20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, inner
}

func TestCachedStore(t *testing.T) {
	c, _ := newCached(t)
	runStoreContract(t, c)
}

func TestCachedStoreServesRepeatLoadsFromCache(t *testing.T) {
	ctx := context.Background()
	c, inner := newCached(t)
	require.NoError(t, c.Save(ctx, sampleState("conv")))
	c.Wait()

	for i := 0; i < 3; i++ {
		got, err := c.Load(ctx, "conv")
		require.NoError(t, err)
		assert.Equal(t, "support_ticket_agent", got.ActiveAgentID)
	}
	assert.Equal(t, int32(0), inner.loads.Load())
}

func TestCachedStoreHandsOutIndependentCopies(t *testing.T) {
	ctx := context.Background()
	c, _ := newCached(t)
	require.NoError(t, c.Save(ctx, sampleState("conv")))
	c.Wait()

	first, err := c.Load(ctx, "conv")
	require.NoError(t, err)
	first.AgentHistories["triage_agent"] = nil

	second, err := c.Load(ctx, "conv")
	require.NoError(t, err)
	assert.Len(t, second.AgentHistories["triage_agent"], 3)
}

// pausingStore blocks Load after reading from the wrapped store until
// release is closed.
type pausingStore struct {
	StateStore
	loaded  chan struct{}
	release chan struct{}
}

func (p *pausingStore) Load(ctx context.Context, id string) (*domain.ConversationState, error) {
	state, err := p.StateStore.Load(ctx, id)
	select {
	case p.loaded <- struct{}{}:
	default:
	}
	<-p.release
	return state, err
}

func TestCachedStoreLoadDoesNotOverwriteConcurrentSave(t *testing.T) {
	ctx := context.Background()
	inner := &pausingStore{
		StateStore: NewMemoryStore(testDefaultAgent),
		loaded:     make(chan struct{}, 1),
		release:    make(chan struct{}),
	}
	old := sampleState("conv")
	old.AgentContinuationTokens["support_ticket_agent"] = "old"
	require.NoError(t, inner.StateStore.Save(ctx, old))

	c, err := NewCachedStore(inner, 1<<20)
	require.NoError(t, err)
	defer c.Close()

	done := make(chan error, 1)
	go func() {
		_, err := c.Load(ctx, "conv")
		done <- err
	}()
	<-inner.loaded

	saved := sampleState("conv")
	saved.AgentContinuationTokens["support_ticket_agent"] = "new"
	require.NoError(t, c.Save(ctx, saved))

	close(inner.release)
	require.NoError(t, <-done)
	c.Wait()

	got, err := c.Load(ctx, "conv")
	require.NoError(t, err)
	assert.Equal(t, "new", got.ContinuationToken("support_ticket_agent"))
}

package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/docsagent/internal/domain"
)

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore(testDefaultAgent))
}

func TestMemoryStoreCorruptRecord(t *testing.T) {
	s := NewMemoryStore(testDefaultAgent)
	s.Put("conv", []byte("not json"))

	got, err := s.Load(context.Background(), "conv")
	require.NoError(t, err)
	assert.Equal(t, domain.NewConversationState("conv", testDefaultAgent), got)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(testDefaultAgent)
	require.NoError(t, s.Save(ctx, sampleState("conv")))

	first, err := s.Load(ctx, "conv")
	require.NoError(t, err)
	first.ActiveAgentID = "mutated"

	second, err := s.Load(ctx, "conv")
	require.NoError(t, err)
	assert.Equal(t, "support_ticket_agent", second.ActiveAgentID)
}

func TestMemoryStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemoryStore(testDefaultAgent)
	_, err := s.Load(ctx, "conv")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Save(ctx, sampleState("conv")), context.Canceled)
}

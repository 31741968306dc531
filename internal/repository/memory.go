package repository

import (
	"context"
	"sync"

	"github.com/xiaot623/docsagent/internal/domain"
)

// MemoryStore keeps encoded states in process memory.
type MemoryStore struct {
	mu             sync.RWMutex
	records        map[string][]byte
	defaultAgentID string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(defaultAgentID string) *MemoryStore {
	return &MemoryStore{
		records:        make(map[string][]byte),
		defaultAgentID: defaultAgentID,
	}
}

// Load returns the state of a conversation or its default.
func (s *MemoryStore) Load(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.records[conversationID]
	s.mu.RUnlock()
	if !ok {
		return domain.NewConversationState(conversationID, s.defaultAgentID), nil
	}
	return decodeState(conversationID, s.defaultAgentID, data), nil
}

// Save replaces the stored record.
func (s *MemoryStore) Save(ctx context.Context, state *domain.ConversationState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.records[state.ConversationID] = data
	s.mu.Unlock()
	return nil
}

// Put stores raw record bytes. Tests use it to plant corrupt records.
func (s *MemoryStore) Put(conversationID string, data []byte) {
	s.mu.Lock()
	s.records[conversationID] = data
	s.mu.Unlock()
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

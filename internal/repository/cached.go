package repository

import (
	"context"
	"fmt"
	"hash/maphash"
	"sync"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/xiaot623/docsagent/internal/domain"
)

// CachedStore is a read-through, write-through in-process cache in front of
// another StateStore. It only stays coherent when this process is the sole
// writer of the conversations it serves.
type CachedStore struct {
	next  StateStore
	cache *ristretto.Cache[string, []byte]

	seed maphash.Seed
	gens [genStripes]generation
}

const genStripes = 64

// generation counts saves to the keys hashed to one stripe. A read-through
// fill is only applied when no save touched the stripe while it was loading.
type generation struct {
	mu sync.Mutex
	n  uint64
}

func (s *CachedStore) stripe(conversationID string) *generation {
	return &s.gens[maphash.String(s.seed, conversationID)%genStripes]
}

func (g *generation) current() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

func (g *generation) bump() {
	g.mu.Lock()
	g.n++
	g.mu.Unlock()
}

// NewCachedStore wraps next. maxCostBytes bounds the total size of cached
// records.
func NewCachedStore(next StateStore, maxCostBytes int64) (*CachedStore, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters:        maxCostBytes / 100 * 10, // ~10x expected items
		MaxCost:            maxCostBytes,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create state cache: %w", err)
	}
	return &CachedStore{next: next, cache: c, seed: maphash.MakeSeed()}, nil
}

// Load serves from the cache and falls back to the wrapped store.
func (s *CachedStore) Load(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	if data, ok := s.cache.Get(conversationID); ok {
		if state, err := parseState(data); err == nil {
			state.ConversationID = conversationID
			return state, nil
		}
		s.cache.Del(conversationID)
	}

	gen := s.stripe(conversationID)
	seen := gen.current()
	state, err := s.next.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if data, err := encodeState(state); err == nil {
		gen.mu.Lock()
		if gen.n == seen {
			s.cache.Set(conversationID, data, int64(len(data)))
		}
		gen.mu.Unlock()
	}
	return state, nil
}

// Save writes through. The cached entry is dropped first so a rejected
// cache admission can never leave an older record behind.
func (s *CachedStore) Save(ctx context.Context, state *domain.ConversationState) error {
	gen := s.stripe(state.ConversationID)
	gen.bump()
	s.cache.Del(state.ConversationID)
	if err := s.next.Save(ctx, state); err != nil {
		return err
	}

	data, err := encodeState(state)
	gen.mu.Lock()
	defer gen.mu.Unlock()
	gen.n++
	s.cache.Del(state.ConversationID)
	if err == nil {
		s.cache.Set(state.ConversationID, data, int64(len(data)))
	}
	return nil
}

// Wait blocks until pending cache writes are applied.
func (s *CachedStore) Wait() {
	s.cache.Wait()
}

// Close closes the cache and the wrapped store.
func (s *CachedStore) Close() error {
	s.cache.Close()
	return s.next.Close()
}

// Package repository persists conversation state.
package repository

import (
	"context"
	"fmt"

	"github.com/xiaot623/docsagent/internal/config"
	"github.com/xiaot623/docsagent/internal/domain"
)

// StateStore is durable storage for ConversationState keyed by
// conversation id.
type StateStore interface {
	// Load returns the stored state, or a default state when there is none or
	// the stored record cannot be decoded. Errors are reserved for the
	// storage engine itself.
	Load(ctx context.Context, conversationID string) (*domain.ConversationState, error)
	// Save replaces the whole record atomically, creating it if absent.
	Save(ctx context.Context, state *domain.ConversationState) error
	Close() error
}

// Open builds the store selected by cfg.
func Open(ctx context.Context, cfg config.StoreConfig, defaultAgentID string) (StateStore, error) {
	var (
		s   StateStore
		err error
	)
	switch cfg.Backend {
	case "sqlite":
		s, err = NewSQLiteStore(cfg.SQLiteDSN, defaultAgentID)
	case "postgres":
		s, err = NewPostgresStore(ctx, cfg.PostgresURL, defaultAgentID)
	case "redis":
		s, err = NewRedisStoreFromURL(ctx, cfg.RedisURL, cfg.RedisTTL, defaultAgentID)
	case "memory":
		s = NewMemoryStore(defaultAgentID)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheEnabled {
		cached, err := NewCachedStore(s, cfg.CacheMaxBytes)
		if err != nil {
			s.Close()
			return nil, err
		}
		return cached, nil
	}
	return s, nil
}

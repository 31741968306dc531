package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xiaot623/docsagent/internal/domain"
	"github.com/xiaot623/docsagent/internal/errx"
)

const redisKeyFormat = "conversation:%s:state"

// RedisStore keeps each conversation as one JSON value.
type RedisStore struct {
	rdb            redis.Cmdable
	closer         func() error
	ttl            time.Duration
	defaultAgentID string
}

// NewRedisStore wraps an existing client. A zero ttl keeps records forever.
func NewRedisStore(rdb redis.Cmdable, ttl time.Duration, defaultAgentID string) *RedisStore {
	return &RedisStore{
		rdb:            rdb,
		closer:         func() error { return nil },
		ttl:            ttl,
		defaultAgentID: defaultAgentID,
	}
}

// NewRedisStoreFromURL connects to url and verifies the connection.
func NewRedisStoreFromURL(ctx context.Context, url string, ttl time.Duration, defaultAgentID string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	s := NewRedisStore(client, ttl, defaultAgentID)
	s.closer = client.Close
	return s, nil
}

func redisKey(conversationID string) string {
	return fmt.Sprintf(redisKeyFormat, conversationID)
}

// Load returns the state of a conversation or its default.
func (s *RedisStore) Load(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	data, err := s.rdb.Get(ctx, redisKey(conversationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewConversationState(conversationID, s.defaultAgentID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation state: %w", err)
	}
	return decodeState(conversationID, s.defaultAgentID, data), nil
}

// Save overwrites the record with a single SET.
func (s *RedisStore) Save(ctx context.Context, state *domain.ConversationState) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, redisKey(state.ConversationID), data, s.ttl).Err(); err != nil {
		return errx.Storage(fmt.Errorf("failed to save conversation state: %w", err))
	}
	return nil
}

// Close closes the client when the store owns it.
func (s *RedisStore) Close() error {
	return s.closer()
}

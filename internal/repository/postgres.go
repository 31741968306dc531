package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql (needed by goose)
	"github.com/pressly/goose/v3"

	"github.com/xiaot623/docsagent/internal/domain"
	"github.com/xiaot623/docsagent/internal/errx"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore implements StateStore on a pgx pool.
type PostgresStore struct {
	pool           *pgxpool.Pool
	defaultAgentID string
}

// NewPostgresStore migrates the schema and opens a pool.
func NewPostgresStore(ctx context.Context, dsn, defaultAgentID string) (*PostgresStore, error) {
	if err := RunMigrations(ctx, dsn); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool, defaultAgentID: defaultAgentID}, nil
}

// RunMigrations applies all pending goose migrations from the embedded SQL files.
func RunMigrations(ctx context.Context, dsn string) error {
	goose.SetBaseFS(migrations)

	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open db for migrations: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Load returns the state of a conversation or its default.
func (s *PostgresStore) Load(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	var data []byte
	err = conn.QueryRow(ctx,
		`SELECT context FROM conversation_state WHERE conversation_id = $1`,
		conversationID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewConversationState(conversationID, s.defaultAgentID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation state: %w", err)
	}
	return decodeState(conversationID, s.defaultAgentID, data), nil
}

// Save upserts the whole conversation record in one statement.
func (s *PostgresStore) Save(ctx context.Context, state *domain.ConversationState) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return errx.Storage(fmt.Errorf("failed to acquire connection: %w", err))
	}
	defer conn.Release()

	var lastResponseID *string
	if token := state.ContinuationToken(state.ActiveAgentID); token != "" {
		lastResponseID = &token
	}
	_, err = conn.Exec(ctx,
		`INSERT INTO conversation_state (conversation_id, agent_name, last_response_id, context, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (conversation_id) DO UPDATE SET
			agent_name = EXCLUDED.agent_name,
			last_response_id = EXCLUDED.last_response_id,
			context = EXCLUDED.context,
			updated_at = now()`,
		state.ConversationID, state.ActiveAgentID, lastResponseID, string(data))
	if err != nil {
		return errx.Storage(fmt.Errorf("failed to save conversation state: %w", err))
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

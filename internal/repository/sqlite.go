package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaot623/docsagent/internal/domain"
	"github.com/xiaot623/docsagent/internal/errx"
)

// SQLiteStore implements StateStore using SQLite.
type SQLiteStore struct {
	db             *sql.DB
	defaultAgentID string
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn, defaultAgentID string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	// Shared-cache connections take table locks that fail with SQLITE_LOCKED
	// instead of waiting on the busy timeout, so they get one connection too.
	if singleConnDSN(dsn) {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db, defaultAgentID: defaultAgentID}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate creates the schema. It is safe to run on every start.
func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS conversation_state (
		conversation_id TEXT PRIMARY KEY,
		agent_name TEXT NOT NULL,
		last_response_id TEXT,
		context_json TEXT NOT NULL
	)`); err != nil {
		return err
	}
	// Tables created before updated_at existed get the column added.
	return s.ensureColumn("conversation_state", "updated_at", "ALTER TABLE conversation_state ADD COLUMN updated_at DATETIME")
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the state of a conversation or its default.
func (s *SQLiteStore) Load(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	var contextJSON string
	err = conn.QueryRowContext(ctx,
		`SELECT context_json FROM conversation_state WHERE conversation_id = ?`,
		conversationID).Scan(&contextJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewConversationState(conversationID, s.defaultAgentID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation state: %w", err)
	}
	return decodeState(conversationID, s.defaultAgentID, []byte(contextJSON)), nil
}

// Save upserts the whole conversation record in one statement.
func (s *SQLiteStore) Save(ctx context.Context, state *domain.ConversationState) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return errx.Storage(fmt.Errorf("failed to acquire connection: %w", err))
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx,
		`INSERT INTO conversation_state (conversation_id, agent_name, last_response_id, context_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			agent_name = excluded.agent_name,
			last_response_id = excluded.last_response_id,
			context_json = excluded.context_json,
			updated_at = excluded.updated_at`,
		state.ConversationID,
		state.ActiveAgentID,
		nullString(state.ContinuationToken(state.ActiveAgentID)),
		string(data),
		time.Now().UTC(),
	)
	if err != nil {
		return errx.Storage(fmt.Errorf("failed to save conversation state: %w", err))
	}
	return nil
}

func singleConnDSN(dsn string) bool {
	return dsn == ":memory:" ||
		strings.Contains(dsn, "mode=memory") ||
		strings.Contains(dsn, "cache=shared")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

package helpers

import (
	"testing"

	"github.com/xiaot623/docsagent/internal/repository"
)

// DefaultAgentID is the default agent used by test stores.
const DefaultAgentID = "triage_agent"

func NewTestSQLiteStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()

	s, err := repository.NewSQLiteStore(":memory:", DefaultAgentID)
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

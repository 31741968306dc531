package repository

import (
	"encoding/json"
	"fmt"

	"github.com/xiaot623/docsagent/internal/domain"
	"github.com/xiaot623/docsagent/internal/logx"
)

func encodeState(state *domain.ConversationState) ([]byte, error) {
	if state.ConversationID == "" {
		return nil, fmt.Errorf("conversation_id is required")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode conversation state: %w", err)
	}
	return data, nil
}

// decodeState never fails: a record that cannot be decoded yields the
// default state and a warning.
func decodeState(conversationID, defaultAgentID string, data []byte) *domain.ConversationState {
	state, err := parseState(data)
	if err != nil {
		logx.Warn().Err(err).Str("conversation_id", conversationID).Msg("discarding corrupt conversation state")
		return domain.NewConversationState(conversationID, defaultAgentID)
	}
	state.ConversationID = conversationID
	return state
}

func parseState(data []byte) (*domain.ConversationState, error) {
	var state domain.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.ActiveAgentID == "" {
		return nil, fmt.Errorf("active_agent_id is empty")
	}
	for agent, events := range state.AgentHistories {
		for i, ev := range events {
			if err := ev.Validate(); err != nil {
				return nil, fmt.Errorf("history of %s, event %d: %w", agent, i, err)
			}
			events[i] = ev.Canonical()
		}
	}
	state.Normalize()
	return &state, nil
}

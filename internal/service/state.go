package service

import (
	"context"

	"github.com/xiaot623/docsagent/internal/domain"
	"github.com/xiaot623/docsagent/internal/errx"
	"github.com/xiaot623/docsagent/internal/logx"
)

// loadState loads a conversation and heals records the current deployment
// cannot serve. A storage failure restarts the conversation.
func (s *Service) loadState(ctx context.Context, conversationID string) *domain.ConversationState {
	state, err := s.store.Load(ctx, conversationID)
	if err != nil {
		logx.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to load conversation state, starting fresh")
		return s.defaultState(conversationID)
	}
	if _, ok := s.agents.Resolve(state.ActiveAgentID); !ok {
		logx.Warn().
			Str("conversation_id", conversationID).
			Str("active_agent_id", state.ActiveAgentID).
			Msg("stored active agent is unknown, resetting conversation")
		return s.defaultState(conversationID)
	}
	return state
}

func (s *Service) defaultState(conversationID string) *domain.ConversationState {
	return domain.NewConversationState(conversationID, s.agents.DefaultAgentID())
}

// GetConversation returns the stored state of a conversation, healed the
// same way a turn would see it.
func (s *Service) GetConversation(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	if conversationID == "" {
		return nil, errx.InvalidInput(ErrConversationIDRequired)
	}
	return s.loadState(ctx, conversationID), nil
}

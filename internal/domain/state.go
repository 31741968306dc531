package domain

// ConversationState is the durable record of one conversation.
type ConversationState struct {
	ConversationID          string             `json:"conversation_id"`
	ActiveAgentID           string             `json:"active_agent_id"`
	AgentHistories          map[string][]Event `json:"agent_histories"`
	AgentContinuationTokens map[string]string  `json:"agent_continuation_tokens"`
	TicketFields            TicketFields       `json:"ticket_fields"`
}

// TicketFields are populated by the create_ticket tool. They belong to the
// conversation, not to an agent.
type TicketFields struct {
	UserName          string `json:"user_name,omitempty"`
	UserEmail         string `json:"user_email,omitempty"`
	TicketID          string `json:"ticket_id,omitempty"`
	TicketName        string `json:"ticket_name,omitempty"`
	TicketDescription string `json:"ticket_description,omitempty"`
}

// NewConversationState returns the default state for a conversation.
func NewConversationState(conversationID, defaultAgentID string) *ConversationState {
	return &ConversationState{
		ConversationID:          conversationID,
		ActiveAgentID:           defaultAgentID,
		AgentHistories:          make(map[string][]Event),
		AgentContinuationTokens: make(map[string]string),
	}
}

// Normalize replaces nil maps with empty ones, e.g. after decoding.
func (s *ConversationState) Normalize() {
	if s.AgentHistories == nil {
		s.AgentHistories = make(map[string][]Event)
	}
	if s.AgentContinuationTokens == nil {
		s.AgentContinuationTokens = make(map[string]string)
	}
}

// History returns the stored history for an agent.
func (s *ConversationState) History(agentID string) []Event {
	return s.AgentHistories[agentID]
}

// ContinuationToken returns the last token recorded for an agent.
func (s *ConversationState) ContinuationToken(agentID string) string {
	return s.AgentContinuationTokens[agentID]
}

// Clone returns a deep copy of the state. Event payloads are shared since
// they are never mutated after construction.
func (s *ConversationState) Clone() *ConversationState {
	out := &ConversationState{
		ConversationID:          s.ConversationID,
		ActiveAgentID:           s.ActiveAgentID,
		AgentHistories:          make(map[string][]Event, len(s.AgentHistories)),
		AgentContinuationTokens: make(map[string]string, len(s.AgentContinuationTokens)),
		TicketFields:            s.TicketFields,
	}
	for agent, events := range s.AgentHistories {
		cp := make([]Event, len(events))
		copy(cp, events)
		out.AgentHistories[agent] = cp
	}
	for agent, token := range s.AgentContinuationTokens {
		out.AgentContinuationTokens[agent] = token
	}
	return out
}

// Apply overwrites the fields that are set in update.
func (t *TicketFields) Apply(update TicketFields) {
	if update.UserName != "" {
		t.UserName = update.UserName
	}
	if update.UserEmail != "" {
		t.UserEmail = update.UserEmail
	}
	if update.TicketID != "" {
		t.TicketID = update.TicketID
	}
	if update.TicketName != "" {
		t.TicketName = update.TicketName
	}
	if update.TicketDescription != "" {
		t.TicketDescription = update.TicketDescription
	}
}

// Empty reports whether no field is set.
func (t TicketFields) Empty() bool {
	return t == TicketFields{}
}

package domain

// RunRequest is the input handed to an agent runner for one turn.
type RunRequest struct {
	ConversationID    string  `json:"conversation_id"`
	AgentID           string  `json:"agent_id"`
	Input             []Event `json:"input"`
	ContinuationToken string  `json:"continuation_token,omitempty"`
}

// RunResult is what an agent runner produced during one turn.
type RunResult struct {
	NewEvents         []Event       `json:"new_events"`
	LastAgentID       string        `json:"last_agent_id"`
	ContinuationToken string        `json:"continuation_token,omitempty"`
	Ticket            *TicketFields `json:"ticket,omitempty"`
}

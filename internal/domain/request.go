package domain

// TurnRequest is one user message addressed to a conversation.
type TurnRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	Feedback       string `json:"feedback,omitempty"`
}

// TurnResponse is returned to the caller after a turn.
type TurnResponse struct {
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
	HasError       bool   `json:"has_error"`
	ErrorMessage   string `json:"error_message,omitempty"`
	ActiveAgent    string `json:"active_agent,omitempty"`
	StateSaved     bool   `json:"state_saved"`
}

// TurnCompleted is published after a turn has been persisted.
type TurnCompleted struct {
	ConversationID string `json:"conversation_id"`
	StartAgent     string `json:"start_agent"`
	FinalAgent     string `json:"final_agent"`
	Handoffs       int    `json:"handoffs"`
	Anomalies      int    `json:"anomalies"`
	StateSaved     bool   `json:"state_saved"`
	Ts             int64  `json:"ts"` // Unix milliseconds
}

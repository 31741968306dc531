package domain

// SSE event names emitted by a remote agent runner.
const (
	SSEEventItem  = "item"
	SSEEventDone  = "done"
	SSEEventError = "error"
)

// DoneEventData is the data for a done SSE event.
type DoneEventData struct {
	LastAgentID       string        `json:"last_agent_id"`
	ContinuationToken string        `json:"continuation_token,omitempty"`
	Ticket            *TicketFields `json:"ticket,omitempty"`
}

// ErrorEventData is the data for an error SSE event.
type ErrorEventData struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

package ws

import "github.com/xiaot623/docsagent/internal/domain"

// Message types from client to server
const (
	TypeChat = "chat"
)

// Message types from server to client
const (
	TypeAnswer = "answer"
	TypeError  = "error"
)

// Error codes
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeInvalidInput   = "invalid_input"
	ErrorCodeTurnFailed     = "turn_failed"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
}

// ChatMessage is sent by a client to run one turn.
type ChatMessage struct {
	BaseMessage
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	Feedback       string `json:"feedback,omitempty"`
}

// AnswerMessage carries the result of a turn. Turns that failed after the
// conversation id was known are answers with HasError set.
type AnswerMessage struct {
	BaseMessage
	domain.TurnResponse
}

// ErrorMessage is sent when a message cannot be processed at all.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

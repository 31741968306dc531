// Package llm provides an abstraction over chat model providers.
package llm

import (
	"context"
	"encoding/json"

	"github.com/xiaot623/docsagent/internal/domain"
)

// ChatModel is one provider's chat completion API with tool calling.
type ChatModel interface {
	// Complete sends the transcript and returns the model's next step.
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Request is a provider-neutral completion request.
type Request struct {
	Model        string
	Instructions string
	// Transcript is the conversation so far, as domain events.
	Transcript  []domain.Event
	Tools       []domain.ToolSpec
	Temperature *float64
	MaxTokens   int
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Response is the model's reply: text, tool calls, or both.
type Response struct {
	// ID identifies the provider response. It is used as the continuation
	// token.
	ID        string
	Text      string
	ToolCalls []ToolCall
}

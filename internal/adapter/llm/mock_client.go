package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/xiaot623/docsagent/internal/domain"
)

// MockModel is a deterministic ChatModel for local runs and tests. It
// understands two commands in the latest user message:
//
//	/handoff <agent>   calls transfer_to_<agent> when offered
//	/tool <name> <json> calls the named tool when offered
//
// Anything else is echoed back.
type MockModel struct{}

// NewMockModel creates a new mock model.
func NewMockModel() *MockModel {
	return &MockModel{}
}

var _ ChatModel = (*MockModel)(nil)

// Complete returns a mock response.
func (m *MockModel) Complete(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp := &Response{ID: "mock-resp-" + uuid.NewString()}

	last, pending := lastUserMessage(req.Transcript)
	if pending {
		if call, ok := m.commandCall(last, req.Tools); ok {
			resp.ToolCalls = []ToolCall{call}
			return resp, nil
		}
	}

	// After tools have run, relay the latest tool output.
	if n := len(req.Transcript); n > 0 && req.Transcript[n-1].Kind == domain.EventKindToolResult {
		resp.Text = "[MOCK] " + domain.OutputText(req.Transcript[n-1].Result.Output)
		return resp, nil
	}

	if last == "" {
		resp.Text = "[MOCK] This is a mock response from the LLM client."
		return resp, nil
	}
	resp.Text = fmt.Sprintf("[MOCK] Received your message: %q. This is a mock response.", truncate(last, 100))
	return resp, nil
}

func (m *MockModel) commandCall(text string, tools []domain.ToolSpec) (ToolCall, bool) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return ToolCall{}, false
	}

	var name string
	args := json.RawMessage(`{}`)
	switch fields[0] {
	case "/handoff":
		name = "transfer_to_" + fields[1]
	case "/tool":
		name = fields[1]
		if rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(text, "/tool"), " "+name)); rest != "" && json.Valid([]byte(rest)) {
			args = json.RawMessage(rest)
		}
	default:
		return ToolCall{}, false
	}

	for _, spec := range tools {
		if spec.Name == name {
			return ToolCall{ID: "call_" + uuid.NewString()[:8], Name: name, Arguments: args}, true
		}
	}
	return ToolCall{}, false
}

// lastUserMessage returns the latest user text and whether nothing but
// hand-offs has happened since.
func lastUserMessage(events []domain.Event) (string, bool) {
	pending := true
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.Kind == domain.EventKindMessage && ev.Message.Role == domain.RoleUser {
			return ev.Message.Text, pending
		}
		if ev.Kind != domain.EventKindHandoffCall && ev.Kind != domain.EventKindHandoffResult {
			pending = false
		}
	}
	return "", false
}

// truncate truncates a string to the given length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func mustJSON(v any) json.RawMessage {
	if v == nil {
		return json.RawMessage(`{}`)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

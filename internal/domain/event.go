package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Event is one unit of turn output. Exactly one of Message, Call or Result is
// set, and which one is determined by Kind.
type Event struct {
	Kind    EventKind       `json:"kind"`
	ID      string          `json:"id,omitempty"`
	CallID  string          `json:"call_id,omitempty"`
	Message *MessagePayload `json:"message,omitempty"`
	Call    *CallPayload    `json:"call,omitempty"`
	Result  *ResultPayload  `json:"result,omitempty"`
}

// MessagePayload is the content of a message event.
type MessagePayload struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// CallPayload is the content of a tool_call or handoff_call event.
type CallPayload struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ResultPayload is the content of a tool_result or handoff_result event.
type ResultPayload struct {
	Name   string          `json:"name,omitempty"`
	Output json.RawMessage `json:"output,omitempty"`
}

// NewMessage creates a message event.
func NewMessage(id, role, text string) Event {
	return Event{
		Kind:    EventKindMessage,
		ID:      id,
		Message: &MessagePayload{Role: role, Text: text},
	}
}

// NewToolCall creates a tool_call event.
func NewToolCall(id, callID, name string, args json.RawMessage) Event {
	return Event{
		Kind:   EventKindToolCall,
		ID:     id,
		CallID: callID,
		Call:   &CallPayload{Name: name, Arguments: compact(args)},
	}
}

// NewToolResult creates a tool_result event.
func NewToolResult(id, callID, name string, output json.RawMessage) Event {
	return Event{
		Kind:   EventKindToolResult,
		ID:     id,
		CallID: callID,
		Result: &ResultPayload{Name: name, Output: compact(output)},
	}
}

// NewHandoffCall creates a handoff_call event.
func NewHandoffCall(id, callID, name string, args json.RawMessage) Event {
	ev := NewToolCall(id, callID, name, args)
	ev.Kind = EventKindHandoffCall
	return ev
}

// NewHandoffResult creates a handoff_result event.
func NewHandoffResult(id, callID, name string, output json.RawMessage) Event {
	ev := NewToolResult(id, callID, name, output)
	ev.Kind = EventKindHandoffResult
	return ev
}

// StringOutput encodes s as a JSON string for use as a result output.
func StringOutput(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// Validate checks that the payload matches the kind.
func (e Event) Validate() error {
	switch {
	case !e.Kind.Valid():
		return fmt.Errorf("unknown event kind %q", e.Kind)
	case e.Kind == EventKindMessage:
		if e.Message == nil || e.Call != nil || e.Result != nil {
			return fmt.Errorf("message event requires only a message payload")
		}
	case e.Kind.IsCall():
		if e.Call == nil || e.Message != nil || e.Result != nil {
			return fmt.Errorf("%s event requires only a call payload", e.Kind)
		}
		if e.CallID == "" {
			return fmt.Errorf("%s event requires call_id", e.Kind)
		}
	case e.Kind.IsResult():
		if e.Result == nil || e.Message != nil || e.Call != nil {
			return fmt.Errorf("%s event requires only a result payload", e.Kind)
		}
		if e.CallID == "" {
			return fmt.Errorf("%s event requires call_id", e.Kind)
		}
	}
	return nil
}

// Equal reports structural equality of two events.
func (e Event) Equal(o Event) bool {
	if e.Kind != o.Kind || e.ID != o.ID || e.CallID != o.CallID {
		return false
	}
	switch {
	case (e.Message == nil) != (o.Message == nil),
		(e.Call == nil) != (o.Call == nil),
		(e.Result == nil) != (o.Result == nil):
		return false
	}
	if e.Message != nil && *e.Message != *o.Message {
		return false
	}
	if e.Call != nil && (e.Call.Name != o.Call.Name || !bytes.Equal(e.Call.Arguments, o.Call.Arguments)) {
		return false
	}
	if e.Result != nil && (e.Result.Name != o.Result.Name || !bytes.Equal(e.Result.Output, o.Result.Output)) {
		return false
	}
	return true
}

// Canonical returns e with its JSON payloads compacted. Backends such as
// JSONB reformat nested documents, so decoded events are canonicalized
// before they are compared.
func (e Event) Canonical() Event {
	if e.Call != nil {
		call := *e.Call
		call.Arguments = compact(call.Arguments)
		e.Call = &call
	}
	if e.Result != nil {
		result := *e.Result
		result.Output = compact(result.Output)
		e.Result = &result
	}
	return e
}

// AnswerText returns the user-visible text carried by a message or a tool
// result. ok is false for every other kind.
func (e Event) AnswerText() (text string, ok bool) {
	switch e.Kind {
	case EventKindMessage:
		if e.Message == nil {
			return "", false
		}
		return e.Message.Text, true
	case EventKindToolResult:
		if e.Result == nil {
			return "", false
		}
		return OutputText(e.Result.Output), true
	}
	return "", false
}

// OutputText renders a result output as text. JSON strings are unquoted,
// anything else is returned verbatim.
func OutputText(output json.RawMessage) string {
	var s string
	if err := json.Unmarshal(output, &s); err == nil {
		return s
	}
	return string(output)
}

func compact(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		// Not JSON: keep the text as a JSON string so the event stays encodable.
		return StringOutput(string(raw))
	}
	return buf.Bytes()
}

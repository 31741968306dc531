package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventValidate(t *testing.T) {
	assert.NoError(t, NewMessage("m1", RoleUser, "hi").Validate())
	assert.NoError(t, NewHandoffCall("h1", "c1", "transfer_to_support", nil).Validate())

	assert.Error(t, Event{Kind: "bogus"}.Validate())
	assert.Error(t, Event{Kind: EventKindMessage}.Validate())
	assert.Error(t, NewToolCall("t1", "", "lookup", nil).Validate(), "call without call_id")

	mixed := NewMessage("m1", RoleUser, "hi")
	mixed.Result = &ResultPayload{}
	assert.Error(t, mixed.Validate())
}

func TestEventJSONRoundTripKeepsEveryKind(t *testing.T) {
	events := []Event{
		NewMessage("", RoleAssistant, "no id here"),
		NewToolCall("t1", "c1", "wandbot_support_tool", json.RawMessage(`{"question": "how?"}`)),
		NewToolResult("t2", "c1", "wandbot_support_tool", StringOutput("answer")),
		NewHandoffCall("h1", "c2", "transfer_to_support", json.RawMessage(`{}`)),
		NewHandoffResult("h2", "c2", "transfer_to_support", json.RawMessage(`{"assistant":"support"}`)),
	}

	data, err := json.Marshal(events)
	require.NoError(t, err)

	var decoded []Event
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, len(events))
	for i := range events {
		assert.True(t, events[i].Equal(decoded[i]), "event %d changed: %+v", i, decoded[i])
		assert.NoError(t, decoded[i].Validate())
	}
}

func TestEventEqual(t *testing.T) {
	a := NewToolCall("", "c1", "lookup", json.RawMessage(`{"q":1}`))
	b := NewToolCall("", "c1", "lookup", json.RawMessage(`{ "q": 1 }`))
	assert.True(t, a.Equal(b), "arguments are compacted on construction")

	c := NewToolCall("", "c1", "lookup", json.RawMessage(`{"q":2}`))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(NewMessage("", RoleUser, "x")))
}

func TestEventAnswerText(t *testing.T) {
	text, ok := NewMessage("m1", RoleAssistant, "hello").AnswerText()
	assert.True(t, ok)
	assert.Equal(t, "hello", text)

	text, ok = NewToolResult("r1", "c1", "wandbot_support_tool", StringOutput("from the bot")).AnswerText()
	assert.True(t, ok)
	assert.Equal(t, "from the bot", text)

	text, ok = NewToolResult("r2", "c2", "lookup", json.RawMessage(`{"a":1}`)).AnswerText()
	assert.True(t, ok)
	assert.Equal(t, `{"a":1}`, text)

	_, ok = NewHandoffResult("r3", "c3", "transfer_to_x", nil).AnswerText()
	assert.False(t, ok)
}

func TestNonJSONOutputBecomesString(t *testing.T) {
	ev := NewToolResult("r1", "c1", "lookup", json.RawMessage("plain text"))
	assert.Equal(t, `"plain text"`, string(ev.Result.Output))
}

func TestConversationStateClone(t *testing.T) {
	s := NewConversationState("conv", "triage")
	s.AgentHistories["triage"] = []Event{NewMessage("m1", RoleUser, "hi")}
	s.AgentContinuationTokens["triage"] = "resp_1"

	c := s.Clone()
	c.AgentHistories["triage"] = append(c.AgentHistories["triage"], NewMessage("m2", RoleAssistant, "yo"))
	c.AgentContinuationTokens["triage"] = "resp_2"

	assert.Len(t, s.AgentHistories["triage"], 1)
	assert.Equal(t, "resp_1", s.ContinuationToken("triage"))
}

func TestTicketFieldsApply(t *testing.T) {
	fields := TicketFields{UserName: "Ada", TicketID: "TICKET-1"}
	fields.Apply(TicketFields{TicketID: "TICKET-2", UserEmail: "ada@example.com"})

	assert.Equal(t, TicketFields{UserName: "Ada", UserEmail: "ada@example.com", TicketID: "TICKET-2"}, fields)
	assert.False(t, fields.Empty())
	assert.True(t, TicketFields{}.Empty())
}

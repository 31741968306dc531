package runner

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/docsagent/internal/adapter/llm"
	"github.com/xiaot623/docsagent/internal/agents"
	"github.com/xiaot623/docsagent/internal/domain"
	"github.com/xiaot623/docsagent/internal/policy"
	"github.com/xiaot623/docsagent/internal/segment"
	"github.com/xiaot623/docsagent/internal/tools"
)

// scriptedModel replays canned responses and records what it was sent.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*llm.Response
	err       error
	requests  []*llm.Request
}

func (m *scriptedModel) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *req
	cp.Transcript = append([]domain.Event(nil), req.Transcript...)
	m.requests = append(m.requests, &cp)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return &llm.Response{ID: "resp_default", Text: "done"}, nil
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

type staticModels struct{ model llm.ChatModel }

func (s staticModels) Model(ctx context.Context, provider string) (llm.ChatModel, error) {
	return s.model, nil
}

func testRegistry(t *testing.T) *agents.Registry {
	t.Helper()
	model := domain.ModelConfig{Provider: "openai", Name: "test-model"}
	reg, err := agents.New("triage_agent",
		domain.AgentDefinition{
			ID:          "triage_agent",
			Model:       model,
			Tools:       []string{"lookup"},
			StopAtTools: []string{"lookup"},
			Handoffs:    []string{"support_ticket_agent"},
		},
		domain.AgentDefinition{
			ID:       "support_ticket_agent",
			Model:    model,
			Tools:    []string{"create_ticket"},
			Handoffs: []string{"triage_agent"},
		},
	)
	require.NoError(t, err)
	return reg
}

func testTools(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	r.MustRegister(tools.Definition{
		Spec: domain.ToolSpec{Name: "lookup"},
		Exec: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			return domain.StringOutput("docs answer"), nil
		},
	})
	r.MustRegister(tools.Definition{
		Spec: domain.ToolSpec{Name: "create_ticket"},
		Exec: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			var in struct {
				UserEmail string `json:"user_email"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			if inv := tools.InvocationFrom(ctx); inv != nil {
				inv.RecordTicket(domain.TicketFields{UserEmail: in.UserEmail, TicketID: "TICKET-1"})
			}
			return domain.StringOutput("TICKET-1 created"), nil
		},
	})
	return r
}

func userInput(text string) []domain.Event {
	return []domain.Event{domain.NewMessage("u1", domain.RoleUser, text)}
}

func TestRunPlainAnswer(t *testing.T) {
	model := &scriptedModel{responses: []*llm.Response{{ID: "resp_1", Text: "hello there"}}}
	r := NewLocal(testRegistry(t), staticModels{model}, testTools(t), Options{})

	res, err := r.Run(context.Background(), domain.RunRequest{
		ConversationID: "conv",
		AgentID:        "triage_agent",
		Input:          userInput("hi"),
	})
	require.NoError(t, err)
	require.Len(t, res.NewEvents, 1)
	assert.Equal(t, "hello there", res.NewEvents[0].Message.Text)
	assert.Equal(t, "triage_agent", res.LastAgentID)
	assert.Equal(t, "resp_1", res.ContinuationToken)
	assert.Nil(t, res.Ticket)

	require.Len(t, model.requests, 1)
	assert.Equal(t, "test-model", model.requests[0].Model)
	names := []string{}
	for _, spec := range model.requests[0].Tools {
		names = append(names, spec.Name)
	}
	assert.Equal(t, []string{"lookup", "transfer_to_support_ticket_agent"}, names)
}

func TestRunHandoffContinuesWithTarget(t *testing.T) {
	model := &scriptedModel{responses: []*llm.Response{
		{ID: "resp_1", ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "transfer_to_support_ticket_agent", Arguments: json.RawMessage(`{}`)},
			{ID: "c2", Name: "lookup"},
		}},
		{ID: "resp_2", Text: "What's your email?"},
	}}
	r := NewLocal(testRegistry(t), staticModels{model}, testTools(t), Options{})

	res, err := r.Run(context.Background(), domain.RunRequest{
		ConversationID: "conv",
		AgentID:        "triage_agent",
		Input:          userInput("I need a ticket"),
	})
	require.NoError(t, err)
	require.Len(t, res.NewEvents, 3)
	assert.Equal(t, domain.EventKindHandoffCall, res.NewEvents[0].Kind)
	assert.Equal(t, domain.EventKindHandoffResult, res.NewEvents[1].Kind)
	assert.Equal(t, "c1", res.NewEvents[1].CallID)
	assert.Equal(t, "support_ticket_agent", res.LastAgentID)
	assert.Equal(t, "resp_2", res.ContinuationToken)

	// The second step sees the hand-off and the target's tools.
	require.Len(t, model.requests, 2)
	assert.Len(t, model.requests[1].Transcript, 3)
	assert.Equal(t, "create_ticket", model.requests[1].Tools[0].Name)

	// Segmenting the output attributes it like the runner did.
	seg := segment.Segment(res.NewEvents, "triage_agent")
	assert.Equal(t, res.LastAgentID, seg.FinalAgent)
	assert.Empty(t, seg.Anomalies)
}

func TestRunStopAtToolShortCircuits(t *testing.T) {
	model := &scriptedModel{responses: []*llm.Response{
		{ID: "resp_1", ToolCalls: []llm.ToolCall{{ID: "c1", Name: "lookup", Arguments: json.RawMessage(`{"question":"q"}`)}}},
	}}
	r := NewLocal(testRegistry(t), staticModels{model}, testTools(t), Options{})

	res, err := r.Run(context.Background(), domain.RunRequest{AgentID: "triage_agent", Input: userInput("how?")})
	require.NoError(t, err)
	require.Len(t, res.NewEvents, 2)
	text, ok := res.NewEvents[1].AnswerText()
	assert.True(t, ok)
	assert.Equal(t, "docs answer", text)
	assert.Len(t, model.requests, 1)
}

func TestRunToolResultFedBackAndTicketRecorded(t *testing.T) {
	model := &scriptedModel{responses: []*llm.Response{
		{ID: "resp_1", ToolCalls: []llm.ToolCall{{ID: "c1", Name: "create_ticket", Arguments: json.RawMessage(`{"user_email":"ada@example.com"}`)}}},
		{ID: "resp_2", Text: "Ticket TICKET-1 created."},
	}}
	r := NewLocal(testRegistry(t), staticModels{model}, testTools(t), Options{})

	res, err := r.Run(context.Background(), domain.RunRequest{AgentID: "support_ticket_agent", Input: userInput("file it")})
	require.NoError(t, err)
	require.Len(t, res.NewEvents, 3)
	assert.Equal(t, "TICKET-1 created", domain.OutputText(res.NewEvents[1].Result.Output))
	require.NotNil(t, res.Ticket)
	assert.Equal(t, "ada@example.com", res.Ticket.UserEmail)
	assert.Equal(t, "TICKET-1", res.Ticket.TicketID)
}

func TestRunPolicyBlockBecomesToolOutput(t *testing.T) {
	engine, err := policy.NewDefaultEngine(context.Background())
	require.NoError(t, err)

	model := &scriptedModel{responses: []*llm.Response{
		{ID: "resp_1", ToolCalls: []llm.ToolCall{{ID: "c1", Name: "create_ticket", Arguments: json.RawMessage(`{"user_email":"nope"}`)}}},
		{ID: "resp_2", Text: "I need a valid email."},
	}}
	r := NewLocal(testRegistry(t), staticModels{model}, testTools(t), Options{Policy: engine})

	res, err := r.Run(context.Background(), domain.RunRequest{AgentID: "support_ticket_agent", Input: userInput("file it")})
	require.NoError(t, err)
	require.Len(t, res.NewEvents, 3)
	assert.Contains(t, domain.OutputText(res.NewEvents[1].Result.Output), "blocked")
	assert.Nil(t, res.Ticket)
}

func TestRunUnavailableToolIsReported(t *testing.T) {
	model := &scriptedModel{responses: []*llm.Response{
		{ID: "resp_1", ToolCalls: []llm.ToolCall{{ID: "c1", Name: "create_ticket"}}},
		{ID: "resp_2", Text: "sorry"},
	}}
	r := NewLocal(testRegistry(t), staticModels{model}, testTools(t), Options{})

	res, err := r.Run(context.Background(), domain.RunRequest{AgentID: "triage_agent", Input: userInput("x")})
	require.NoError(t, err)
	assert.Contains(t, domain.OutputText(res.NewEvents[1].Result.Output), "not available")
}

func TestRunErrors(t *testing.T) {
	r := NewLocal(testRegistry(t), staticModels{&scriptedModel{}}, testTools(t), Options{})
	_, err := r.Run(context.Background(), domain.RunRequest{AgentID: "ghost"})
	assert.ErrorIs(t, err, ErrUnknownAgent)

	failing := NewLocal(testRegistry(t), staticModels{&scriptedModel{err: errors.New("rate limited")}}, testTools(t), Options{})
	_, err = failing.Run(context.Background(), domain.RunRequest{AgentID: "triage_agent", Input: userInput("x")})
	assert.ErrorContains(t, err, "rate limited")
}

func TestRunStepBudget(t *testing.T) {
	loop := &llm.Response{ID: "resp", ToolCalls: []llm.ToolCall{{Name: "create_ticket", Arguments: json.RawMessage(`{}`)}}}
	model := &scriptedModel{responses: []*llm.Response{loop, loop, loop}}
	r := NewLocal(testRegistry(t), staticModels{model}, testTools(t), Options{MaxSteps: 2})

	_, err := r.Run(context.Background(), domain.RunRequest{AgentID: "support_ticket_agent", Input: userInput("x")})
	assert.ErrorIs(t, err, ErrMaxSteps)
	assert.ErrorContains(t, err, "used 2 steps")
}

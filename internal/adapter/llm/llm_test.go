package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/xiaot623/docsagent/internal/config"
	"github.com/xiaot623/docsagent/internal/domain"
)

func sampleTranscript() []domain.Event {
	return []domain.Event{
		domain.NewMessage("m1", domain.RoleUser, "I need a ticket"),
		domain.NewHandoffCall("h1", "c1", "transfer_to_support_ticket_agent", json.RawMessage(`{}`)),
		domain.NewHandoffResult("h2", "c1", "transfer_to_support_ticket_agent",
			json.RawMessage(`{"assistant":"support_ticket_agent"}`)),
		domain.NewMessage("m2", domain.RoleAssistant, "What is your email?"),
		domain.NewMessage("m3", domain.RoleUser, "ada@example.com"),
		domain.NewToolCall("t1", "c2", "create_ticket", json.RawMessage(`{"user_email":"ada@example.com"}`)),
		domain.NewToolResult("t2", "c2", "create_ticket", domain.StringOutput("TICKET-1 created")),
	}
}

func TestPairedTranscriptDropsUnpairedEvents(t *testing.T) {
	events := append(sampleTranscript(),
		domain.NewToolCall("t3", "c3", "create_ticket", nil),
		domain.NewToolResult("t4", "c9", "create_ticket", domain.StringOutput("orphan")),
	)
	got := pairedTranscript(events)
	assert.Equal(t, sampleTranscript(), got)
}

func TestOpenAIMessages(t *testing.T) {
	msgs := openaiMessages(&Request{Instructions: "be nice", Transcript: sampleTranscript()})

	require.Len(t, msgs, 8)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	require.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	assert.Equal(t, "c1", msgs[2].OfAssistant.ToolCalls[0].ID)
	assert.Equal(t, "{}", msgs[2].OfAssistant.ToolCalls[0].Function.Arguments)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "c1", msgs[3].OfTool.ToolCallID)
	assert.NotNil(t, msgs[4].OfAssistant)
	assert.NotNil(t, msgs[5].OfUser)
	assert.NotNil(t, msgs[6].OfAssistant)
	require.NotNil(t, msgs[7].OfTool)
	assert.Equal(t, "c2", msgs[7].OfTool.ToolCallID)
}

func TestAnthropicMessagesAlternateRoles(t *testing.T) {
	msgs := anthropicMessages(sampleTranscript())

	roles := make([]anthropic.MessageParamRole, len(msgs))
	for i, m := range msgs {
		roles[i] = m.Role
	}
	assert.Equal(t, []anthropic.MessageParamRole{
		anthropic.MessageParamRoleUser,      // m1
		anthropic.MessageParamRoleAssistant, // h1
		anthropic.MessageParamRoleUser,      // h2
		anthropic.MessageParamRoleAssistant, // m2
		anthropic.MessageParamRoleUser,      // m3
		anthropic.MessageParamRoleAssistant, // t1
		anthropic.MessageParamRoleUser,      // t2
	}, roles)
	require.NotNil(t, msgs[2].Content[0].OfToolResult)
	assert.Equal(t, "c1", msgs[2].Content[0].OfToolResult.ToolUseID)
}

func TestAnthropicToolsCopySchema(t *testing.T) {
	tools := anthropicTools([]domain.ToolSpec{{
		Name:        "create_ticket",
		Description: "Create a ticket",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"user_email": map[string]any{"type": "string"}},
			"required":   []any{"user_email"},
		},
	}})
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "create_ticket", tools[0].OfTool.Name)
	assert.Equal(t, []string{"user_email"}, tools[0].OfTool.InputSchema.Required)
}

func TestGeminiContentsMergeConsecutiveRoles(t *testing.T) {
	contents := geminiContents(sampleTranscript())

	require.Len(t, contents, 7)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
	require.NotNil(t, contents[1].Parts[0].FunctionCall)
	assert.Equal(t, "transfer_to_support_ticket_agent", contents[1].Parts[0].FunctionCall.Name)
	require.NotNil(t, contents[6].Parts[0].FunctionResponse)
	assert.Equal(t, map[string]any{"output": "TICKET-1 created"}, contents[6].Parts[0].FunctionResponse.Response)
}

func TestMockModelEchoes(t *testing.T) {
	resp, err := NewMockModel().Complete(context.Background(), &Request{
		Transcript: []domain.Event{domain.NewMessage("m1", domain.RoleUser, "hello")},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Text, `"hello"`)
	assert.Empty(t, resp.ToolCalls)
	assert.NotEmpty(t, resp.ID)
}

func TestMockModelHandoffCommand(t *testing.T) {
	tools := []domain.ToolSpec{{Name: "transfer_to_support_ticket_agent"}}
	m := NewMockModel()

	resp, err := m.Complete(context.Background(), &Request{
		Transcript: []domain.Event{domain.NewMessage("m1", domain.RoleUser, "/handoff support_ticket_agent")},
		Tools:      tools,
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "transfer_to_support_ticket_agent", resp.ToolCalls[0].Name)

	// Not offered: plain echo.
	resp, err = m.Complete(context.Background(), &Request{
		Transcript: []domain.Event{domain.NewMessage("m1", domain.RoleUser, "/handoff billing")},
		Tools:      tools,
	})
	require.NoError(t, err)
	assert.Empty(t, resp.ToolCalls)
}

func TestMockModelToolCommandAndRelay(t *testing.T) {
	tools := []domain.ToolSpec{{Name: "create_ticket"}}
	m := NewMockModel()

	transcript := []domain.Event{domain.NewMessage("m1", domain.RoleUser, `/tool create_ticket {"user_email":"a@b.c"}`)}
	resp, err := m.Complete(context.Background(), &Request{Transcript: transcript, Tools: tools})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.JSONEq(t, `{"user_email":"a@b.c"}`, string(resp.ToolCalls[0].Arguments))

	transcript = append(transcript,
		domain.NewToolCall("t1", resp.ToolCalls[0].ID, "create_ticket", resp.ToolCalls[0].Arguments),
		domain.NewToolResult("t2", resp.ToolCalls[0].ID, "create_ticket", domain.StringOutput("TICKET-7 created")),
	)
	resp, err = m.Complete(context.Background(), &Request{Transcript: transcript, Tools: tools})
	require.NoError(t, err)
	assert.Empty(t, resp.ToolCalls)
	assert.Equal(t, "[MOCK] TICKET-7 created", resp.Text)
}

func TestFactory(t *testing.T) {
	ctx := context.Background()

	mock := NewFactory(config.LLMConfig{Mode: "mock"})
	m, err := mock.Model(ctx, ProviderOpenAI)
	require.NoError(t, err)
	assert.IsType(t, &MockModel{}, m)

	live := NewFactory(config.LLMConfig{})
	_, err = live.Model(ctx, ProviderOpenAI)
	assert.ErrorContains(t, err, "OPENAI_API_KEY")
	_, err = live.Model(ctx, "cohere")
	assert.Error(t, err)

	live.Register(ProviderOpenAI, NewMockModel())
	m, err = live.Model(ctx, ProviderOpenAI)
	require.NoError(t, err)
	assert.NotNil(t, m)

	keyed := NewFactory(config.LLMConfig{OpenAIAPIKey: "sk-test", AnthropicAPIKey: "sk-ant"})
	m, err = keyed.Model(ctx, ProviderOpenAI)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIModel{}, m)
	m2, err := keyed.Model(ctx, ProviderOpenAI)
	require.NoError(t, err)
	assert.Same(t, m, m2)
	m, err = keyed.Model(ctx, ProviderAnthropic)
	require.NoError(t, err)
	assert.IsType(t, &AnthropicModel{}, m)
}

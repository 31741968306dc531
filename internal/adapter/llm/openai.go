package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/xiaot623/docsagent/internal/domain"
)

// OpenAIModel calls the OpenAI chat completions API.
type OpenAIModel struct {
	client openai.Client
}

// NewOpenAIModel creates a model client. baseURL may be empty.
func NewOpenAIModel(apiKey, baseURL string) *OpenAIModel {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIModel{client: openai.NewClient(opts...)}
}

// Complete implements ChatModel.
func (m *OpenAIModel) Complete(ctx context.Context, req *Request) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: openaiMessages(req),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	for _, spec := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        spec.Name,
				Description: openai.String(spec.Description),
				Parameters:  openai.FunctionParameters(spec.Parameters),
			},
		})
	}

	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	msg := completion.Choices[0].Message
	resp := &Response{ID: completion.ID, Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: []byte(tc.Function.Arguments),
		})
	}
	return resp, nil
}

func openaiMessages(req *Request) []openai.ChatCompletionMessageParamUnion {
	var msgs []openai.ChatCompletionMessageParamUnion
	if req.Instructions != "" {
		msgs = append(msgs, openai.SystemMessage(req.Instructions))
	}

	var pending []openai.ChatCompletionMessageToolCallParam
	flush := func() {
		if len(pending) == 0 {
			return
		}
		msgs = append(msgs, openai.ChatCompletionMessageParamUnion{
			OfAssistant: &openai.ChatCompletionAssistantMessageParam{ToolCalls: pending},
		})
		pending = nil
	}

	for _, ev := range pairedTranscript(req.Transcript) {
		switch {
		case ev.Kind == domain.EventKindMessage:
			flush()
			if ev.Message.Role == domain.RoleUser {
				msgs = append(msgs, openai.UserMessage(ev.Message.Text))
			} else {
				msgs = append(msgs, openai.AssistantMessage(ev.Message.Text))
			}
		case ev.Kind.IsCall():
			pending = append(pending, openai.ChatCompletionMessageToolCallParam{
				ID: ev.CallID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      ev.Call.Name,
					Arguments: argumentsString(ev.Call.Arguments),
				},
			})
		case ev.Kind.IsResult():
			flush()
			msgs = append(msgs, openai.ToolMessage(domain.OutputText(ev.Result.Output), ev.CallID))
		}
	}
	flush()
	return msgs
}

package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/xiaot623/docsagent/internal/domain"
)

const anthropicDefaultMaxTokens = 4096

// AnthropicModel calls the Anthropic Messages API.
type AnthropicModel struct {
	client *anthropic.Client
}

// NewAnthropicModel creates a model client.
func NewAnthropicModel(apiKey string) *AnthropicModel {
	var clientOpts []option.RequestOption
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(clientOpts...)
	return &AnthropicModel{client: &client}
}

// Complete implements ChatModel.
func (m *AnthropicModel) Complete(ctx context.Context, req *Request) (*Response, error) {
	maxTokens := int64(anthropicDefaultMaxTokens)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  anthropicMessages(req.Transcript),
		MaxTokens: maxTokens,
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
	}
	if len(req.Tools) > 0 {
		params.Tools = anthropicTools(req.Tools)
	}

	msg, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	resp := &Response{ID: msg.ID}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Text += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			args, err := json.Marshal(toolBlock.Input)
			if err != nil || string(args) == "null" {
				args = []byte("{}")
			}
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: toolBlock.ID, Name: toolBlock.Name, Arguments: args})
		}
	}
	return resp, nil
}

// anthropicMessages groups tool_use blocks into assistant turns and their
// tool_result blocks into the following user turn.
func anthropicMessages(events []domain.Event) []anthropic.MessageParam {
	var (
		messages []anthropic.MessageParam
		role     anthropic.MessageParamRole
		blocks   []anthropic.ContentBlockParamUnion
	)
	add := func(r anthropic.MessageParamRole, block anthropic.ContentBlockParamUnion) {
		if r != role && len(blocks) > 0 {
			messages = append(messages, anthropic.MessageParam{Role: role, Content: blocks})
			blocks = nil
		}
		role = r
		blocks = append(blocks, block)
	}

	for _, ev := range pairedTranscript(events) {
		switch {
		case ev.Kind == domain.EventKindMessage:
			if ev.Message.Text == "" {
				continue
			}
			if ev.Message.Role == domain.RoleUser {
				add(anthropic.MessageParamRoleUser, anthropic.NewTextBlock(ev.Message.Text))
			} else {
				add(anthropic.MessageParamRoleAssistant, anthropic.NewTextBlock(ev.Message.Text))
			}
		case ev.Kind.IsCall():
			add(anthropic.MessageParamRoleAssistant,
				anthropic.NewToolUseBlock(ev.CallID, argumentsObject(ev.Call.Arguments), ev.Call.Name))
		case ev.Kind.IsResult():
			add(anthropic.MessageParamRoleUser,
				anthropic.NewToolResultBlock(ev.CallID, domain.OutputText(ev.Result.Output), false))
		}
	}
	if len(blocks) > 0 {
		messages = append(messages, anthropic.MessageParam{Role: role, Content: blocks})
	}
	return messages
}

func anthropicTools(specs []domain.ToolSpec) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, len(specs))
	for i, spec := range specs {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if properties, ok := spec.Parameters["properties"]; ok {
			inputSchema.Properties = properties
		}
		switch required := spec.Parameters["required"].(type) {
		case []string:
			inputSchema.Required = required
		case []any:
			for _, r := range required {
				if s, ok := r.(string); ok {
					inputSchema.Required = append(inputSchema.Required, s)
				}
			}
		}
		tools[i] = anthropic.ToolUnionParamOfTool(inputSchema, spec.Name)
		if spec.Description != "" {
			tools[i].OfTool.Description = anthropic.String(spec.Description)
		}
	}
	return tools
}

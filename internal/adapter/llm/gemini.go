package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/xiaot623/docsagent/internal/domain"
)

// GeminiModel calls the Gemini API.
type GeminiModel struct {
	client *genai.Client
}

// NewGeminiModel creates a model client.
func NewGeminiModel(ctx context.Context, apiKey string) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiModel{client: client}, nil
}

// Complete implements ChatModel.
func (m *GeminiModel) Complete(ctx context.Context, req *Request) (*Response, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.Instructions != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.Instructions, genai.RoleUser)
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, spec := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 spec.Name,
				Description:          spec.Description,
				ParametersJsonSchema: spec.Parameters,
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	result, err := m.client.Models.GenerateContent(ctx, req.Model, geminiContents(req.Transcript), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini api error: %w", err)
	}

	resp := &Response{ID: result.ResponseID, Text: result.Text()}
	for _, fc := range result.FunctionCalls() {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        fc.ID,
			Name:      fc.Name,
			Arguments: mustJSON(fc.Args),
		})
	}
	return resp, nil
}

func geminiContents(events []domain.Event) []*genai.Content {
	var (
		contents []*genai.Content
		role     genai.Role
		parts    []*genai.Part
	)
	add := func(r genai.Role, part *genai.Part) {
		if r != role && len(parts) > 0 {
			contents = append(contents, genai.NewContentFromParts(parts, role))
			parts = nil
		}
		role = r
		parts = append(parts, part)
	}

	for _, ev := range pairedTranscript(events) {
		switch {
		case ev.Kind == domain.EventKindMessage:
			r := genai.Role(genai.RoleModel)
			if ev.Message.Role == domain.RoleUser {
				r = genai.RoleUser
			}
			add(r, genai.NewPartFromText(ev.Message.Text))
		case ev.Kind.IsCall():
			add(genai.RoleModel, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   ev.CallID,
				Name: ev.Call.Name,
				Args: argumentsObject(ev.Call.Arguments),
			}})
		case ev.Kind.IsResult():
			add(genai.RoleUser, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       ev.CallID,
				Name:     ev.Result.Name,
				Response: map[string]any{"output": domain.OutputText(ev.Result.Output)},
			}})
		}
	}
	if len(parts) > 0 {
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents
}

package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xiaot623/docsagent/internal/domain"
	"github.com/xiaot623/docsagent/internal/logx"
)

// WandbotToolName is the documentation search tool.
const WandbotToolName = "wandbot_support_tool"

const wandbotDescription = `Query the Weights & Biases support bot api for help with questions about the
Weights & Biases platform and how to use W&B Models and W&B Weave.`

// Wandbot answers documentation questions through the wandbot service.
type Wandbot struct {
	baseURL    string
	httpClient *http.Client
}

// NewWandbot creates a client for the service at baseURL.
func NewWandbot(baseURL string) *Wandbot {
	return &Wandbot{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type wandbotArgs struct {
	Question string `json:"question"`
}

type wandbotRequest struct {
	Question    string `json:"question"`
	Application string `json:"application"`
}

type wandbotResponse struct {
	Answer *string `json:"answer"`
}

// Definition returns the tool definition.
func (w *Wandbot) Definition() Definition {
	return Definition{
		Spec: domain.ToolSpec{
			Name:        WandbotToolName,
			Description: wandbotDescription,
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"question": map[string]any{"type": "string", "description": "The user's question."},
				},
				"required": []string{"question"},
			},
		},
		Exec: w.execute,
	}
}

// Query asks the service a question and returns its answer.
func (w *Wandbot) Query(ctx context.Context, question string) (string, error) {
	if w.baseURL == "" {
		return "", fmt.Errorf("WANDBOT_BASE_URL is not configured")
	}
	body, err := json.Marshal(wandbotRequest{Question: question, Application: "docs-agent"})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/chat/query", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to query support bot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("support bot returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var out wandbotResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode support bot response: %w", err)
	}
	if out.Answer == nil {
		return "No answer field in response.", nil
	}
	return *out.Answer, nil
}

// execute reports failures to the model as text instead of failing the run.
func (w *Wandbot) execute(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in wandbotArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	answer, err := w.Query(ctx, in.Question)
	if err != nil {
		logx.Warn().Err(err).Msg("support bot query failed")
		return domain.StringOutput("Error contacting support bot: " + err.Error()), nil
	}
	return domain.StringOutput(answer), nil
}

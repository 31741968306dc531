// Package agentclient runs agents hosted by a remote service that streams
// turn output over SSE.
package agentclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xiaot623/docsagent/internal/agents"
	"github.com/xiaot623/docsagent/internal/domain"
)

const maxEventSize = 4 << 20

// SSEEvent represents a parsed SSE event.
type SSEEvent struct {
	Event string
	Data  string
}

// EventHandler is called for each SSE event from the agent.
type EventHandler func(event SSEEvent) error

// Client is an HTTP client for invoking agents.
type Client struct {
	httpClient *http.Client
	endpoint   string
	agents     *agents.Registry
}

// NewClient creates a new agent client. Agents whose definition carries an
// endpoint are invoked there; all others at endpoint. reg may be nil.
func NewClient(endpoint string, reg *agents.Registry) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // Long timeout for streaming
		},
		endpoint: endpoint,
		agents:   reg,
	}
}

// Run invokes the agent for one turn and collects its streamed output.
func (c *Client) Run(ctx context.Context, req domain.RunRequest) (*domain.RunResult, error) {
	endpoint := c.endpointFor(req.AgentID)
	if endpoint == "" {
		return nil, fmt.Errorf("no endpoint configured for agent %s", req.AgentID)
	}

	var (
		result = &domain.RunResult{}
		done   bool
	)
	err := c.Invoke(ctx, endpoint, &req, func(event SSEEvent) error {
		if done {
			return nil
		}
		switch event.Event {
		case domain.SSEEventItem:
			var ev domain.Event
			if err := json.Unmarshal([]byte(event.Data), &ev); err != nil {
				return fmt.Errorf("failed to parse item event: %w", err)
			}
			if err := ev.Validate(); err != nil {
				return fmt.Errorf("invalid item event: %w", err)
			}
			result.NewEvents = append(result.NewEvents, ev)
		case domain.SSEEventDone:
			data, err := ParseDoneEvent(event.Data)
			if err != nil {
				return err
			}
			result.LastAgentID = data.LastAgentID
			result.ContinuationToken = data.ContinuationToken
			result.Ticket = data.Ticket
			done = true
		case domain.SSEEventError:
			data, err := ParseErrorEvent(event.Data)
			if err != nil {
				return err
			}
			return fmt.Errorf("agent error: %s", data.Message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !done {
		return nil, errors.New("agent stream ended without done event")
	}
	if result.LastAgentID == "" {
		result.LastAgentID = req.AgentID
	}
	return result, nil
}

func (c *Client) endpointFor(agentID string) string {
	if c.agents != nil {
		if def, ok := c.agents.Resolve(agentID); ok && def.Endpoint != "" {
			return def.Endpoint
		}
	}
	return c.endpoint
}

// Invoke calls an agent's /invoke endpoint and streams SSE events.
func (c *Client) Invoke(ctx context.Context, endpoint string, req *domain.RunRequest, handler EventHandler) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(endpoint, "/") + "/invoke"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("X-Conversation-ID", req.ConversationID)
	httpReq.Header.Set("X-Agent-ID", req.AgentID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to invoke agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("agent returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return c.parseSSE(resp.Body, handler)
}

// parseSSE parses an SSE stream and calls the handler for each event.
func (c *Client) parseSSE(reader io.Reader, handler EventHandler) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	var event SSEEvent

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line marks end of event
		if line == "" {
			if event.Event != "" || event.Data != "" {
				if err := handler(event); err != nil {
					return err
				}
				event = SSEEvent{}
			}
			continue
		}

		if strings.HasPrefix(line, "event:") {
			event.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if event.Data != "" {
				event.Data += "\n" + data
			} else {
				event.Data = data
			}
		}
		// Comments and other fields are ignored.
	}

	if event.Event != "" || event.Data != "" {
		if err := handler(event); err != nil {
			return err
		}
	}

	return scanner.Err()
}

// ParseDoneEvent parses a done event data.
func ParseDoneEvent(data string) (*domain.DoneEventData, error) {
	var done domain.DoneEventData
	if err := json.Unmarshal([]byte(data), &done); err != nil {
		return nil, fmt.Errorf("failed to parse done event: %w", err)
	}
	return &done, nil
}

// ParseErrorEvent parses an error event data.
func ParseErrorEvent(data string) (*domain.ErrorEventData, error) {
	var errEvt domain.ErrorEventData
	if err := json.Unmarshal([]byte(data), &errEvt); err != nil {
		return nil, fmt.Errorf("failed to parse error event: %w", err)
	}
	return &errEvt, nil
}

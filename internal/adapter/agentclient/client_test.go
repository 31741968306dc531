package agentclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xiaot623/docsagent/internal/agents"
	"github.com/xiaot623/docsagent/internal/domain"
)

func itemData(t *testing.T, ev domain.Event) string {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return string(b)
}

func TestClientRunCollectsStream(t *testing.T) {
	var gotHeaders http.Header
	var gotReq domain.RunRequest

	call := domain.NewHandoffCall("h1", "c1", "transfer_to_support_ticket_agent", json.RawMessage(`{}`))
	result := domain.NewHandoffResult("h2", "c1", "transfer_to_support_ticket_agent", json.RawMessage(`{"assistant":"support_ticket_agent"}`))
	msg := domain.NewMessage("m1", domain.RoleAssistant, "What's your email?")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/invoke" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		gotHeaders = r.Header.Clone()
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read body: %v", err)
		}
		if err := json.Unmarshal(body, &gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range []domain.Event{call, result, msg} {
			fmt.Fprintf(w, "event: item\ndata: %s\n\n", itemData(t, ev))
		}
		fmt.Fprint(w, ": keepalive\n\n")
		fmt.Fprint(w, "event: done\ndata: {\"last_agent_id\":\"support_ticket_agent\",\"continuation_token\":\"resp_7\",\"ticket\":{\"user_name\":\"Ada\"}}\n\n")
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)
	client.httpClient = server.Client()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := client.Run(ctx, domain.RunRequest{
		ConversationID:    "conv-1",
		AgentID:           "triage_agent",
		Input:             []domain.Event{domain.NewMessage("u1", domain.RoleUser, "ticket please")},
		ContinuationToken: "resp_6",
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if gotReq.ConversationID != "conv-1" || gotReq.ContinuationToken != "resp_6" || len(gotReq.Input) != 1 {
		t.Fatalf("unexpected request payload: %+v", gotReq)
	}
	if gotHeaders.Get("X-Conversation-ID") != "conv-1" {
		t.Fatalf("missing X-Conversation-ID header")
	}
	if gotHeaders.Get("X-Agent-ID") != "triage_agent" {
		t.Fatalf("missing X-Agent-ID header")
	}
	if len(res.NewEvents) != 3 {
		t.Fatalf("expected 3 events, got %d", len(res.NewEvents))
	}
	if !res.NewEvents[1].Equal(result) {
		t.Fatalf("unexpected event: %+v", res.NewEvents[1])
	}
	if res.LastAgentID != "support_ticket_agent" || res.ContinuationToken != "resp_7" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Ticket == nil || res.Ticket.UserName != "Ada" {
		t.Fatalf("unexpected ticket: %+v", res.Ticket)
	}
}

func TestClientRunErrorEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: error\ndata: {\"code\":\"model\",\"message\":\"rate limited\"}\n\n")
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil).Run(context.Background(), domain.RunRequest{AgentID: "triage_agent"})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("expected agent error, got %v", err)
	}
}

func TestClientRunRequiresDone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "event: item\ndata: %s\n\n", itemData(t, domain.NewMessage("m1", domain.RoleAssistant, "hi")))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil).Run(context.Background(), domain.RunRequest{AgentID: "triage_agent"})
	if err == nil {
		t.Fatalf("expected error for truncated stream")
	}
}

func TestClientRunRejectsInvalidItem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: item\ndata: {\"kind\":\"bogus\"}\n\n")
		fmt.Fprint(w, "event: done\ndata: {}\n\n")
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil).Run(context.Background(), domain.RunRequest{AgentID: "triage_agent"})
	if err == nil {
		t.Fatalf("expected error for invalid item")
	}
}

func TestClientRunStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, nil).Run(context.Background(), domain.RunRequest{AgentID: "triage_agent"})
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestEndpointForUsesAgentDefinition(t *testing.T) {
	reg, err := agents.New("triage_agent",
		domain.AgentDefinition{ID: "triage_agent", Endpoint: "http://triage:9000"},
		domain.AgentDefinition{ID: "support_ticket_agent"},
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	c := NewClient("http://default:8000", reg)
	if got := c.endpointFor("triage_agent"); got != "http://triage:9000" {
		t.Fatalf("unexpected endpoint %q", got)
	}
	if got := c.endpointFor("support_ticket_agent"); got != "http://default:8000" {
		t.Fatalf("unexpected endpoint %q", got)
	}
}

func TestParseSSEMultilineData(t *testing.T) {
	input := "event: item\n" +
		"data: first line\n" +
		"data: second line\n\n"

	var events []SSEEvent
	client := &Client{}
	if err := client.parseSSE(strings.NewReader(input), func(event SSEEvent) error {
		events = append(events, event)
		return nil
	}); err != nil {
		t.Fatalf("parseSSE failed: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Data != "first line\nsecond line" {
		t.Fatalf("unexpected data: %q", events[0].Data)
	}
}

func TestParseEventErrors(t *testing.T) {
	if _, err := ParseDoneEvent("nope"); err == nil {
		t.Fatalf("expected error for invalid done")
	}
	if _, err := ParseErrorEvent("nope"); err == nil {
		t.Fatalf("expected error for invalid error")
	}
}

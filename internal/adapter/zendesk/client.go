// Package zendesk creates support tickets through the Zendesk REST API.
package zendesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Client talks to one Zendesk account.
type Client struct {
	baseURL    string
	email      string
	apiToken   string
	httpClient *http.Client
}

// NewClient creates a client for https://<subdomain>.zendesk.com.
func NewClient(subdomain, email, apiToken string) *Client {
	return NewClientWithBaseURL(fmt.Sprintf("https://%s.zendesk.com", subdomain), email, apiToken)
}

// NewClientWithBaseURL creates a client against an explicit base URL.
func NewClientWithBaseURL(baseURL, email, apiToken string) *Client {
	return &Client{
		baseURL:  baseURL,
		email:    email,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Ticket is the subset of a Zendesk ticket the agent creates.
type Ticket struct {
	Subject        string
	Body           string
	RequesterName  string
	RequesterEmail string
}

type createRequest struct {
	Ticket ticketPayload `json:"ticket"`
}

type ticketPayload struct {
	Subject   string    `json:"subject"`
	Comment   comment   `json:"comment"`
	Requester requester `json:"requester"`
	Priority  string    `json:"priority"`
	Tags      []string  `json:"tags"`
}

type comment struct {
	Body string `json:"body"`
}

type requester struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type createResponse struct {
	Ticket struct {
		ID json.Number `json:"id"`
	} `json:"ticket"`
}

// CreateTicket creates a ticket and returns its id.
func (c *Client) CreateTicket(ctx context.Context, t Ticket) (string, error) {
	body, err := json.Marshal(createRequest{Ticket: ticketPayload{
		Subject:   t.Subject,
		Comment:   comment{Body: t.Body},
		Requester: requester{Name: t.RequesterName, Email: t.RequesterEmail},
		Priority:  "normal",
		Tags:      []string{"api_created", "docs_agent"},
	}})
	if err != nil {
		return "", fmt.Errorf("failed to marshal ticket: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/tickets.json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.email+"/token", c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call zendesk: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("zendesk returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var out createResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode zendesk response: %w", err)
	}
	if out.Ticket.ID == "" {
		return "", fmt.Errorf("zendesk response has no ticket id")
	}
	if _, err := strconv.ParseInt(out.Ticket.ID.String(), 10, 64); err != nil {
		return "", fmt.Errorf("unexpected zendesk ticket id %q", out.Ticket.ID)
	}
	return out.Ticket.ID.String(), nil
}

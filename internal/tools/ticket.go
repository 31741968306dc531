package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/xiaot623/docsagent/internal/adapter/zendesk"
	"github.com/xiaot623/docsagent/internal/config"
	"github.com/xiaot623/docsagent/internal/domain"
	"github.com/xiaot623/docsagent/internal/logx"
)

// CreateTicketToolName is the support ticket tool.
const CreateTicketToolName = "create_ticket"

// TicketCreator files a ticket in an external system.
type TicketCreator interface {
	CreateTicket(ctx context.Context, t zendesk.Ticket) (string, error)
}

// TicketTool creates support tickets and records them on the invocation.
type TicketTool struct {
	simulate   bool
	useZendesk bool
	creator    TicketCreator
	ticketNum  func() int
}

// NewTicketTool configures the tool from cfg. Zendesk is only used when it
// is enabled and all credentials are present.
func NewTicketTool(cfg config.ToolsConfig) *TicketTool {
	t := &TicketTool{
		simulate:   cfg.DisableZendesk,
		useZendesk: cfg.UseZendesk,
		ticketNum:  func() int { return 1000 + rand.IntN(9000) },
	}
	if cfg.ZendeskSubdomain != "" && cfg.ZendeskEmail != "" && cfg.ZendeskAPIToken != "" {
		t.creator = zendesk.NewClient(cfg.ZendeskSubdomain, cfg.ZendeskEmail, cfg.ZendeskAPIToken)
	}
	return t
}

// WithCreator replaces the external ticket system.
func (t *TicketTool) WithCreator(c TicketCreator) *TicketTool {
	t.creator = c
	return t
}

type ticketArgs struct {
	TicketName        string `json:"ticket_name"`
	TicketDescription string `json:"ticket_description"`
	UserName          string `json:"user_name"`
	UserEmail         string `json:"user_email"`
}

// Definition returns the tool definition.
func (t *TicketTool) Definition() Definition {
	str := func(desc string) map[string]any { return map[string]any{"type": "string", "description": desc} }
	return Definition{
		Spec: domain.ToolSpec{
			Name:        CreateTicketToolName,
			Description: "Create a support ticket with the provided information.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"ticket_name":        str("Short title of the issue."),
					"ticket_description": str("Detailed description of the issue."),
					"user_name":          str("Name of the user."),
					"user_email":         str("Email address of the user."),
				},
				"required": []string{"ticket_name", "ticket_description", "user_name", "user_email"},
			},
		},
		Exec: t.execute,
	}
}

func (t *TicketTool) execute(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var args ticketArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	inv := InvocationFrom(ctx)
	var transcript []string
	if inv != nil {
		transcript = inv.Transcript
	}

	var (
		ticketID string
		label    = "Support ticket"
	)
	switch {
	case t.simulate:
		ticketID = fmt.Sprintf("SIMULATED-%d", t.ticketNum())
		label = "[SIMULATED] Support ticket"
	case t.useZendesk:
		if t.creator == nil {
			return domain.StringOutput("Zendesk environment variables missing. Ticket not created."), nil
		}
		id, err := t.creator.CreateTicket(ctx, zendesk.Ticket{
			Subject:        args.TicketName,
			Body:           args.TicketDescription + "\n\nW&B Agent Chat History:\n" + strings.Join(transcript, "\n"),
			RequesterName:  args.UserName,
			RequesterEmail: args.UserEmail,
		})
		if err != nil {
			logx.Warn().Err(err).Msg("zendesk ticket creation failed")
			return domain.StringOutput("Failed to create Zendesk ticket: " + err.Error()), nil
		}
		ticketID = id
		label = "Zendesk ticket"
	default:
		ticketID = fmt.Sprintf("TICKET-%d", t.ticketNum())
	}

	if inv != nil {
		inv.RecordTicket(domain.TicketFields{
			UserName:          args.UserName,
			UserEmail:         args.UserEmail,
			TicketID:          ticketID,
			TicketName:        args.TicketName,
			TicketDescription: args.TicketDescription,
		})
	}

	msg := fmt.Sprintf("%s %s created for %s (email: %s)\nTitle: %s\nDescription: %s",
		label, ticketID, args.UserName, args.UserEmail, args.TicketName, args.TicketDescription)
	return domain.StringOutput(msg), nil
}

package tools

import (
	"context"
	"sync"

	"github.com/xiaot623/docsagent/internal/domain"
)

// Invocation is the per-turn context a tool executes in. Tools read the
// conversation from it and record side effects on it.
type Invocation struct {
	ConversationID string
	AgentID        string
	// Transcript is the prior conversation, oldest first.
	Transcript []string

	mu     sync.Mutex
	ticket *domain.TicketFields
}

type invocationKey struct{}

// WithInvocation attaches inv to ctx.
func WithInvocation(ctx context.Context, inv *Invocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, inv)
}

// InvocationFrom returns the invocation attached to ctx, or nil.
func InvocationFrom(ctx context.Context) *Invocation {
	inv, _ := ctx.Value(invocationKey{}).(*Invocation)
	return inv
}

// RecordTicket merges ticket fields into the invocation's side effects.
func (inv *Invocation) RecordTicket(fields domain.TicketFields) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.ticket == nil {
		inv.ticket = &domain.TicketFields{}
	}
	inv.ticket.Apply(fields)
}

// Ticket returns the recorded ticket fields, or nil when no ticket was
// touched.
func (inv *Invocation) Ticket() *domain.TicketFields {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.ticket == nil {
		return nil
	}
	out := *inv.ticket
	return &out
}

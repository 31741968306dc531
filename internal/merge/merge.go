// Package merge folds one turn's segmented events into a conversation state.
package merge

import (
	"sort"

	"github.com/xiaot623/docsagent/internal/domain"
	"github.com/xiaot623/docsagent/internal/segment"
)

// Update is everything a turn contributes to the stored state.
type Update struct {
	Segmentation      segment.Segmentation
	ActiveAgent       string
	ContinuationToken string
	Ticket            *domain.TicketFields
}

// Apply returns prior with the update merged in. prior is not modified.
// Events already stored for an agent are skipped: by id when the event has
// one, by structural equality otherwise. Applying the same update twice
// yields the same state as applying it once.
func Apply(prior *domain.ConversationState, u Update) *domain.ConversationState {
	next := prior.Clone()

	for _, agent := range agentsOf(u.Segmentation) {
		history, ok := next.AgentHistories[agent]
		if !ok {
			history = []domain.Event{}
		}
		next.AgentHistories[agent] = appendNew(history, u.Segmentation.Owners[agent])
	}

	next.ActiveAgentID = u.ActiveAgent
	next.AgentContinuationTokens[u.ActiveAgent] = u.ContinuationToken
	if u.Ticket != nil {
		next.TicketFields.Apply(*u.Ticket)
	}
	return next
}

func appendNew(history, events []domain.Event) []domain.Event {
	ids := make(map[string]struct{}, len(history))
	for _, ev := range history {
		if ev.ID != "" {
			ids[ev.ID] = struct{}{}
		}
	}

	for _, ev := range events {
		if ev.ID != "" {
			if _, dup := ids[ev.ID]; dup {
				continue
			}
			ids[ev.ID] = struct{}{}
		} else if contains(history, ev) {
			continue
		}
		history = append(history, ev)
	}
	return history
}

func contains(history []domain.Event, ev domain.Event) bool {
	for _, h := range history {
		if h.ID == "" && h.Equal(ev) {
			return true
		}
	}
	return false
}

// agentsOf returns the agents of a segmentation in a stable order, also when
// Order was not filled in by the caller.
func agentsOf(seg segment.Segmentation) []string {
	if len(seg.Order) == len(seg.Owners) {
		return seg.Order
	}
	seen := make(map[string]struct{}, len(seg.Owners))
	out := make([]string, 0, len(seg.Owners))
	for _, agent := range seg.Order {
		if _, ok := seg.Owners[agent]; ok {
			seen[agent] = struct{}{}
			out = append(out, agent)
		}
	}
	rest := make([]string, 0)
	for agent := range seg.Owners {
		if _, ok := seen[agent]; !ok {
			rest = append(rest, agent)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

package llm

import (
	"encoding/json"

	"github.com/xiaot623/docsagent/internal/domain"
)

// pairedTranscript drops calls without a result and results without a
// call. Providers reject either.
func pairedTranscript(events []domain.Event) []domain.Event {
	calls := make(map[string]bool)
	results := make(map[string]bool)
	for _, ev := range events {
		switch {
		case ev.Kind.IsCall():
			calls[ev.CallID] = true
		case ev.Kind.IsResult():
			results[ev.CallID] = true
		}
	}

	out := make([]domain.Event, 0, len(events))
	for _, ev := range events {
		if ev.Kind.IsCall() && !results[ev.CallID] {
			continue
		}
		if ev.Kind.IsResult() && !calls[ev.CallID] {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// argumentsObject decodes tool arguments into a map, treating anything
// that is not an object as empty.
func argumentsObject(raw json.RawMessage) map[string]any {
	args := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &args)
	}
	return args
}

func argumentsString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

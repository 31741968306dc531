// Package domain defines the core domain models for the docs agent backend.
package domain

// EventKind identifies the variant of an Event.
type EventKind string

const (
	EventKindMessage       EventKind = "message"
	EventKindToolCall      EventKind = "tool_call"
	EventKindToolResult    EventKind = "tool_result"
	EventKindHandoffCall   EventKind = "handoff_call"
	EventKindHandoffResult EventKind = "handoff_result"
)

// Valid reports whether k is one of the known event kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventKindMessage, EventKindToolCall, EventKindToolResult, EventKindHandoffCall, EventKindHandoffResult:
		return true
	}
	return false
}

// IsCall reports whether k carries a CallPayload.
func (k EventKind) IsCall() bool {
	return k == EventKindToolCall || k == EventKindHandoffCall
}

// IsResult reports whether k carries a ResultPayload.
func (k EventKind) IsResult() bool {
	return k == EventKindToolResult || k == EventKindHandoffResult
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TurnStage names a step of the turn state machine.
type TurnStage string

const (
	StageLoad     TurnStage = "LOAD"
	StageDispatch TurnStage = "DISPATCH"
	StageSegment  TurnStage = "SEGMENT"
	StageMerge    TurnStage = "MERGE"
	StagePersist  TurnStage = "PERSIST"
	StageRespond  TurnStage = "RESPOND"
	StageFail     TurnStage = "FAIL"
)

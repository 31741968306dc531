// Package policy gates tool execution with an OPA/Rego policy.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decision values a policy may return.
const (
	Allow = "allow"
	Block = "block"
)

// Input is what a policy sees for one tool call.
type Input struct {
	AgentID        string         `json:"agent_id"`
	ConversationID string         `json:"conversation_id"`
	ToolName       string         `json:"tool_name"`
	Args           map[string]any `json:"args"`
}

// Result is the outcome of an evaluation.
type Result struct {
	Decision string
	Reason   string
}

// Allowed reports whether the call may run.
func (r Result) Allowed() bool {
	return r.Decision != Block
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content. The
// module must define data.tool_policy.result as {"decision", "reason"}.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.tool_policy.result"),
		rego.Module("tool_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// NewDefaultEngine compiles DefaultPolicy.
func NewDefaultEngine(ctx context.Context) (*Engine, error) {
	return NewEngine(ctx, DefaultPolicy)
}

// Evaluate checks the tool policy for one call. A policy that produces no
// result allows the call.
func (e *Engine) Evaluate(ctx context.Context, in Input) (Result, error) {
	if in.Args == nil {
		in.Args = map[string]any{}
	}
	input := map[string]any{
		"agent_id":        in.AgentID,
		"conversation_id": in.ConversationID,
		"tool_name":       in.ToolName,
		"args":            in.Args,
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Result{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Result{Decision: Allow, Reason: "default"}, nil
	}

	switch val := results[0].Expressions[0].Value.(type) {
	case string:
		return Result{Decision: val}, nil
	case map[string]any:
		decision, _ := val["decision"].(string)
		reason, _ := val["reason"].(string)
		if decision == "" {
			decision = Allow
		}
		return Result{Decision: decision, Reason: reason}, nil
	default:
		return Result{}, fmt.Errorf("unexpected policy result type %T", val)
	}
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package tool_policy

default decision = "allow"
default reason = ""

# A ticket needs a reachable user.
decision = "block" {
	input.tool_name == "create_ticket"
	not contains(object.get(input.args, "user_email", ""), "@")
}

reason = "create_ticket requires a valid user_email" {
	decision == "block"
	input.tool_name == "create_ticket"
}

result = {"decision": decision, "reason": reason}
`

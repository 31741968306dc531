// Package runner executes agents for one turn.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"

	"github.com/xiaot623/docsagent/internal/adapter/llm"
	"github.com/xiaot623/docsagent/internal/agents"
	"github.com/xiaot623/docsagent/internal/domain"
	"github.com/xiaot623/docsagent/internal/logx"
	"github.com/xiaot623/docsagent/internal/policy"
	"github.com/xiaot623/docsagent/internal/telemetry"
	"github.com/xiaot623/docsagent/internal/tools"
)

const (
	defaultMaxSteps    = 10
	defaultToolTimeout = 60 * time.Second
)

var (
	// ErrUnknownAgent is returned when a run or hand-off names an agent the
	// registry does not know.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrMaxSteps is returned when an agent keeps calling tools past the
	// step budget.
	ErrMaxSteps = errors.New("step budget exhausted")
)

// ModelSource resolves a provider name to a chat model.
type ModelSource interface {
	Model(ctx context.Context, provider string) (llm.ChatModel, error)
}

// PolicyEvaluator decides whether a tool call may run.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, in policy.Input) (policy.Result, error)
}

// Options tunes a Local runner.
type Options struct {
	MaxSteps    int
	ToolTimeout time.Duration
	// Policy is optional. Without it every tool call runs.
	Policy PolicyEvaluator
}

// Local runs agents in process against a chat model.
type Local struct {
	agents      *agents.Registry
	models      ModelSource
	tools       *tools.Registry
	policy      PolicyEvaluator
	maxSteps    int
	toolTimeout time.Duration
}

// NewLocal creates a local runner.
func NewLocal(reg *agents.Registry, models ModelSource, toolReg *tools.Registry, opts Options) *Local {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = defaultMaxSteps
	}
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = defaultToolTimeout
	}
	return &Local{
		agents:      reg,
		models:      models,
		tools:       toolReg,
		policy:      opts.Policy,
		maxSteps:    opts.MaxSteps,
		toolTimeout: opts.ToolTimeout,
	}
}

// run is the mutable state of one Run call.
type run struct {
	agent      domain.AgentDefinition
	transcript []domain.Event
	newEvents  []domain.Event
	token      string
	inv        *tools.Invocation
}

func (r *run) emit(ev domain.Event) {
	r.transcript = append(r.transcript, ev)
	r.newEvents = append(r.newEvents, ev)
}

func (r *run) result() *domain.RunResult {
	return &domain.RunResult{
		NewEvents:         r.newEvents,
		LastAgentID:       r.agent.ID,
		ContinuationToken: r.token,
		Ticket:            r.inv.Ticket(),
	}
}

// Run drives the agent loop until the model answers without tool calls, a
// stop-at tool runs, or the step budget is spent.
func (l *Local) Run(ctx context.Context, req domain.RunRequest) (*domain.RunResult, error) {
	agent, ok := l.agents.Resolve(req.AgentID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, req.AgentID)
	}

	r := &run{
		agent:      agent,
		transcript: slices.Clone(req.Input),
		inv:        &tools.Invocation{ConversationID: req.ConversationID, AgentID: agent.ID},
	}
	ctx = tools.WithInvocation(ctx, r.inv)

	for step := 0; step < l.maxSteps; step++ {
		resp, err := l.complete(ctx, r)
		if err != nil {
			return nil, err
		}
		if resp.ID != "" {
			r.token = resp.ID
		}
		if resp.Text != "" {
			r.emit(domain.NewMessage(newID("msg"), domain.RoleAssistant, resp.Text))
		}
		if len(resp.ToolCalls) == 0 {
			return r.result(), nil
		}

		stop, err := l.handleCalls(ctx, req.ConversationID, r, resp.ToolCalls)
		if err != nil {
			return nil, err
		}
		if stop {
			return r.result(), nil
		}
	}
	return nil, fmt.Errorf("%w: agent %s used %d steps", ErrMaxSteps, r.agent.ID, l.maxSteps)
}

func (l *Local) complete(ctx context.Context, r *run) (*llm.Response, error) {
	model, err := l.models.Model(ctx, r.agent.Model.Provider)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", r.agent.ID, err)
	}
	specs, err := l.toolSpecs(r.agent)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", r.agent.ID, err)
	}

	ctx, span := telemetry.StartModelSpan(ctx, r.agent.ID, r.agent.Model.Provider, r.agent.Model.Name)
	defer span.End()

	resp, err := model.Complete(ctx, &llm.Request{
		Model:        r.agent.Model.Name,
		Instructions: r.agent.Instructions,
		Transcript:   r.transcript,
		Tools:        specs,
		Temperature:  r.agent.Model.Temperature,
		MaxTokens:    r.agent.Model.MaxTokens,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("agent %s: %w", r.agent.ID, err)
	}
	return resp, nil
}

func (l *Local) toolSpecs(agent domain.AgentDefinition) ([]domain.ToolSpec, error) {
	specs, err := l.tools.Specs(agent.Tools)
	if err != nil {
		return nil, err
	}
	for _, id := range agent.Handoffs {
		target, ok := l.agents.Resolve(id)
		if !ok {
			return nil, fmt.Errorf("%w: hand-off target %q", ErrUnknownAgent, id)
		}
		specs = append(specs, tools.HandoffSpec(target))
	}
	return specs, nil
}

// handleCalls executes one model step's tool calls in order. A hand-off
// ends the step: later calls were addressed to the previous agent and are
// dropped.
func (l *Local) handleCalls(ctx context.Context, conversationID string, r *run, calls []llm.ToolCall) (stop bool, err error) {
	for i, call := range calls {
		callID := call.ID
		if callID == "" {
			callID = newID("call")
		}

		if target, ok := tools.HandoffTarget(call.Name); ok && r.agent.CanHandoffTo(target) {
			next, ok := l.agents.Resolve(target)
			if !ok {
				return false, fmt.Errorf("%w: hand-off target %q", ErrUnknownAgent, target)
			}
			output, err := json.Marshal(tools.HandoffOutput(target))
			if err != nil {
				return false, err
			}
			r.emit(domain.NewHandoffCall(newID("ho"), callID, call.Name, call.Arguments))
			r.emit(domain.NewHandoffResult(newID("ho"), callID, call.Name, output))
			logx.Debug().
				Str("conversation_id", conversationID).
				Str("from", r.agent.ID).
				Str("to", target).
				Msg("agent hand-off")
			r.agent = next
			r.inv.AgentID = next.ID
			if skipped := len(calls) - i - 1; skipped > 0 {
				logx.Debug().Int("skipped", skipped).Msg("dropping tool calls after hand-off")
			}
			return false, nil
		}

		r.emit(domain.NewToolCall(newID("tc"), callID, call.Name, call.Arguments))
		output := l.execTool(ctx, conversationID, r, callID, call)
		r.emit(domain.NewToolResult(newID("tr"), callID, call.Name, output))

		if r.agent.StopsAt(call.Name) {
			stop = true
		}
	}
	return stop, nil
}

// execTool never fails the run: problems are reported to the model as the
// tool's output.
func (l *Local) execTool(ctx context.Context, conversationID string, r *run, callID string, call llm.ToolCall) json.RawMessage {
	if !slices.Contains(r.agent.Tools, call.Name) {
		return domain.StringOutput(fmt.Sprintf("Error: tool %s is not available to agent %s", call.Name, r.agent.ID))
	}

	ctx, span := telemetry.StartToolCallSpan(ctx, callID, call.Name)
	defer span.End()

	if l.policy != nil {
		args := map[string]any{}
		if len(call.Arguments) > 0 {
			_ = json.Unmarshal(call.Arguments, &args)
		}
		res, err := l.policy.Evaluate(ctx, policy.Input{
			AgentID:        r.agent.ID,
			ConversationID: conversationID,
			ToolName:       call.Name,
			Args:           args,
		})
		if err != nil {
			logx.Error().Err(err).Str("tool", call.Name).Msg("policy evaluation failed")
			return domain.StringOutput("Error: policy evaluation failed")
		}
		if !res.Allowed() {
			logx.Info().Str("tool", call.Name).Str("reason", res.Reason).Msg("tool call blocked by policy")
			span.SetStatus(codes.Error, "blocked")
			return domain.StringOutput("Tool call blocked: " + res.Reason)
		}
	}

	r.inv.Transcript = transcriptLines(r.transcript)
	toolCtx, cancel := context.WithTimeout(ctx, l.toolTimeout)
	defer cancel()

	out, err := l.tools.Execute(toolCtx, call.Name, call.Arguments)
	if err != nil {
		logx.Warn().Err(err).Str("tool", call.Name).Msg("tool execution failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.StringOutput("Error: " + err.Error())
	}
	return out
}

// transcriptLines renders the messages of a transcript for humans.
func transcriptLines(events []domain.Event) []string {
	var lines []string
	for _, ev := range events {
		if ev.Kind == domain.EventKindMessage {
			lines = append(lines, ev.Message.Role+": "+ev.Message.Text)
		}
	}
	return lines
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/xiaot623/docsagent/internal/domain"
	"github.com/xiaot623/docsagent/internal/errx"
	"github.com/xiaot623/docsagent/internal/logx"
	"github.com/xiaot623/docsagent/internal/merge"
	"github.com/xiaot623/docsagent/internal/segment"
	"github.com/xiaot623/docsagent/internal/telemetry"
)

var (
	// ErrMessageRequired rejects a turn without user text.
	ErrMessageRequired = errors.New("message is required")
	// ErrConversationIDRequired rejects state lookups without an id.
	ErrConversationIDRequired = errors.New("conversation_id is required")
	// ErrRunnerFailed marks turns that failed while agents were running.
	ErrRunnerFailed = errors.New("agent run failed")
	// ErrNoAnswer marks turns whose last event carries no answer.
	ErrNoAnswer = errors.New("turn produced no answer")
)

// turn carries one request through the stages.
type turn struct {
	conversationID string
	stage          domain.TurnStage
	startAgent     string
	state          *domain.ConversationState
	userEvent      domain.Event
	result         *domain.RunResult
	seg            segment.Segmentation
	next           *domain.ConversationState
	saved          bool
}

func (t *turn) enter(stage domain.TurnStage) {
	t.stage = stage
	agent := t.startAgent
	if t.next != nil {
		agent = t.next.ActiveAgentID
	}
	logx.Debug().
		Str("conversation_id", t.conversationID).
		Str("agent", agent).
		Str("state", string(stage)).
		Msg("turn state")
}

// HandleTurn runs one user message through LOAD, DISPATCH, SEGMENT, MERGE,
// PERSIST and RESPOND.
//
// Input errors are returned without a response. Every other failure
// returns both an error and a response with HasError set, so callers can
// still report the conversation id.
func (s *Service) HandleTurn(ctx context.Context, req domain.TurnRequest) (*domain.TurnResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, errx.InvalidInput(ErrMessageRequired)
	}

	t := &turn{conversationID: req.ConversationID}
	if t.conversationID == "" {
		t.conversationID = uuid.NewString()
	}
	if req.Feedback != "" {
		logx.Info().Str("conversation_id", t.conversationID).Str("feedback", req.Feedback).Msg("feedback received")
	}

	if s.sem != nil {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return s.fail(t, errx.New(err, http.StatusServiceUnavailable, "turn was cancelled while queued"))
		}
		defer s.sem.Release(1)
	}
	if s.locks != nil {
		unlock := s.locks.Lock(t.conversationID)
		defer unlock()
	}

	start := time.Now()
	s.count(ctx, func(m *telemetry.Metrics) metric.Int64Counter { return m.TurnsStarted }, 1)
	defer func() {
		if s.metrics != nil {
			s.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
		}
	}()

	t.enter(domain.StageLoad)
	t.state = s.loadState(ctx, t.conversationID)
	t.startAgent = t.state.ActiveAgentID

	ctx, span := telemetry.StartTurnSpan(ctx, t.conversationID, t.startAgent)
	defer span.End()

	resp, err := s.runTurn(ctx, t, req.Message)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return s.fail(t, err)
	}
	span.SetAttributes(
		attribute.String("agent.final", resp.ActiveAgent),
		attribute.Bool("state.saved", resp.StateSaved),
	)
	s.count(ctx, func(m *telemetry.Metrics) metric.Int64Counter { return m.TurnsCompleted }, 1)
	return resp, nil
}

func (s *Service) runTurn(ctx context.Context, t *turn, message string) (*domain.TurnResponse, error) {
	t.enter(domain.StageDispatch)
	if err := s.dispatch(ctx, t, message); err != nil {
		return nil, err
	}

	t.enter(domain.StageSegment)
	turnEvents := make([]domain.Event, 0, len(t.result.NewEvents)+1)
	turnEvents = append(turnEvents, t.userEvent)
	turnEvents = append(turnEvents, t.result.NewEvents...)
	t.seg = segment.Segment(turnEvents, t.startAgent)
	s.reportSegmentation(ctx, t)

	t.enter(domain.StageMerge)
	t.next = merge.Apply(t.state, merge.Update{
		Segmentation:      t.seg,
		ActiveAgent:       s.finalAgent(t),
		ContinuationToken: t.result.ContinuationToken,
		Ticket:            t.result.Ticket,
	})

	t.enter(domain.StagePersist)
	s.persist(ctx, t)

	t.enter(domain.StageRespond)
	answer, err := extractAnswer(t.result.NewEvents)
	if err != nil {
		return nil, errx.New(err, http.StatusInternalServerError, "agent produced no answer")
	}
	return &domain.TurnResponse{
		Answer:         answer,
		ConversationID: t.conversationID,
		ActiveAgent:    t.next.ActiveAgentID,
		StateSaved:     t.saved,
	}, nil
}

// dispatch calls the runner with the active agent's history plus the new
// message. Nothing is persisted when it fails.
func (s *Service) dispatch(ctx context.Context, t *turn, message string) error {
	t.userEvent = domain.NewMessage("msg_"+uuid.NewString(), domain.RoleUser, message)
	input := slices.Clone(t.state.History(t.startAgent))
	input = append(input, t.userEvent)

	runCtx := ctx
	if s.agentTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.agentTimeout)
		defer cancel()
	}

	res, err := s.runner.Run(runCtx, domain.RunRequest{
		ConversationID:    t.conversationID,
		AgentID:           t.startAgent,
		Input:             input,
		ContinuationToken: t.state.ContinuationToken(t.startAgent),
	})
	if err == nil {
		err = runCtx.Err()
	}
	if err != nil {
		return errx.Runner(fmt.Errorf("%w: agent %s: %w", ErrRunnerFailed, t.startAgent, err))
	}
	if res == nil {
		return errx.Runner(fmt.Errorf("%w: runner returned no result", ErrRunnerFailed))
	}
	t.result = res
	return nil
}

// finalAgent prefers the runner's report and falls back to the segmenter
// when the runner names nothing or an agent this deployment doesn't know.
func (s *Service) finalAgent(t *turn) string {
	reported := t.result.LastAgentID
	if reported == "" {
		return t.seg.FinalAgent
	}
	if _, ok := s.agents.Resolve(reported); !ok {
		logx.Warn().
			Str("conversation_id", t.conversationID).
			Str("last_agent_id", reported).
			Msg("runner reported an unknown agent, using segmented owner")
		return t.seg.FinalAgent
	}
	if reported != t.seg.FinalAgent {
		logx.Warn().
			Str("conversation_id", t.conversationID).
			Str("last_agent_id", reported).
			Str("segmented_agent", t.seg.FinalAgent).
			Msg("runner and segmenter disagree on the final agent")
	}
	return reported
}

func (s *Service) reportSegmentation(ctx context.Context, t *turn) {
	for _, a := range t.seg.Anomalies {
		logx.Warn().
			Str("conversation_id", t.conversationID).
			Str("kind", string(a.Kind)).
			Int("index", a.Index).
			Str("call_id", a.CallID).
			Str("agent", a.Agent).
			Str("detail", a.Detail).
			Msg("segmentation anomaly")
	}
	s.count(ctx, func(m *telemetry.Metrics) metric.Int64Counter { return m.Anomalies }, int64(len(t.seg.Anomalies)))
	s.count(ctx, func(m *telemetry.Metrics) metric.Int64Counter { return m.Handoffs }, int64(len(t.seg.Transfers)))
}

// persist saves the merged state. A failed save is logged and reported in
// the response; it does not fail the turn.
func (s *Service) persist(ctx context.Context, t *turn) {
	if err := s.store.Save(ctx, t.next); err != nil {
		logx.Error().Err(err).Str("conversation_id", t.conversationID).Msg("failed to save conversation state")
		s.count(ctx, func(m *telemetry.Metrics) metric.Int64Counter { return m.TurnsUnsaved }, 1)
		t.saved = false
	} else {
		t.saved = true
	}

	if s.publisher == nil {
		return
	}
	ev := domain.TurnCompleted{
		ConversationID: t.conversationID,
		StartAgent:     t.startAgent,
		FinalAgent:     t.next.ActiveAgentID,
		Handoffs:       len(t.seg.Transfers),
		Anomalies:      len(t.seg.Anomalies),
		StateSaved:     t.saved,
		Ts:             time.Now().UnixMilli(),
	}
	if err := s.publisher.PublishTurnCompleted(ctx, ev); err != nil {
		logx.Warn().Err(err).Str("conversation_id", t.conversationID).Msg("failed to publish turn event")
	}
}

func (s *Service) fail(t *turn, err error) (*domain.TurnResponse, error) {
	logx.Error().
		Err(err).
		Str("conversation_id", t.conversationID).
		Str("stage", string(t.stage)).
		Msg("turn failed")
	if s.metrics != nil {
		s.metrics.TurnsFailed.Add(context.Background(), 1)
	}
	t.enter(domain.StageFail)
	return &domain.TurnResponse{
		ConversationID: t.conversationID,
		HasError:       true,
		ErrorMessage:   err.Error(),
		ActiveAgent:    t.startAgent,
	}, err
}

func (s *Service) count(ctx context.Context, pick func(*telemetry.Metrics) metric.Int64Counter, n int64) {
	if s.metrics == nil || n == 0 {
		return
	}
	pick(s.metrics).Add(ctx, n)
}

// extractAnswer returns the text of the turn's last event, which must be a
// message or a tool result.
func extractAnswer(events []domain.Event) (string, error) {
	if len(events) == 0 {
		return "", ErrNoAnswer
	}
	last := events[len(events)-1]
	text, ok := last.AnswerText()
	if !ok {
		return "", fmt.Errorf("%w: last event is %s", ErrNoAnswer, last.Kind)
	}
	return text, nil
}

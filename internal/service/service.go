// Package service implements the turn orchestrator.
package service

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/xiaot623/docsagent/internal/agents"
	"github.com/xiaot623/docsagent/internal/domain"
	"github.com/xiaot623/docsagent/internal/repository"
	"github.com/xiaot623/docsagent/internal/telemetry"
)

// Runner executes agents for one turn.
type Runner interface {
	Run(ctx context.Context, req domain.RunRequest) (*domain.RunResult, error)
}

// EventPublisher receives a TurnCompleted after every persisted turn.
type EventPublisher interface {
	PublishTurnCompleted(ctx context.Context, ev domain.TurnCompleted) error
}

// Options configures a Service. Zero values disable the optional parts.
type Options struct {
	AgentTimeout       time.Duration
	SerializeTurns     bool
	MaxConcurrentTurns int64
	Publisher          EventPublisher
	Metrics            *telemetry.Metrics
}

// Service handles business logic.
type Service struct {
	store        repository.StateStore
	agents       *agents.Registry
	runner       Runner
	publisher    EventPublisher
	metrics      *telemetry.Metrics
	locks        *keyedMutex
	sem          *semaphore.Weighted
	agentTimeout time.Duration
}

// New creates a new service.
func New(store repository.StateStore, reg *agents.Registry, runner Runner, opts Options) *Service {
	s := &Service{
		store:        store,
		agents:       reg,
		runner:       runner,
		publisher:    opts.Publisher,
		metrics:      opts.Metrics,
		agentTimeout: opts.AgentTimeout,
	}
	if opts.SerializeTurns {
		s.locks = newKeyedMutex()
	}
	if opts.MaxConcurrentTurns > 0 {
		s.sem = semaphore.NewWeighted(opts.MaxConcurrentTurns)
	}
	return s
}

// ListAgents returns the registered agent definitions.
func (s *Service) ListAgents() []domain.AgentDefinition {
	return s.agents.List()
}

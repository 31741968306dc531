// Package nats publishes turn lifecycle events to NATS JetStream.
package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/xiaot623/docsagent/internal/domain"
	"github.com/xiaot623/docsagent/internal/logx"
)

const (
	streamName = "DOCSAGENT"
	// SubjectTurnCompleted carries one TurnCompleted per persisted turn.
	SubjectTurnCompleted = "docsagent.turns.completed"
)

// Publisher implements the turn event sink using NATS JetStream.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes a connection to NATS and ensures the JetStream stream exists.
func Connect(ctx context.Context, url string) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("docsagent"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"docsagent.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	logx.Info().Str("url", url).Str("stream", streamName).Msg("nats connected")
	return &Publisher{nc: nc, js: js}, nil
}

// PublishTurnCompleted publishes a TurnCompleted event.
func (p *Publisher) PublishTurnCompleted(ctx context.Context, ev domain.TurnCompleted) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal turn event: %w", err)
	}
	if _, err := p.js.Publish(ctx, SubjectTurnCompleted, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", SubjectTurnCompleted, err)
	}
	return nil
}

// Conn exposes the underlying connection.
func (p *Publisher) Conn() *nats.Conn {
	return p.nc
}

// Close shuts down the NATS connection.
func (p *Publisher) Close() error {
	p.nc.Close()
	return nil
}

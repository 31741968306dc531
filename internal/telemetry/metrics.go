// Package telemetry wires OpenTelemetry metrics and traces.
package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "docsagent"

// Metrics holds all turn metric instruments.
type Metrics struct {
	TurnsStarted   metric.Int64Counter
	TurnsCompleted metric.Int64Counter
	TurnsFailed    metric.Int64Counter
	TurnsUnsaved   metric.Int64Counter
	Handoffs       metric.Int64Counter
	Anomalies      metric.Int64Counter
	TurnDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithMeter(otel.Meter(meterName))
}

// NewMetricsWithMeter creates all metric instruments on meter.
func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.TurnsStarted, err = meter.Int64Counter("docsagent.turns.started",
		metric.WithDescription("Number of turns started"))
	if err != nil {
		return nil, err
	}

	m.TurnsCompleted, err = meter.Int64Counter("docsagent.turns.completed",
		metric.WithDescription("Number of turns answered"))
	if err != nil {
		return nil, err
	}

	m.TurnsFailed, err = meter.Int64Counter("docsagent.turns.failed",
		metric.WithDescription("Number of turns failed"))
	if err != nil {
		return nil, err
	}

	m.TurnsUnsaved, err = meter.Int64Counter("docsagent.turns.unsaved",
		metric.WithDescription("Number of answered turns whose state was not persisted"))
	if err != nil {
		return nil, err
	}

	m.Handoffs, err = meter.Int64Counter("docsagent.handoffs",
		metric.WithDescription("Number of resolved agent hand-offs"))
	if err != nil {
		return nil, err
	}

	m.Anomalies, err = meter.Int64Counter("docsagent.segment.anomalies",
		metric.WithDescription("Number of segmentation anomalies"))
	if err != nil {
		return nil, err
	}

	m.TurnDuration, err = meter.Float64Histogram("docsagent.turn.duration_seconds",
		metric.WithDescription("Turn duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "docsagent"

// StartTurnSpan starts a span for one conversation turn.
func StartTurnSpan(ctx context.Context, conversationID, agentID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "turn",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("agent.start", agentID),
		),
	)
}

// StartModelSpan starts a span for one model call.
func StartModelSpan(ctx context.Context, agentID, provider, model string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "model",
		trace.WithAttributes(
			attribute.String("agent.id", agentID),
			attribute.String("model.provider", provider),
			attribute.String("model.name", model),
		),
	)
}

// StartToolCallSpan starts a span for a tool call within a run.
func StartToolCallSpan(ctx context.Context, callID, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("toolcall.id", callID),
			attribute.String("toolcall.tool", tool),
		),
	)
}

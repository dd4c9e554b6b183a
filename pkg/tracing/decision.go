package tracing

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"notifilter/internal/events"
)

const engineTracerName = "notifilter-engine"

// StartDecisionSpan opens the span covering one filter decision.
func StartDecisionSpan(ctx context.Context, event events.NotificationEvent, fc events.FilterContext) (context.Context, trace.Span) {
	return Tracer(engineTracerName).Start(ctx, "engine.evaluate",
		trace.WithAttributes(
			attribute.String("event.id", event.ID),
			attribute.String("event.key", event.EventKey()),
			attribute.String("filter.team_id", fc.TeamID),
			attribute.String("filter.channel_id", fc.ChannelID),
		),
	)
}

// EndDecisionSpan records the outcome on span and ends it. A non-nil err marks
// the span failed even though the decision itself fell back to allow.
func EndDecisionSpan(span trace.Span, decision events.FilterDecision, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation failed")
	}
	span.SetAttributes(
		attribute.String("filter.action", string(decision.Action)),
		attribute.Bool("filter.should_process", decision.ShouldProcess),
		attribute.Float64("filter.confidence", decision.Confidence),
		attribute.String("filter.applied_rules", strings.Join(decision.AppliedRules, ",")),
	)
	span.End()
}

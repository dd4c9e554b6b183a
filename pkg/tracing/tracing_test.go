package tracing

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"notifilter/internal/config"
	"notifilter/internal/events"
)

func recordDecision(t *testing.T, decision events.FilterDecision, err error) sdktrace.ReadOnlySpan {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := tp.Tracer(engineTracerName).Start(context.Background(), "engine.evaluate")
	EndDecisionSpan(span, decision, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	return spans[0]
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestEndDecisionSpan(t *testing.T) {
	decision := events.NewDecision(events.ActionBlock, "draft PR", 0.9, "filter_draft_prs")

	span := recordDecision(t, decision, nil)

	got := attrs(span)
	assert.Equal(t, "block", got["filter.action"].AsString())
	assert.False(t, got["filter.should_process"].AsBool())
	assert.Equal(t, "filter_draft_prs", got["filter.applied_rules"].AsString())
	assert.Equal(t, codes.Unset, span.Status().Code)
}

func TestEndDecisionSpan_Error(t *testing.T) {
	decision := events.NewDecision(events.ActionAllow, "fallback", 0.5, "error_fallback")

	span := recordDecision(t, decision, fmt.Errorf("registry unavailable"))

	assert.Equal(t, codes.Error, span.Status().Code)
	require.Len(t, span.Events(), 1)
	assert.Equal(t, "exception", span.Events()[0].Name)
}

func TestInit_Disabled(t *testing.T) {
	tp, err := Init(config.TracingConfig{}, "notifilter")
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		cfg  config.SamplerConfig
		want string
	}{
		{config.SamplerConfig{Type: "always_off"}, "AlwaysOffSampler"},
		{config.SamplerConfig{}, "AlwaysOnSampler"},
		{config.SamplerConfig{Type: "bogus"}, "AlwaysOnSampler"},
		{config.SamplerConfig{Type: "parentbased_always_on"}, "ParentBased{root:AlwaysOnSampler"},
	}

	for _, tt := range tests {
		t.Run(tt.cfg.Type, func(t *testing.T) {
			assert.Contains(t, newSampler(tt.cfg).Description(), tt.want)
		})
	}
}

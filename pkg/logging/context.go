package logging

import (
	"context"
)

const (
	TraceIDKey     = "trace_id"
	MessageIDKey   = "message_id"
	ServiceNameKey = "service_name"
	EventIDKey     = "event_id"
	TeamIDKey      = "team_id"
	RequestIDKey   = "request_id"
)

type ctxKey string

func with(ctx context.Context, key, value string) context.Context {
	return context.WithValue(ctx, ctxKey(key), value)
}

func get(ctx context.Context, key string) string {
	if v, ok := ctx.Value(ctxKey(key)).(string); ok {
		return v
	}
	return ""
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return with(ctx, TraceIDKey, traceID)
}

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return with(ctx, MessageIDKey, messageID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return with(ctx, ServiceNameKey, serviceName)
}

// WithEvent tags the context with the event being filtered and its team.
func WithEvent(ctx context.Context, eventID, teamID string) context.Context {
	if eventID != "" {
		ctx = with(ctx, EventIDKey, eventID)
	}
	if teamID != "" {
		ctx = with(ctx, TeamIDKey, teamID)
	}
	return ctx
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return with(ctx, RequestIDKey, requestID)
}

func GetServiceName(ctx context.Context) string { return get(ctx, ServiceNameKey) }
func GetRequestID(ctx context.Context) string   { return get(ctx, RequestIDKey) }

var logKeys = []string{TraceIDKey, MessageIDKey, RequestIDKey, EventIDKey, TeamIDKey, ServiceNameKey}

// GetLogFields returns the request-scoped fields present in ctx as
// alternating key/value pairs.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 2*len(logKeys))
	for _, key := range logKeys {
		if v := get(ctx, key); v != "" {
			fields = append(fields, key, v)
		}
	}
	return fields
}

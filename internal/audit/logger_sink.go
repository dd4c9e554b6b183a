package audit

import (
	"context"

	"notifilter/internal/events"
	"notifilter/internal/logger"
)

// LoggerSink writes decisions to the structured log: blocks at info, allows
// at debug and everything else at info.
type LoggerSink struct {
	logger logger.Logger
}

func NewLoggerSink(log logger.Logger) *LoggerSink {
	return &LoggerSink{logger: log}
}

func (s *LoggerSink) LogDecision(ctx context.Context, event events.NotificationEvent, fc events.FilterContext, decision events.FilterDecision) {
	fields := []interface{}{
		"event_id", event.ID,
		"source", event.Source,
		"event_type", event.EventType,
		"team_id", fc.TeamID,
		"channel_id", fc.ChannelID,
		"user_id", fc.UserID,
		"action", decision.Action,
		"should_process", decision.ShouldProcess,
		"confidence", decision.Confidence,
		"applied_rules", decision.AppliedRules,
		"reason", decision.Reason,
	}
	if decision.UrgencyOverride != nil {
		fields = append(fields, "urgency_override", *decision.UrgencyOverride)
	}

	switch decision.Action {
	case events.ActionBlock:
		s.logger.InfowCtx(ctx, "Notification blocked", fields...)
	case events.ActionAllow:
		s.logger.DebugwCtx(ctx, "Notification allowed", fields...)
	default:
		s.logger.InfowCtx(ctx, "Notification "+string(decision.Action), fields...)
	}
}

package audit

import (
	"context"
	"time"

	"notifilter/internal/broker"
	"notifilter/internal/events"
	"notifilter/internal/logger"
)

// KafkaSink publishes an audit Record per decision to a topic. Publishing
// failures are logged and never reach the caller.
type KafkaSink struct {
	producer broker.Producer
	topic    string
	timeout  time.Duration
	logger   logger.Logger
	now      func() time.Time
}

func NewKafkaSink(producer broker.Producer, topic string, log logger.Logger) *KafkaSink {
	return &KafkaSink{
		producer: producer,
		topic:    topic,
		timeout:  5 * time.Second,
		logger:   log,
		now:      time.Now,
	}
}

func (s *KafkaSink) LogDecision(ctx context.Context, event events.NotificationEvent, fc events.FilterContext, decision events.FilterDecision) {
	if s.producer == nil || s.topic == "" {
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	record := NewRecord(event, fc, decision, s.now())
	if err := s.producer.Publish(pubCtx, s.topic, event.ID, record); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to publish decision record",
			"event_id", event.ID,
			"topic", s.topic,
			"error", err,
		)
	}
}

package main

import (
	"context"
	"time"

	"notifilter/internal/broker"
	"notifilter/internal/events"
	"notifilter/internal/idempotency"
	"notifilter/internal/logger"
	"notifilter/pkg/errors"
	"notifilter/pkg/logging"
	"notifilter/pkg/metrics"
)

const (
	statusForwarded     = "forwarded"
	statusBlocked       = "blocked"
	statusDuplicate     = "duplicate"
	statusInvalid       = "invalid"
	statusPublishFailed = "publish_failed"
)

type evaluator interface {
	Evaluate(ctx context.Context, event events.NotificationEvent, fc events.FilterContext) events.FilterDecision
}

// FilteredEvent is what downstream delivery reads from the output topic.
type FilteredEvent struct {
	Event     events.NotificationEvent `json:"event"`
	Context   events.FilterContext     `json:"context"`
	Decision  events.FilterDecision    `json:"decision"`
	DecidedAt time.Time                `json:"decided_at"`
}

type pipeline struct {
	engine      evaluator
	guard       *idempotency.Guard
	producer    broker.Producer
	outputTopic string
	logger      logger.Logger
	now         func() time.Time
}

func newPipeline(eng evaluator, guard *idempotency.Guard, producer broker.Producer, outputTopic string, log logger.Logger) *pipeline {
	return &pipeline{
		engine:      eng,
		guard:       guard,
		producer:    producer,
		outputTopic: outputTopic,
		logger:      log,
		now:         time.Now,
	}
}

// handle is the broker.HandlerFunc for the input topic. Blocked events are
// acknowledged without output; publish failures are returned for retry.
func (p *pipeline) handle(ctx context.Context, msg broker.Message) error {
	var event events.NotificationEvent
	if err := msg.Decode(&event); err != nil {
		metrics.IncPipelineMessage(statusInvalid)
		return errors.Validationf("invalid notification event: %v", err)
	}
	if event.ID == "" || event.Source == "" {
		metrics.IncPipelineMessage(statusInvalid)
		return errors.Validationf("notification event requires id and source")
	}

	ctx = logging.WithMessageID(ctx, event.ID)

	if p.guard != nil && !p.guard.Claim(ctx, event.ID) {
		metrics.IncPipelineMessage(statusDuplicate)
		p.logger.DebugwCtx(ctx, "Skipping redelivered event", "event_id", event.ID)
		return nil
	}

	fc := events.ContextFromMetadata(event)
	decision := p.engine.Evaluate(ctx, event, fc)
	if !decision.ShouldProcess {
		metrics.IncPipelineMessage(statusBlocked)
		return nil
	}

	out := FilteredEvent{Event: event, Context: fc, Decision: decision, DecidedAt: p.now()}
	if err := p.producer.Publish(ctx, p.outputTopic, event.ID, out); err != nil {
		if p.guard != nil {
			p.guard.Release(ctx, event.ID)
		}
		metrics.IncPipelineMessage(statusPublishFailed)
		p.logger.ErrorwCtx(ctx, "Failed to publish filtered event",
			"error", err,
			"output_topic", p.outputTopic,
		)
		return err
	}

	metrics.IncPipelineMessage(statusForwarded)
	p.logger.DebugwCtx(ctx, "Event forwarded",
		"action", decision.Action,
		"output_topic", p.outputTopic,
	)
	return nil
}

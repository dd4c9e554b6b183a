package idempotency

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"notifilter/internal/constants"
	"notifilter/internal/logger"
	"notifilter/pkg/metrics"
	"notifilter/pkg/tracing"
)

const (
	ResultFirst     = "first"
	ResultDuplicate = "duplicate"
	ResultError     = "error"
	ResultSkipped   = "skipped"
)

// Guard remembers which events were already decided so a redelivered broker
// message is not fed to the noise detector twice. Store failures fail open.
type Guard struct {
	repo   Repository
	ttl    time.Duration
	logger logger.Logger
	now    func() time.Time
}

func NewGuard(repo Repository, ttl time.Duration, log logger.Logger) *Guard {
	if ttl <= 0 {
		ttl = time.Duration(constants.DefaultTTLSeconds) * time.Second
	}
	return &Guard{repo: repo, ttl: ttl, logger: log, now: time.Now}
}

func Key(eventID string) string {
	return constants.CacheKeyPrefixDelivery + eventID
}

// Claim reports whether this is the first delivery of eventID within the TTL.
// Events without an id cannot be tracked and are always claimed.
func (g *Guard) Claim(ctx context.Context, eventID string) bool {
	if eventID == "" {
		metrics.IncIdempotencyCheck(ResultSkipped)
		return true
	}

	ctx, span := tracing.Tracer("notifilter-idempotency").Start(ctx, "idempotency.claim")
	defer span.End()

	first, err := g.repo.SetNX(ctx, Key(eventID), g.now().Unix(), g.ttl)
	if err != nil {
		span.RecordError(err)
		metrics.IncIdempotencyCheck(ResultError)
		g.logger.WarnwCtx(ctx, "Idempotency check failed, treating event as new",
			"event_id", eventID,
			"error", err,
		)
		return true
	}

	result := ResultFirst
	if !first {
		result = ResultDuplicate
	}
	span.SetAttributes(attribute.String("idempotency.result", result))
	metrics.IncIdempotencyCheck(result)
	return first
}

// Release forgets eventID so a later redelivery is processed again.
func (g *Guard) Release(ctx context.Context, eventID string) {
	if eventID == "" {
		return
	}
	if err := g.repo.Delete(ctx, Key(eventID)); err != nil {
		g.logger.WarnwCtx(ctx, "Failed to release idempotency key",
			"event_id", eventID,
			"error", err,
		)
	}
}

//go:build integration

package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifilter/internal/logger"
	"notifilter/internal/testinfra"
)

func TestRedisGuard(t *testing.T) {
	client := testinfra.Redis(t)
	g := NewGuard(NewRedisRepository(client), time.Second, logger.NopLogger())
	ctx := context.Background()

	assert.True(t, g.Claim(ctx, "evt-1"))
	assert.False(t, g.Claim(ctx, "evt-1"))

	ttl, err := client.TTL(ctx, Key("evt-1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	g.Release(ctx, "evt-1")
	assert.True(t, g.Claim(ctx, "evt-1"))

	time.Sleep(1500 * time.Millisecond)
	assert.True(t, g.Claim(ctx, "evt-1"))
}

func TestRedisGuard_CanceledContextFailsOpen(t *testing.T) {
	client := testinfra.Redis(t)
	g := NewGuard(NewRedisRepository(client), time.Minute, logger.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.True(t, g.Claim(ctx, "evt-2"))
}

package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notifilter/internal/config"
)

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.RateLimitConfig{RPS: 2, CleanupInterval: 30})

	assert.Equal(t, 2.0, cfg.RPS)
	assert.Equal(t, DefaultConfig().Burst, cfg.Burst)
	assert.Equal(t, 30*time.Second, cfg.CleanupInterval)
	assert.Equal(t, DefaultConfig().MaxAge, cfg.MaxAge)
}

func TestMiddleware_LimitsPerClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewLimiter(Config{RPS: 0.001, Burst: 2, CleanupInterval: time.Minute, MaxAge: time.Minute})

	router := gin.New()
	router.Use(limiter.Middleware())
	router.GET("/api/v1/stats", func(c *gin.Context) { c.Status(http.StatusOK) })

	request := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
		req.RemoteAddr = ip + ":40000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, request("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, request("10.0.0.1").Code)

	limited := request("10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), "RATE_LIMIT_EXCEEDED")

	assert.Equal(t, http.StatusOK, request("10.0.0.2").Code)
}

func TestCleanup_DropsIdleClients(t *testing.T) {
	limiter := NewLimiter(Config{RPS: 1, Burst: 1, CleanupInterval: time.Minute, MaxAge: 10 * time.Minute})
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.Allow("a")
	now = now.Add(9 * time.Minute)
	limiter.Allow("b")
	now = now.Add(2 * time.Minute)

	assert.Equal(t, 1, limiter.Cleanup())
	_, ok := limiter.clients["b"]
	assert.True(t, ok)
}

func TestRun_StopsOnCancel(t *testing.T) {
	limiter := NewLimiter(Config{RPS: 1, Burst: 1, CleanupInterval: time.Millisecond, MaxAge: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		limiter.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("limiter did not stop")
	}
}

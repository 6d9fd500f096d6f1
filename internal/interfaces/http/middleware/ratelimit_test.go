package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	t.Run("allows requests within limit", func(t *testing.T) {
		limiter := NewRateLimiter(5, time.Minute)

		for i := 0; i < 5; i++ {
			assert.True(t, limiter.Allow("client1"), "request %d should be allowed", i+1)
		}
	})

	t.Run("blocks requests exceeding limit", func(t *testing.T) {
		limiter := NewRateLimiter(3, time.Minute)

		for i := 0; i < 3; i++ {
			assert.True(t, limiter.Allow("client2"))
		}

		assert.False(t, limiter.Allow("client2"))
	})

	t.Run("separate limits per key", func(t *testing.T) {
		limiter := NewRateLimiter(2, time.Minute)

		assert.True(t, limiter.Allow("tenantA:alice@example.com"))
		assert.True(t, limiter.Allow("tenantA:alice@example.com"))
		assert.False(t, limiter.Allow("tenantA:alice@example.com"))

		assert.True(t, limiter.Allow("tenantB:alice@example.com"))
	})

	t.Run("resets after window", func(t *testing.T) {
		limiter := NewRateLimiter(2, 50*time.Millisecond)

		assert.True(t, limiter.Allow("client3"))
		assert.True(t, limiter.Allow("client3"))
		assert.False(t, limiter.Allow("client3"))

		time.Sleep(60 * time.Millisecond)

		assert.True(t, limiter.Allow("client3"))
	})

	t.Run("remaining reports unused tokens", func(t *testing.T) {
		limiter := NewRateLimiter(3, time.Minute)

		assert.Equal(t, 3, limiter.Remaining("fresh"))
		limiter.Allow("fresh")
		assert.Equal(t, 2, limiter.Remaining("fresh"))
	})

	t.Run("retry after counts down to window reset", func(t *testing.T) {
		limiter := NewRateLimiter(1, time.Minute)

		assert.Equal(t, time.Duration(0), limiter.RetryAfter("unknown"))

		limiter.Allow("exhausted")
		retry := limiter.RetryAfter("exhausted")
		assert.Greater(t, retry, 50*time.Second)
		assert.LessOrEqual(t, retry, time.Minute)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("rejects with 429 and Retry-After once exhausted", func(t *testing.T) {
		engine := gin.New()
		limiter := NewRateLimiter(1, time.Minute)
		engine.Use(RateLimit(limiter))
		engine.GET("/", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})

		first := httptest.NewRecorder()
		engine.ServeHTTP(first, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))

		second := httptest.NewRecorder()
		engine.ServeHTTP(second, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.NotEmpty(t, second.Header().Get("Retry-After"))
	})

	t.Run("keys by tenant when present", func(t *testing.T) {
		engine := gin.New()
		limiter := NewRateLimiter(1, time.Minute)
		tenant := "11111111-1111-1111-1111-111111111111"
		engine.Use(func(c *gin.Context) {
			c.Set(TenantIDKey, c.GetHeader(TenantHeaderKey))
			c.Next()
		})
		engine.Use(RateLimit(limiter))
		engine.GET("/", func(c *gin.Context) {
			c.String(http.StatusOK, "ok")
		})

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(TenantHeaderKey, tenant)
		first := httptest.NewRecorder()
		engine.ServeHTTP(first, req)
		assert.Equal(t, http.StatusOK, first.Code)

		// Same IP under another tenant gets its own bucket
		other := httptest.NewRequest("GET", "/", nil)
		other.Header.Set(TenantHeaderKey, "22222222-2222-2222-2222-222222222222")
		second := httptest.NewRecorder()
		engine.ServeHTTP(second, other)
		assert.Equal(t, http.StatusOK, second.Code)
	})
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func tenantTestEngine(cfg TenantMiddlewareConfig, pre ...gin.HandlerFunc) *gin.Engine {
	engine := gin.New()
	for _, h := range pre {
		engine.Use(h)
	}
	engine.Use(TenantMiddlewareWithConfig(cfg))
	engine.GET("/resource", func(c *gin.Context) {
		tenantID, ok := GetTenantID(c)
		if !ok {
			c.String(http.StatusInternalServerError, "no tenant")
			return
		}
		c.String(http.StatusOK, tenantID.String())
	})
	engine.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	return engine
}

func TestTenantMiddleware(t *testing.T) {
	tenantID := uuid.New()

	t.Run("resolves tenant from JWT claims", func(t *testing.T) {
		engine := tenantTestEngine(TenantMiddlewareConfig{HeaderEnabled: false}, func(c *gin.Context) {
			c.Set(JWTTenantIDKey, tenantID.String())
			c.Next()
		})

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest("GET", "/resource", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tenantID.String(), w.Body.String())
	})

	t.Run("falls back to header when enabled", func(t *testing.T) {
		engine := tenantTestEngine(TenantMiddlewareConfig{HeaderEnabled: true})

		req := httptest.NewRequest("GET", "/resource", nil)
		req.Header.Set(TenantHeaderKey, tenantID.String())
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tenantID.String(), w.Body.String())
	})

	t.Run("ignores header when disabled", func(t *testing.T) {
		engine := tenantTestEngine(TenantMiddlewareConfig{HeaderEnabled: false})

		req := httptest.NewRequest("GET", "/resource", nil)
		req.Header.Set(TenantHeaderKey, tenantID.String())
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Tenant context is required")
	})

	t.Run("rejects missing tenant", func(t *testing.T) {
		engine := tenantTestEngine(TenantMiddlewareConfig{HeaderEnabled: true})

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest("GET", "/resource", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "BAD_REQUEST")
	})

	t.Run("rejects malformed tenant ID", func(t *testing.T) {
		engine := tenantTestEngine(TenantMiddlewareConfig{HeaderEnabled: true})

		req := httptest.NewRequest("GET", "/resource", nil)
		req.Header.Set(TenantHeaderKey, "not-a-uuid")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid tenant ID")
	})

	t.Run("rejects nil tenant ID", func(t *testing.T) {
		engine := tenantTestEngine(TenantMiddlewareConfig{HeaderEnabled: true})

		req := httptest.NewRequest("GET", "/resource", nil)
		req.Header.Set(TenantHeaderKey, uuid.Nil.String())
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("skips configured paths", func(t *testing.T) {
		engine := tenantTestEngine(TenantMiddlewareConfig{
			HeaderEnabled: true,
			SkipPaths:     []string{"/health"},
		})

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "healthy", w.Body.String())
	})
}

func TestGetTenantID(t *testing.T) {
	t.Run("returns false when unset", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())

		_, ok := GetTenantID(c)
		assert.False(t, ok)
	})

	t.Run("parses the stored tenant ID", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		want := uuid.New()
		c.Set(TenantIDKey, want.String())

		got, ok := GetTenantID(c)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	})
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/returnhub/backend/internal/infrastructure/auth"
	"github.com/returnhub/backend/internal/infrastructure/config"
)

func newTestJWTService(expiration time.Duration) *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-for-middleware-tests",
		AccessTokenExpiration: expiration,
		Issuer:                "returnhub-test",
	})
}

func jwtTestEngine(cfg JWTMiddlewareConfig) *gin.Engine {
	engine := gin.New()
	engine.Use(JWTAuthMiddlewareWithConfig(cfg))
	engine.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"tenant_id": GetJWTTenantID(c),
			"user_id":   GetJWTUserID(c),
			"role":      GetJWTRole(c),
		})
	})
	engine.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	engine.GET("/public/docs", func(c *gin.Context) {
		c.String(http.StatusOK, "docs")
	})
	return engine
}

func TestJWTAuthMiddleware(t *testing.T) {
	svc := newTestJWTService(time.Hour)
	tenantID := uuid.New()
	userID := uuid.New()

	t.Run("accepts a valid bearer token and sets claims", func(t *testing.T) {
		token, _, err := svc.GenerateAccessToken(auth.GenerateTokenInput{
			TenantID: tenantID,
			UserID:   userID,
			Role:     auth.RoleAdmin,
		})
		require.NoError(t, err)

		engine := jwtTestEngine(JWTMiddlewareConfig{JWTService: svc})
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), tenantID.String())
		assert.Contains(t, w.Body.String(), userID.String())
		assert.Contains(t, w.Body.String(), auth.RoleAdmin)
	})

	t.Run("customer tokens carry no user ID", func(t *testing.T) {
		token, _, err := svc.GenerateAccessToken(auth.GenerateTokenInput{
			TenantID: tenantID,
			Role:     auth.RoleCustomer,
		})
		require.NoError(t, err)

		engine := jwtTestEngine(JWTMiddlewareConfig{JWTService: svc})
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"user_id":""`)
		assert.Contains(t, w.Body.String(), auth.RoleCustomer)
	})

	t.Run("rejects missing authorization header", func(t *testing.T) {
		engine := jwtTestEngine(JWTMiddlewareConfig{JWTService: svc})
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest("GET", "/protected", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
	})

	t.Run("rejects non-bearer authorization", func(t *testing.T) {
		engine := jwtTestEngine(JWTMiddlewareConfig{JWTService: svc})
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set(AuthHeaderKey, "Basic dXNlcjpwYXNz")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid authorization header format")
	})

	t.Run("rejects empty bearer token", func(t *testing.T) {
		engine := jwtTestEngine(JWTMiddlewareConfig{JWTService: svc})
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects tokens signed with another secret", func(t *testing.T) {
		other := auth.NewJWTService(config.JWTConfig{
			Secret:                "a-completely-different-secret",
			AccessTokenExpiration: time.Hour,
			Issuer:                "returnhub-test",
		})
		token, _, err := other.GenerateAccessToken(auth.GenerateTokenInput{
			TenantID: tenantID,
			Role:     auth.RoleCustomer,
		})
		require.NoError(t, err)

		engine := jwtTestEngine(JWTMiddlewareConfig{JWTService: svc})
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Token validation failed")
	})

	t.Run("rejects expired tokens", func(t *testing.T) {
		expired := newTestJWTService(-time.Minute)
		token, _, err := expired.GenerateAccessToken(auth.GenerateTokenInput{
			TenantID: tenantID,
			Role:     auth.RoleCustomer,
		})
		require.NoError(t, err)

		engine := jwtTestEngine(JWTMiddlewareConfig{JWTService: svc})
		req := httptest.NewRequest("GET", "/protected", nil)
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("skips configured paths", func(t *testing.T) {
		engine := jwtTestEngine(JWTMiddlewareConfig{
			JWTService: svc,
			SkipPaths:  []string{"/health"},
		})

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("skips configured path prefixes", func(t *testing.T) {
		engine := jwtTestEngine(JWTMiddlewareConfig{
			JWTService:       svc,
			SkipPathPrefixes: []string{"/public/"},
		})

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest("GET", "/public/docs", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

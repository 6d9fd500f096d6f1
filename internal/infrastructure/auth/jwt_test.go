package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/returnhub/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                "test-secret-at-least-32-characters-long",
		AccessTokenExpiration: time.Hour,
		Issuer:                "returnhub-test",
	})
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := newTestJWTService()
	tenantID := uuid.New()
	userID := uuid.New()

	t.Run("admin token carries tenant, user and role", func(t *testing.T) {
		token, expiresAt, err := svc.GenerateAccessToken(GenerateTokenInput{
			TenantID: tenantID,
			UserID:   userID,
			Role:     RoleAdmin,
		})
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

		claims, err := svc.ValidateAccessToken(token)
		require.NoError(t, err)
		assert.Equal(t, tenantID.String(), claims.TenantID)
		assert.Equal(t, userID.String(), claims.UserID)
		assert.Equal(t, RoleAdmin, claims.Role)
	})

	t.Run("customer token omits user ID", func(t *testing.T) {
		token, _, err := svc.GenerateAccessToken(GenerateTokenInput{
			TenantID: tenantID,
			Role:     RoleCustomer,
		})
		require.NoError(t, err)

		claims, err := svc.ValidateAccessToken(token)
		require.NoError(t, err)
		assert.Empty(t, claims.UserID)
		assert.Equal(t, RoleCustomer, claims.Role)
	})
}

func TestJWTService_ValidateAccessToken(t *testing.T) {
	svc := newTestJWTService()

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := svc.ValidateAccessToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects tokens signed with another secret", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{
			Secret:                "a-different-secret-also-32-chars-long!!",
			AccessTokenExpiration: time.Hour,
			Issuer:                "returnhub-test",
		})
		token, _, err := other.GenerateAccessToken(GenerateTokenInput{
			TenantID: uuid.New(),
			Role:     RoleCustomer,
		})
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects expired tokens", func(t *testing.T) {
		expired := NewJWTService(config.JWTConfig{
			Secret:                "test-secret-at-least-32-characters-long",
			AccessTokenExpiration: -time.Minute,
			Issuer:                "returnhub-test",
		})
		token, _, err := expired.GenerateAccessToken(GenerateTokenInput{
			TenantID: uuid.New(),
			Role:     RoleCustomer,
		})
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})
}

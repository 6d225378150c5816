package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenLifecycle(t *testing.T) {
	mgr, err := NewJWTManager("test-secret", "shipdesk-test", 30*time.Minute)
	require.NoError(t, err)

	token, expiresAt, err := mgr.GenerateToken(42, "admin@example.com", "sid-1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := mgr.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "sid-1", claims.SessionID)
	assert.Equal(t, "admin@example.com", claims.Email)
	assert.Equal(t, "shipdesk-test", claims.Issuer)
}

func TestNewJWTManagerRequiresSecret(t *testing.T) {
	_, err := NewJWTManager("   ", "", time.Hour)
	assert.Error(t, err)
}

func TestVerifyTokenRejectsForeignSignature(t *testing.T) {
	a, err := NewJWTManager("secret-a", "", time.Hour)
	require.NoError(t, err)
	b, err := NewJWTManager("secret-b", "", time.Hour)
	require.NoError(t, err)

	token, _, err := a.GenerateToken(1, "a@example.com", "sid")
	require.NoError(t, err)

	_, err = b.VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyTokenRejectsMissingSession(t *testing.T) {
	mgr, err := NewJWTManager("secret", "", time.Hour)
	require.NoError(t, err)

	token, _, err := mgr.GenerateToken(1, "a@example.com", "")
	require.NoError(t, err)

	_, err = mgr.VerifyToken(token)
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	mgr, err := NewJWTManager("secret", "", time.Hour)
	require.NoError(t, err)
	mgr.tokenDuration = -time.Minute

	token, _, err := mgr.GenerateToken(1, "a@example.com", "sid")
	require.NoError(t, err)

	_, err = mgr.VerifyToken(token)
	assert.Error(t, err)
}

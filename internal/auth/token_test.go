package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubportal/hub/internal/config"
)

func testTokens() *TokenManager {
	return NewTokenManager(config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTL: time.Hour, AllowedClockSkew: 30 * time.Second})
}

func TestTokenRoundTrip(t *testing.T) {
	tm := testTokens()
	token, expiresAt, err := tm.GenerateToken("u-1", "Ana")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "Ana", claims.Name)
}

func TestParseTokenRejects(t *testing.T) {
	tm := testTokens()

	expired := testTokens()
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.GenerateToken("u-1", "")
	require.NoError(t, err)

	other := NewTokenManager(config.AuthConfig{JWTSecret: "other-secret"})
	foreign, _, err := other.GenerateToken("u-1", "")
	require.NoError(t, err)

	hs384, err := jwt.NewWithClaims(jwt.SigningMethodHS384, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: "u-1",
	}}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":    old,
		"foreign":    foreign,
		"hs384":      hs384,
		"no expiry":  noExpiry,
		"no subject": noSubject,
		"garbage":    "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tm.ParseToken(token)
			assert.Error(t, err)
		})
	}
}

func TestGenerateTokenNeedsUser(t *testing.T) {
	_, _, err := testTokens().GenerateToken("", "")
	assert.Error(t, err)
}

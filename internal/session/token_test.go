package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("api-side-secret"))
	require.NoError(t, err)
	return token
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("reads exp without the signing key", func(t *testing.T) {
		got, ok := TokenExpiry(signedToken(t, jwt.MapClaims{"id": 7, "username": "jake", "exp": exp.Unix()}))
		require.True(t, ok)
		assert.True(t, exp.Equal(got))
	})

	t.Run("no exp claim", func(t *testing.T) {
		_, ok := TokenExpiry(signedToken(t, jwt.MapClaims{"username": "jake"}))
		assert.False(t, ok)
	})

	t.Run("not a jwt", func(t *testing.T) {
		_, ok := TokenExpiry("opaque-token")
		assert.False(t, ok)
	})

	t.Run("expired token still reports exp", func(t *testing.T) {
		past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		got, ok := TokenExpiry(signedToken(t, jwt.MapClaims{"exp": past.Unix()}))
		require.True(t, ok)
		assert.True(t, past.Equal(got))
	})
}

func TestExpiresAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	soon := now.Add(time.Hour)
	assert.True(t, soon.Equal(ExpiresAt(signedToken(t, jwt.MapClaims{"exp": soon.Unix()}), now, 24*time.Hour)))

	late := now.Add(72 * time.Hour)
	assert.True(t, now.Add(24*time.Hour).Equal(ExpiresAt(signedToken(t, jwt.MapClaims{"exp": late.Unix()}), now, 24*time.Hour)))

	assert.True(t, now.Add(24*time.Hour).Equal(ExpiresAt("opaque", now, 24*time.Hour)))
}

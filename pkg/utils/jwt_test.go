package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any-key"))
	require.NoError(t, err)
	return token
}

func TestTokenExpiry(t *testing.T) {
	now := time.Now()

	t.Run("Expired", func(t *testing.T) {
		token := signed(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute))})
		assert.True(t, TokenExpired(token, now))
	})

	t.Run("Valid", func(t *testing.T) {
		token := signed(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))})
		exp, ok := TokenExpiry(token)
		require.True(t, ok)
		assert.WithinDuration(t, now.Add(time.Hour), exp, time.Second)
		assert.False(t, TokenExpired(token, now))
	})

	t.Run("No exp claim", func(t *testing.T) {
		token := signed(t, jwt.RegisteredClaims{Subject: "5"})
		_, ok := TokenExpiry(token)
		assert.False(t, ok)
		assert.False(t, TokenExpired(token, now))
	})

	t.Run("Opaque token", func(t *testing.T) {
		assert.False(t, TokenExpired("T", now))
	})
}

package auth

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authmedia/internal/cache"
	apperrors "authmedia/internal/errors"
)

func TestJWTService_VerificationToken(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.GenerateVerificationToken("alice@example.com")
	require.NoError(t, err)

	email, err := svc.ValidateVerificationToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewJWTService("other").ValidateVerificationToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewJWTService("test-secret")
		later.now = func() time.Time { return time.Now().Add(VerificationTokenExpiry + time.Minute) }
		_, err := later.ValidateVerificationToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("state token is not a verification token", func(t *testing.T) {
		state, err := svc.GenerateStateToken("/dashboard.html")
		require.NoError(t, err)
		_, err = svc.ValidateVerificationToken(state)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateVerificationToken("not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestJWTService_StateToken(t *testing.T) {
	svc := NewJWTService("test-secret")

	state, err := svc.GenerateStateToken("/dashboard.html")
	require.NoError(t, err)

	cb, err := svc.ValidateStateToken(state)
	require.NoError(t, err)
	assert.Equal(t, "/dashboard.html", cb)
}

func TestGenerateSessionToken(t *testing.T) {
	a, err := GenerateSessionToken()
	require.NoError(t, err)
	b, err := GenerateSessionToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	raw, err := base64.RawURLEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	h, err := RandomHex(16)
	require.NoError(t, err)
	assert.Len(t, h, 32)
}

func TestPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{"too short", "short", apperrors.ErrPasswordTooShort},
		{"too long", string(make([]byte, MaxPasswordLength+1)), apperrors.ErrPasswordTooLong},
		{"ok", "password123", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, CheckPassword(hash, tt.password))
			assert.False(t, CheckPassword(hash, "wrong-password"))
		})
	}
}

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	c := cache.New(mr.Addr(), "", 0)
	defer c.Close()

	limiter := NewRateLimiter(c, 2, time.Minute)

	assert.True(t, limiter.Allow(ctx, "sign-in", "1.2.3.4").Allowed)
	d := limiter.Allow(ctx, "sign-in", "1.2.3.4")
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d = limiter.Allow(ctx, "sign-in", "1.2.3.4")
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))

	// Other clients and scopes have their own windows.
	assert.True(t, limiter.Allow(ctx, "sign-in", "5.6.7.8").Allowed)
	assert.True(t, limiter.Allow(ctx, "sign-up", "1.2.3.4").Allowed)

	mr.FastForward(time.Minute + time.Second)
	assert.True(t, limiter.Allow(ctx, "sign-in", "1.2.3.4").Allowed)
}

func TestRateLimiter_FailsOpenWithoutRedis(t *testing.T) {
	limiter := NewRateLimiter(nil, 1, time.Minute)
	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow(context.Background(), "sign-in", "1.2.3.4").Allowed)
	}
}

package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raihq/rai-backend/internal/database"
)

// setupTestRedis swaps the global Redis client for an in-memory server.
func setupTestRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	srv := miniredis.RunT(t)
	prev := database.RedisClient
	database.RedisClient = redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() {
		database.RedisClient.Close()
		database.RedisClient = prev
	})
	return srv
}

func TestGenerateOTP(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code, err := GenerateOTP()
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, c := range code {
			assert.True(t, c >= '0' && c <= '9', "non-digit in code %q", code)
		}
		seen[code] = true
	}
	// 100 draws from a million-code space colliding down to a handful would
	// mean broken randomness.
	assert.Greater(t, len(seen), 90)
}

func TestOTPMethod(t *testing.T) {
	assert.Equal(t, "email", OTPMethod("user@example.com"))
	assert.Equal(t, "sms", OTPMethod("+15551234567"))
	assert.Equal(t, "sms", OTPMethod("15551234567"))
}

func TestClaimOTPCooldown(t *testing.T) {
	srv := setupTestRedis(t)
	ctx := context.Background()

	ok, _, status := ClaimOTPCooldown(ctx, "user@example.com")
	assert.True(t, ok)
	assert.Equal(t, http.StatusOK, status)

	// The second request inside the window is rejected. Every initiate path
	// claims this slot, so repeated requests behave the same whether or not
	// the identifier maps to an account.
	ok, msg, status := ClaimOTPCooldown(ctx, "user@example.com")
	assert.False(t, ok)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "Please wait before requesting another OTP.", msg)

	// Other identifiers keep their own window.
	ok, _, _ = ClaimOTPCooldown(ctx, "other@example.com")
	assert.True(t, ok)

	// The slot frees itself once the window passes.
	srv.FastForward(61 * time.Second)
	ok, _, _ = ClaimOTPCooldown(ctx, "user@example.com")
	assert.True(t, ok)
}

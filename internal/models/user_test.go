package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOTPIsValid(t *testing.T) {
	now := time.Now()

	fresh := &OTP{CreatedAt: now.Add(-time.Minute)}
	assert.True(t, fresh.IsValid(now))

	expired := &OTP{CreatedAt: now.Add(-OTPValidity - time.Second)}
	assert.False(t, expired.IsValid(now))

	exhausted := &OTP{CreatedAt: now.Add(-time.Minute), Attempts: OTPMaxAttempts}
	assert.False(t, exhausted.IsValid(now))

	lastTry := &OTP{CreatedAt: now.Add(-time.Minute), Attempts: OTPMaxAttempts - 1}
	assert.True(t, lastTry.IsValid(now))
}

func TestUserIsLocked(t *testing.T) {
	now := time.Now()

	unlocked := &User{}
	assert.False(t, unlocked.IsLocked(now))

	future := now.Add(10 * time.Minute)
	locked := &User{LockedUntil: &future}
	assert.True(t, locked.IsLocked(now))

	past := now.Add(-time.Minute)
	expired := &User{LockedUntil: &past}
	assert.False(t, expired.IsLocked(now))
}

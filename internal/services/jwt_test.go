package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubRefreshGate(t *testing.T, err error) {
	t.Helper()
	prev := refreshAccountGate
	refreshAccountGate = func(context.Context, uuid.UUID) error { return err }
	t.Cleanup(func() { refreshAccountGate = prev })
}

func newTestJWTService() *JWTService {
	return NewJWTService("test-secret", time.Hour, 7*24*time.Hour)
}

func TestIssuePairRoundTrip(t *testing.T) {
	svc := newTestJWTService()
	userID := uuid.New()

	pair, err := svc.IssuePair(userID)
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)

	accessClaims, err := svc.Parse(pair.Access, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), accessClaims.UserID)
	assert.NotEmpty(t, accessClaims.ID)

	refreshClaims, err := svc.Parse(pair.Refresh, TokenTypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), refreshClaims.UserID)
	assert.NotEqual(t, accessClaims.ID, refreshClaims.ID)
}

func TestParseRejectsWrongTokenType(t *testing.T) {
	svc := newTestJWTService()
	pair, err := svc.IssuePair(uuid.New())
	require.NoError(t, err)

	_, err = svc.Parse(pair.Access, TokenTypeRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Parse(pair.Refresh, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsForeignSecret(t *testing.T) {
	pair, err := newTestJWTService().IssuePair(uuid.New())
	require.NoError(t, err)

	other := NewJWTService("different-secret", time.Hour, time.Hour)
	_, err = other.Parse(pair.Access, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	svc := NewJWTService("test-secret", -time.Minute, -time.Minute)
	pair, err := svc.IssuePair(uuid.New())
	require.NoError(t, err)

	_, err = svc.Parse(pair.Access, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUserIDFromAccessToken(t *testing.T) {
	svc := newTestJWTService()
	userID := uuid.New()

	pair, err := svc.IssuePair(userID)
	require.NoError(t, err)

	got, err := svc.UserIDFromAccessToken(pair.Access)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = svc.UserIDFromAccessToken(pair.Refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.UserIDFromAccessToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshRotatesAndRevokesOldToken(t *testing.T) {
	setupTestRedis(t)
	stubRefreshGate(t, nil)
	svc := newTestJWTService()
	userID := uuid.New()

	pair, err := svc.IssuePair(userID)
	require.NoError(t, err)

	next, err := svc.Refresh(context.Background(), pair.Refresh)
	require.NoError(t, err)
	assert.NotEqual(t, pair.Refresh, next.Refresh)

	got, err := svc.UserIDFromAccessToken(next.Access)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	// The rotated-out token is single use.
	_, err = svc.Refresh(context.Background(), pair.Refresh)
	assert.ErrorIs(t, err, ErrRevokedToken)
}

func TestRefreshRejectsUnusableAccount(t *testing.T) {
	setupTestRedis(t)
	svc := newTestJWTService()

	pair, err := svc.IssuePair(uuid.New())
	require.NoError(t, err)

	// Deactivated and locked accounts must not rotate their way back in.
	stubRefreshGate(t, ErrRevokedToken)
	_, err = svc.Refresh(context.Background(), pair.Refresh)
	assert.ErrorIs(t, err, ErrRevokedToken)
}

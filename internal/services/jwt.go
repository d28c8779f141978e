package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/raihq/rai-backend/internal/database"
)

// Token kinds carried in the claims.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

const revokedKeyPrefix = "revoked_refresh:"

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrRevokedToken = errors.New("token has been revoked")
)

// TokenClaims are the JWT claims for both access and refresh tokens.
type TokenClaims struct {
	UserID    string `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is returned on login, refresh, and signup finalize.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// JWTService issues and validates HS256 token pairs. Refresh tokens carry a
// JTI so logout can denylist them in Redis until natural expiry.
type JWTService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewJWTService(secret string, accessTTL, refreshTTL time.Duration) *JWTService {
	return &JWTService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssuePair issues a fresh access+refresh pair for a user.
func (s *JWTService) IssuePair(userID uuid.UUID) (TokenPair, error) {
	access, err := s.sign(userID, TokenTypeAccess, s.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(userID, TokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (s *JWTService) sign(userID uuid.UUID, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := TokenClaims{
		UserID:    userID.String(),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse validates a token of the expected type and returns its claims.
func (s *JWTService) Parse(tokenString, expectedType string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != expectedType {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// UserIDFromAccessToken validates an access token and returns the user id.
func (s *JWTService) UserIDFromAccessToken(tokenString string) (uuid.UUID, error) {
	claims, err := s.Parse(tokenString, TokenTypeAccess)
	if err != nil {
		return uuid.Nil, err
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return userID, nil
}

// refreshAccountGate rejects rotation for accounts that can no longer log in,
// so deactivation and lockout take effect at the next refresh. Package-level
// var so tests can stub the database lookup.
var refreshAccountGate = func(ctx context.Context, userID uuid.UUID) error {
	u, err := GetUserByID(ctx, userID)
	if err != nil {
		return ErrRevokedToken
	}
	if !u.IsActive || u.IsLocked(time.Now().UTC()) {
		return ErrRevokedToken
	}
	return nil
}

// Refresh rotates a refresh token: validates it, checks the denylist and the
// account status, revokes it, and issues a new pair.
func (s *JWTService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.Parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	revoked, err := database.RedisClient.Exists(ctx, revokedKeyPrefix+claims.ID).Result()
	if err == nil && revoked > 0 {
		return TokenPair{}, ErrRevokedToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	if err := refreshAccountGate(ctx, userID); err != nil {
		return TokenPair{}, err
	}

	if err := s.revokeClaims(ctx, claims); err != nil {
		return TokenPair{}, err
	}
	return s.IssuePair(userID)
}

// Revoke denylists a refresh token until it would have expired anyway.
func (s *JWTService) Revoke(ctx context.Context, refreshToken string) error {
	claims, err := s.Parse(refreshToken, TokenTypeRefresh)
	if err != nil {
		return err
	}
	return s.revokeClaims(ctx, claims)
}

func (s *JWTService) revokeClaims(ctx context.Context, claims *TokenClaims) error {
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return database.RedisClient.Set(ctx, revokedKeyPrefix+claims.ID, "1", ttl).Err()
}

// JWT is the process-wide token service, initialized from main.
var JWT *JWTService

func InitJWTService(secret string, accessTTL, refreshTTL time.Duration) {
	JWT = NewJWTService(secret, accessTTL, refreshTTL)
}

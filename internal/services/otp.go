package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/raihq/rai-backend/internal/database"
	"github.com/raihq/rai-backend/internal/models"
	"github.com/raihq/rai-backend/pkg/clientip"
)

const (
	otpCooldownKeyPrefix = "otp_cooldown:"
	otpCooldown          = 60 * time.Second

	otpVerifyKeyPrefix = "otp_verify_attempt:"
	otpVerifyWindow    = 5 * time.Minute
	otpVerifyMaxTries  = 5
)

// GenerateOTP returns a cryptographically random 6-digit code.
func GenerateOTP() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	digits := make([]byte, 6)
	for i, b := range buf {
		digits[i] = '0' + b%10
	}
	return string(digits), nil
}

// OTPMethod returns the delivery channel for an identifier: "email" when it
// looks like an address, otherwise "sms".
func OTPMethod(identifier string) string {
	if strings.Contains(identifier, "@") {
		return "email"
	}
	return "sms"
}

// ClaimOTPCooldown atomically takes the per-identifier request slot. The
// second request inside the window is rejected. Handlers that skip dispatch
// for unusable identifiers must still claim the slot so both outcomes behave
// identically to the requester, rate limit included.
// Returns (ok, message, httpStatus).
func ClaimOTPCooldown(ctx context.Context, identifier string) (bool, string, int) {
	claimed, err := database.RedisClient.SetNX(ctx, otpCooldownKeyPrefix+identifier, "1", otpCooldown).Result()
	if err == nil && !claimed {
		return false, "Please wait before requesting another OTP.", http.StatusTooManyRequests
	}
	return true, "", http.StatusOK
}

// InitiateOTP issues a fresh OTP for the identifier and dispatches it. The
// caller gets a generic message whether or not an account exists for the
// identifier; never reveal registration status here.
// Returns (ok, message, httpStatus).
func InitiateOTP(ctx context.Context, identifier string) (bool, string, int) {
	if ok, msg, status := ClaimOTPCooldown(ctx, identifier); !ok {
		return ok, msg, status
	}

	code, err := GenerateOTP()
	if err != nil {
		log.Printf("otp: code generation failed: %v", err)
		return false, "System error generating OTP.", http.StatusInternalServerError
	}

	tx, err := database.PostgresDB.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("otp: begin tx failed: %v", err)
		return false, "System error generating OTP.", http.StatusInternalServerError
	}
	defer tx.Rollback()

	// One live OTP per identifier: clear older rows before inserting.
	if _, err := tx.ExecContext(ctx, `DELETE FROM otps WHERE identifier = $1`, identifier); err != nil {
		log.Printf("otp: delete prior codes failed for %s: %v", identifier, err)
		return false, "System error generating OTP.", http.StatusInternalServerError
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO otps (identifier, code) VALUES ($1, $2)
	`, identifier, code); err != nil {
		log.Printf("otp: insert failed for %s: %v", identifier, err)
		return false, "System error generating OTP.", http.StatusInternalServerError
	}
	if err := tx.Commit(); err != nil {
		return false, "System error generating OTP.", http.StatusInternalServerError
	}

	if !SendOTP(ctx, identifier, code, OTPMethod(identifier)) {
		return false, "Failed to send OTP.", http.StatusInternalServerError
	}
	return true, "OTP sent successfully.", http.StatusOK
}

// VerifyOTP checks a submitted code against the latest OTP for the identifier.
// A per-identifier-and-IP sliding limit guards brute force on top of the OTP
// row's own attempt counter. Returns (ok, message, httpStatus).
func VerifyOTP(ctx context.Context, identifier, code string, r *http.Request) (bool, string, int) {
	var ipKey string
	if r != nil {
		ipKey = otpVerifyKeyPrefix + identifier + ":" + clientip.RealClientIP(r)
		attempts, _ := database.RedisClient.Get(ctx, ipKey).Int()
		if attempts >= otpVerifyMaxTries {
			return false, "Too many attempts. Try again in 5 minutes.", http.StatusTooManyRequests
		}
		pipe := database.RedisClient.Pipeline()
		pipe.Incr(ctx, ipKey)
		pipe.Expire(ctx, ipKey, otpVerifyWindow)
		pipe.Exec(ctx)
	}

	otp, err := latestOTP(ctx, identifier)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, "No OTP found. Please request a new one.", http.StatusBadRequest
		}
		log.Printf("otp: lookup failed for %s: %v", identifier, err)
		return false, "System error verifying OTP.", http.StatusInternalServerError
	}

	if !otp.IsValid(time.Now()) {
		return false, "OTP has expired or max attempts reached.", http.StatusBadRequest
	}

	if subtle.ConstantTimeCompare([]byte(otp.Code), []byte(code)) != 1 {
		database.PostgresDB.ExecContext(ctx, `UPDATE otps SET attempts = attempts + 1 WHERE id = $1`, otp.ID)
		remaining := models.OTPMaxAttempts - otp.Attempts - 1
		if remaining < 0 {
			remaining = 0
		}
		return false, fmt.Sprintf("Invalid OTP. %d attempts remaining.", remaining), http.StatusBadRequest
	}

	if _, err := database.PostgresDB.ExecContext(ctx, `UPDATE otps SET is_verified = TRUE WHERE id = $1`, otp.ID); err != nil {
		log.Printf("otp: mark verified failed for %s: %v", identifier, err)
		return false, "System error verifying OTP.", http.StatusInternalServerError
	}

	if ipKey != "" {
		database.RedisClient.Del(ctx, ipKey)
	}
	return true, "OTP verified successfully.", http.StatusOK
}

// IsOTPVerified reports whether the identifier holds a verified OTP. Used by
// the finalize steps, which must call ConsumeOTP afterward.
func IsOTPVerified(ctx context.Context, identifier string) bool {
	var verified bool
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT is_verified FROM otps WHERE identifier = $1 ORDER BY created_at DESC LIMIT 1
	`, identifier).Scan(&verified)
	return err == nil && verified
}

// ConsumeOTP deletes all OTP rows for the identifier so a verified code can
// never authorize a second finalize.
func ConsumeOTP(ctx context.Context, identifier string) error {
	_, err := database.PostgresDB.ExecContext(ctx, `DELETE FROM otps WHERE identifier = $1`, identifier)
	return err
}

func latestOTP(ctx context.Context, identifier string) (*models.OTP, error) {
	otp := &models.OTP{}
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT id, identifier, code, attempts, is_verified, created_at
		FROM otps WHERE identifier = $1
		ORDER BY created_at DESC LIMIT 1
	`, identifier).Scan(&otp.ID, &otp.Identifier, &otp.Code, &otp.Attempts, &otp.IsVerified, &otp.CreatedAt)
	if err != nil {
		return nil, err
	}
	return otp, nil
}

package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/raihq/rai-backend/internal/services"
	"github.com/raihq/rai-backend/pkg/utils"
)

type identifierRequest struct {
	Identifier string `json:"identifier"`
}

type verifyOTPRequest struct {
	Identifier string `json:"identifier"`
	OTP        string `json:"otp"`
}

type finalizeSignupRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type passwordResetConfirmRequest struct {
	Identifier  string `json:"identifier"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

// InitiateSignup sends an OTP to a new identifier. The response is identical
// whether or not the identifier is already registered.
func InitiateSignup(w http.ResponseWriter, r *http.Request) {
	var req identifierRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" {
		respondError(w, http.StatusBadRequest, "Identifier is required")
		return
	}

	taken, err := services.IdentifierExists(r.Context(), req.Identifier)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "System error")
		return
	}

	// Taken identifiers get no OTP, but still claim the cooldown slot so the
	// two branches are indistinguishable, rate-limit rejections included.
	var ok bool
	var msg string
	var status int
	if taken {
		ok, msg, status = services.ClaimOTPCooldown(r.Context(), req.Identifier)
	} else {
		ok, msg, status = services.InitiateOTP(r.Context(), req.Identifier)
	}
	if !ok {
		respondError(w, status, msg)
		return
	}
	respondSuccess(w, http.StatusOK, "If the identifier is valid, an OTP has been sent.", nil)
}

// VerifySignupOTP checks the submitted code. A verified code stays usable by
// finalize until consumed.
func VerifySignupOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" || req.OTP == "" {
		respondError(w, http.StatusBadRequest, "Identifier and OTP are required")
		return
	}

	ok, msg, status := services.VerifyOTP(r.Context(), req.Identifier, req.OTP, r)
	if !ok {
		respondError(w, status, msg)
		return
	}
	respondSuccess(w, http.StatusOK, msg, nil)
}

// FinalizeSignup creates the account once the identifier holds a verified OTP
// and returns a token pair.
func FinalizeSignup(w http.ResponseWriter, r *http.Request) {
	var req finalizeSignupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Identifier = strings.TrimSpace(req.Identifier)
	req.Username = strings.TrimSpace(req.Username)
	if req.Identifier == "" || req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Identifier, username, and password are required")
		return
	}
	if err := utils.ValidatePasswordStrength(req.Password); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !services.IsOTPVerified(r.Context(), req.Identifier) {
		respondError(w, http.StatusForbidden, "Identifier not verified. Complete OTP verification first.")
		return
	}

	user, err := services.CreateUser(r.Context(), req.Identifier, req.Username, req.Password, req.FirstName, req.LastName)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUsernameTaken):
			respondError(w, http.StatusConflict, "Username already taken")
		case errors.Is(err, services.ErrIdentifierInUse):
			respondError(w, http.StatusConflict, "Email or phone already registered")
		default:
			log.Printf("signup finalize failed: %v", err)
			respondError(w, http.StatusInternalServerError, "Failed to create account")
		}
		return
	}

	if err := services.ConsumeOTP(r.Context(), req.Identifier); err != nil {
		log.Printf("otp consume failed for %s: %v", req.Identifier, err)
	}

	tokens, err := services.JWT.IssuePair(user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to issue tokens")
		return
	}

	respondSuccess(w, http.StatusCreated, "Account created successfully", map[string]interface{}{
		"user":   user,
		"tokens": tokens,
	})
}

// ResendSignupOTP reissues the signup OTP, subject to the same cooldown.
func ResendSignupOTP(w http.ResponseWriter, r *http.Request) {
	InitiateSignup(w, r)
}

// Login authenticates with identifier+password and returns a token pair.
func Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Identifier) == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Identifier and password are required")
		return
	}

	user, err := services.Authenticate(r.Context(), req.Identifier, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAccountLocked):
			respondError(w, http.StatusForbidden, "Account temporarily locked due to repeated failures. Try again later.")
		case errors.Is(err, services.ErrAccountDeactivated):
			respondError(w, http.StatusForbidden, "Account is deactivated")
		case errors.Is(err, services.ErrBadCredentials):
			respondError(w, http.StatusUnauthorized, "Invalid credentials")
		default:
			log.Printf("login failed: %v", err)
			respondError(w, http.StatusInternalServerError, "System error")
		}
		return
	}

	tokens, err := services.JWT.IssuePair(user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to issue tokens")
		return
	}

	respondSuccess(w, http.StatusOK, "Login successful", map[string]interface{}{
		"user":   user,
		"tokens": tokens,
	})
}

// RefreshToken rotates a refresh token into a new pair.
func RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Refresh == "" {
		respondError(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	tokens, err := services.JWT.Refresh(r.Context(), req.Refresh)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	}
	respondSuccess(w, http.StatusOK, "Token refreshed", tokens)
}

// Logout revokes the refresh token. Access tokens age out on their own TTL.
func Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Refresh == "" {
		respondError(w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	if err := services.JWT.Revoke(r.Context(), req.Refresh); err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	respondSuccess(w, http.StatusOK, "Logged out", nil)
}

// RequestPasswordReset sends an OTP to a registered identifier. Generic
// response regardless of registration status.
func RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req identifierRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" {
		respondError(w, http.StatusBadRequest, "Identifier is required")
		return
	}

	exists, err := services.IdentifierExists(r.Context(), req.Identifier)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "System error")
		return
	}

	// Unregistered identifiers get no OTP but claim the same cooldown slot,
	// so repeated probes see the same rejection either way.
	var ok bool
	var msg string
	var status int
	if exists {
		ok, msg, status = services.InitiateOTP(r.Context(), req.Identifier)
	} else {
		ok, msg, status = services.ClaimOTPCooldown(r.Context(), req.Identifier)
	}
	if !ok {
		respondError(w, status, msg)
		return
	}
	respondSuccess(w, http.StatusOK, "If the identifier is registered, an OTP has been sent.", nil)
}

// ConfirmPasswordReset verifies the OTP and sets a new password in one step.
func ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetConfirmRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" || req.OTP == "" || req.NewPassword == "" {
		respondError(w, http.StatusBadRequest, "Identifier, OTP, and new password are required")
		return
	}

	ok, msg, status := services.VerifyOTP(r.Context(), req.Identifier, req.OTP, r)
	if !ok {
		respondError(w, status, msg)
		return
	}

	user, err := services.GetUserByIdentifier(r.Context(), req.Identifier)
	if err != nil {
		respondError(w, http.StatusBadRequest, "No account for this identifier")
		return
	}

	if err := services.SetPassword(r.Context(), user.ID, req.NewPassword); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := services.ConsumeOTP(r.Context(), req.Identifier); err != nil {
		log.Printf("otp consume failed for %s: %v", req.Identifier, err)
	}
	respondSuccess(w, http.StatusOK, "Password reset successfully", nil)
}

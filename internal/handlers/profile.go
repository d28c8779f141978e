package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/raihq/rai-backend/internal/middleware"
	"github.com/raihq/rai-backend/internal/services"
)

type updateProfileRequest struct {
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	Bio            *string `json:"bio"`
	ProfilePicture *string `json:"profile_picture"`
	DateOfBirth    *string `json:"date_of_birth"` // YYYY-MM-DD
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type emailChangeRequest struct {
	NewEmail string `json:"new_email"`
}

type emailChangeVerifyRequest struct {
	NewEmail string `json:"new_email"`
	OTP      string `json:"otp"`
}

// GetProfile returns the authenticated user's profile.
func GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	user, err := services.GetUserByID(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	respondSuccess(w, http.StatusOK, "Profile fetched", user)
}

// UpdateProfile applies partial profile edits; omitted fields stay unchanged.
func UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	var req updateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var dob *time.Time
	if req.DateOfBirth != nil {
		parsed, err := time.Parse("2006-01-02", *req.DateOfBirth)
		if err != nil {
			respondError(w, http.StatusBadRequest, "date_of_birth must be YYYY-MM-DD")
			return
		}
		dob = &parsed
	}

	user, err := services.UpdateProfile(r.Context(), userID, req.FirstName, req.LastName, req.Bio, req.ProfilePicture, dob)
	if err != nil {
		log.Printf("profile update failed for %s: %v", userID, err)
		respondError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}
	respondSuccess(w, http.StatusOK, "Profile updated", user)
}

// ChangePassword verifies the current password and sets a new one.
func ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	var req changePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		respondError(w, http.StatusBadRequest, "Current and new passwords are required")
		return
	}

	if err := services.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, services.ErrBadCredentials) {
			respondError(w, http.StatusUnauthorized, "Current password is incorrect")
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondSuccess(w, http.StatusOK, "Password changed successfully", nil)
}

// DeleteAccount deactivates the authenticated user's account.
func DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	if err := services.DeactivateUser(r.Context(), userID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to deactivate account")
		return
	}
	respondSuccess(w, http.StatusOK, "Account deactivated", nil)
}

// InitiateEmailChange sends an OTP to the new address to prove ownership.
func InitiateEmailChange(w http.ResponseWriter, r *http.Request) {
	var req emailChangeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.NewEmail = strings.TrimSpace(req.NewEmail)
	if req.NewEmail == "" || !strings.Contains(req.NewEmail, "@") {
		respondError(w, http.StatusBadRequest, "A valid new email is required")
		return
	}

	taken, err := services.IdentifierExists(r.Context(), req.NewEmail)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "System error")
		return
	}
	if taken {
		respondError(w, http.StatusConflict, "Email already registered")
		return
	}

	ok, msg, status := services.InitiateOTP(r.Context(), req.NewEmail)
	if !ok {
		respondError(w, status, msg)
		return
	}
	respondSuccess(w, http.StatusOK, "OTP sent to new email", nil)
}

// VerifyEmailChange confirms the OTP and swaps the account email.
func VerifyEmailChange(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	var req emailChangeVerifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.NewEmail = strings.TrimSpace(req.NewEmail)
	if req.NewEmail == "" || req.OTP == "" {
		respondError(w, http.StatusBadRequest, "New email and OTP are required")
		return
	}

	ok, msg, status := services.VerifyOTP(r.Context(), req.NewEmail, req.OTP, r)
	if !ok {
		respondError(w, status, msg)
		return
	}

	if err := services.ChangeEmail(r.Context(), userID, req.NewEmail); err != nil {
		log.Printf("email change failed for %s: %v", userID, err)
		respondError(w, http.StatusInternalServerError, "Failed to change email")
		return
	}
	if err := services.ConsumeOTP(r.Context(), req.NewEmail); err != nil {
		log.Printf("otp consume failed for %s: %v", req.NewEmail, err)
	}
	respondSuccess(w, http.StatusOK, "Email changed successfully", nil)
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// User mirrors a row in the users table. Email and phone are nullable but at
// least one is always set; both are unique.
type User struct {
	ID                  uuid.UUID  `json:"id"`
	Username            string     `json:"username"`
	Email               *string    `json:"email,omitempty"`
	Phone               *string    `json:"phone,omitempty"`
	PasswordHash        string     `json:"-"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	Bio                 *string    `json:"bio,omitempty"`
	ProfilePicture      *string    `json:"profile_picture,omitempty"`
	DateOfBirth         *time.Time `json:"date_of_birth,omitempty"`
	IsEmailVerified     bool       `json:"is_email_verified"`
	IsPhoneVerified     bool       `json:"is_phone_verified"`
	IsAdmin             bool       `json:"is_admin"`
	IsActive            bool       `json:"is_active"`
	FailedLoginAttempts int        `json:"-"`
	LockedUntil         *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// OTP mirrors a row in the otps table. At most one live OTP exists per
// identifier; regeneration deletes older rows first.
type OTP struct {
	ID         uuid.UUID `json:"id"`
	Identifier string    `json:"identifier"`
	Code       string    `json:"-"`
	Attempts   int       `json:"attempts"`
	IsVerified bool      `json:"is_verified"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	// OTPValidity is how long a code stays usable after issuance.
	OTPValidity = 3 * time.Minute
	// OTPMaxAttempts caps verification tries against a single code.
	OTPMaxAttempts = 5
)

// IsValid reports whether the OTP is inside its expiry window and under the
// attempt cap.
func (o *OTP) IsValid(now time.Time) bool {
	return now.Before(o.CreatedAt.Add(OTPValidity)) && o.Attempts < OTPMaxAttempts
}

const (
	// LoginMaxFailures locks an account after this many consecutive failures.
	LoginMaxFailures = 5
	// LoginLockout is the cool-down applied once an account locks.
	LoginLockout = 15 * time.Minute
)

// IsLocked reports whether the account is inside a lockout window.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/raihq/rai-backend/internal/database"
	"github.com/raihq/rai-backend/internal/models"
	"github.com/raihq/rai-backend/pkg/utils"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrBadCredentials     = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrIdentifierInUse    = errors.New("email or phone already registered")
	ErrAccountDeactivated = errors.New("account is deactivated")
)

const userColumns = `id, username, email, phone, password_hash, first_name, last_name,
	bio, profile_picture, date_of_birth, is_email_verified, is_phone_verified,
	is_admin, is_active, failed_login_attempts, locked_until, created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Phone, &u.PasswordHash,
		&u.FirstName, &u.LastName, &u.Bio, &u.ProfilePicture, &u.DateOfBirth,
		&u.IsEmailVerified, &u.IsPhoneVerified, &u.IsAdmin, &u.IsActive,
		&u.FailedLoginAttempts, &u.LockedUntil, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByID loads a user by primary key.
func GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(database.PostgresDB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserByIdentifier resolves a login identifier (email or phone) to a user.
func GetUserByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return scanUser(database.PostgresDB.QueryRowContext(ctx,
			`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, identifier))
	}
	return scanUser(database.PostgresDB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone = $1`, identifier))
}

// GetUserByUsername loads a user by username.
func GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(database.PostgresDB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username))
}

// IdentifierExists reports whether an email/phone already belongs to an account.
func IdentifierExists(ctx context.Context, identifier string) (bool, error) {
	var exists bool
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1) OR phone = $1)
	`, strings.TrimSpace(identifier)).Scan(&exists)
	return exists, err
}

// UsernameExists reports whether a username is taken.
func UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($1))
	`, username).Scan(&exists)
	return exists, err
}

// CreateUser finalizes signup with a verified identifier. The identifier lands
// in email or phone depending on shape, with the matching verified flag set.
func CreateUser(ctx context.Context, identifier, username, password, firstName, lastName string) (*models.User, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	var email, phone *string
	var emailVerified, phoneVerified bool
	id := strings.TrimSpace(identifier)
	if strings.Contains(id, "@") {
		email, emailVerified = &id, true
	} else {
		phone, phoneVerified = &id, true
	}

	row := database.PostgresDB.QueryRowContext(ctx, `
		INSERT INTO users (username, email, phone, password_hash, first_name, last_name,
			is_email_verified, is_phone_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+userColumns+`
	`, username, email, phone, hash, firstName, lastName, emailVerified, phoneVerified)

	u, err := scanUser(row)
	if err != nil {
		return nil, mapUserInsertError(err)
	}
	return u, nil
}

const pqUniqueViolation = "23505"

// mapUserInsertError turns unique-constraint violations from the users insert
// into the matching sentinel; everything else passes through.
func mapUserInsertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		if strings.Contains(pqErr.Constraint, "username") {
			return ErrUsernameTaken
		}
		return ErrIdentifierInUse
	}
	return err
}

// Authenticate checks credentials with account lockout. Five consecutive
// failures lock the account for fifteen minutes; a success resets the counter.
func Authenticate(ctx context.Context, identifier, password string) (*models.User, error) {
	u, err := GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}

	now := time.Now().UTC()
	if u.IsLocked(now) {
		return nil, ErrAccountLocked
	}
	if !u.IsActive {
		return nil, ErrAccountDeactivated
	}

	ok, err := utils.VerifyPassword(password, u.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		if lockErr := recordFailedLogin(ctx, u.ID); lockErr != nil {
			return nil, lockErr
		}
		return nil, ErrBadCredentials
	}

	if u.FailedLoginAttempts > 0 || u.LockedUntil != nil {
		_, err = database.PostgresDB.ExecContext(ctx, `
			UPDATE users SET failed_login_attempts = 0, locked_until = NULL WHERE id = $1
		`, u.ID)
		if err != nil {
			return nil, err
		}
	}
	return u, nil
}

func recordFailedLogin(ctx context.Context, userID uuid.UUID) error {
	_, err := database.PostgresDB.ExecContext(ctx, `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE
		        WHEN failed_login_attempts + 1 >= $2 THEN NOW() + make_interval(secs => $3)
		        ELSE locked_until
		    END
		WHERE id = $1
	`, userID, models.LoginMaxFailures, models.LoginLockout.Seconds())
	return err
}

// UpdateProfile applies partial edits. Nil pointers leave fields untouched.
func UpdateProfile(ctx context.Context, userID uuid.UUID, firstName, lastName, bio, profilePicture *string, dateOfBirth *time.Time) (*models.User, error) {
	row := database.PostgresDB.QueryRowContext(ctx, `
		UPDATE users SET
			first_name = COALESCE($2, first_name),
			last_name = COALESCE($3, last_name),
			bio = COALESCE($4, bio),
			profile_picture = COALESCE($5, profile_picture),
			date_of_birth = COALESCE($6, date_of_birth),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns+`
	`, userID, firstName, lastName, bio, profilePicture, dateOfBirth)
	return scanUser(row)
}

// ChangePassword verifies the current password before setting a new one.
func ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	u, err := GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	ok, err := utils.VerifyPassword(current, u.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBadCredentials
	}
	return SetPassword(ctx, userID, next)
}

// SetPassword hashes and stores a new password. Used by both the change and
// OTP-backed reset flows.
func SetPassword(ctx context.Context, userID uuid.UUID, password string) error {
	if err := utils.ValidatePasswordStrength(password); err != nil {
		return err
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = database.PostgresDB.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1
	`, userID, hash)
	return err
}

// ChangeEmail swaps the account email after OTP verification of the new one.
func ChangeEmail(ctx context.Context, userID uuid.UUID, newEmail string) error {
	_, err := database.PostgresDB.ExecContext(ctx, `
		UPDATE users SET email = $2, is_email_verified = TRUE, updated_at = NOW()
		WHERE id = $1
	`, userID, strings.TrimSpace(newEmail))
	return err
}

// DeactivateUser soft-deletes the account. Tokens stop working on refresh;
// live access tokens age out within their TTL.
func DeactivateUser(ctx context.Context, userID uuid.UUID) error {
	res, err := database.PostgresDB.ExecContext(ctx, `
		UPDATE users SET is_active = FALSE, updated_at = NOW() WHERE id = $1
	`, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"log"

	"github.com/google/uuid"

	"github.com/raihq/rai-backend/internal/database"
	"github.com/raihq/rai-backend/internal/models"
)

const inviteCodeLength = 12

var ErrNotMember = errors.New("user is not a member of this community")

// GenerateInviteCode returns a random URL-safe invite code. Codes are never
// reused: rotation always generates a fresh one.
func GenerateInviteCode() (string, error) {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}

// CreateCommunity inserts the community and makes the creator its admin in
// one transaction.
func CreateCommunity(ctx context.Context, creator uuid.UUID, name, description string, isPrivate bool, iconURL *string) (*models.Community, error) {
	code, err := GenerateInviteCode()
	if err != nil {
		return nil, err
	}

	tx, err := database.PostgresDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	c := &models.Community{}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO communities (name, description, icon, is_private, invite_code)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, description, icon, is_private, invite_code, created_at, updated_at
	`, name, description, iconURL, isPrivate, code).Scan(
		&c.ID, &c.Name, &c.Description, &c.Icon, &c.IsPrivate, &c.InviteCode, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO memberships (community_id, user_id, role) VALUES ($1, $2, $3)
	`, c.ID, creator, models.RoleAdmin); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	c.MemberCount = 1
	log.Printf("community created: %s by user %s", c.ID, creator)
	return c, nil
}

// GetCommunity loads one community with its member count.
func GetCommunity(ctx context.Context, communityID uuid.UUID) (*models.Community, error) {
	c := &models.Community{}
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT c.id, c.name, c.description, c.icon, c.is_private, c.invite_code, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM memberships m WHERE m.community_id = c.id)
		FROM communities c WHERE c.id = $1
	`, communityID).Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.IsPrivate, &c.InviteCode,
		&c.CreatedAt, &c.UpdatedAt, &c.MemberCount)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListUserCommunities returns the communities a user belongs to, most recently
// active first.
func ListUserCommunities(ctx context.Context, userID uuid.UUID) ([]models.Community, error) {
	rows, err := database.PostgresDB.QueryContext(ctx, `
		SELECT c.id, c.name, c.description, c.icon, c.is_private, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM memberships mc WHERE mc.community_id = c.id)
		FROM communities c
		JOIN memberships m ON m.community_id = c.id
		WHERE m.user_id = $1
		ORDER BY c.updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	communities := []models.Community{}
	for rows.Next() {
		var c models.Community
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &c.IsPrivate,
			&c.CreatedAt, &c.UpdatedAt, &c.MemberCount); err != nil {
			return nil, err
		}
		communities = append(communities, c)
	}
	return communities, rows.Err()
}

// UpdateCommunity applies admin edits to name/description/privacy/icon.
func UpdateCommunity(ctx context.Context, communityID uuid.UUID, name, description string, isPrivate bool, iconURL *string) error {
	_, err := database.PostgresDB.ExecContext(ctx, `
		UPDATE communities
		SET name = $2, description = $3, is_private = $4,
		    icon = COALESCE($5, icon), updated_at = NOW()
		WHERE id = $1
	`, communityID, name, description, isPrivate, iconURL)
	return err
}

// DeleteCommunity removes the community; memberships, requests, and relational
// rows cascade. Mongo messages are left to TTL/offline cleanup.
func DeleteCommunity(ctx context.Context, communityID uuid.UUID) error {
	_, err := database.PostgresDB.ExecContext(ctx, `DELETE FROM communities WHERE id = $1`, communityID)
	return err
}

// IsMember reports whether the user belongs to the community.
func IsMember(ctx context.Context, communityID, userID uuid.UUID) bool {
	var exists bool
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM memberships WHERE community_id = $1 AND user_id = $2)
	`, communityID, userID).Scan(&exists)
	return err == nil && exists
}

// IsCommunityAdmin reports whether the user holds the admin role.
func IsCommunityAdmin(ctx context.Context, communityID, userID uuid.UUID) bool {
	var exists bool
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM memberships WHERE community_id = $1 AND user_id = $2 AND role = $3)
	`, communityID, userID, models.RoleAdmin).Scan(&exists)
	return err == nil && exists
}

// JoinCommunity handles a direct join: public communities admit immediately,
// private ones queue a join request. Returns (message, httpStatus-ish ok).
func JoinCommunity(ctx context.Context, communityID, userID uuid.UUID) (string, bool, error) {
	var isPrivate bool
	if err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT is_private FROM communities WHERE id = $1
	`, communityID).Scan(&isPrivate); err != nil {
		return "", false, err
	}

	if IsMember(ctx, communityID, userID) {
		return "Already a member", false, nil
	}

	if isPrivate {
		_, err := database.PostgresDB.ExecContext(ctx, `
			INSERT INTO join_requests (community_id, user_id) VALUES ($1, $2)
			ON CONFLICT (community_id, user_id) DO NOTHING
		`, communityID, userID)
		return "Join request sent", err == nil, err
	}

	if err := addMember(ctx, communityID, userID); err != nil {
		return "", false, err
	}
	return "Joined successfully", true, nil
}

// JoinByCode admits a user holding a live invite code and clears any pending
// join request.
func JoinByCode(ctx context.Context, code string, userID uuid.UUID) (*models.Community, string, error) {
	var communityID uuid.UUID
	var name string
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT id, name FROM communities WHERE invite_code = $1
	`, code).Scan(&communityID, &name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "Invalid invite code", nil
		}
		return nil, "", err
	}

	community := &models.Community{ID: communityID, Name: name}
	if IsMember(ctx, communityID, userID) {
		return community, "Already a member", nil
	}

	if err := addMember(ctx, communityID, userID); err != nil {
		return nil, "", err
	}
	log.Printf("user %s joined community %s via invite code", userID, communityID)
	return community, "Joined successfully", nil
}

func addMember(ctx context.Context, communityID, userID uuid.UUID) error {
	tx, err := database.PostgresDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO memberships (community_id, user_id, role) VALUES ($1, $2, $3)
		ON CONFLICT (community_id, user_id) DO NOTHING
	`, communityID, userID, models.RoleMember); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM join_requests WHERE community_id = $1 AND user_id = $2
	`, communityID, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// RotateInviteCode replaces the invite code. The old code stops working the
// moment this commits; retries on the (unlikely) unique collision.
func RotateInviteCode(ctx context.Context, communityID uuid.UUID) (string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		code, err := GenerateInviteCode()
		if err != nil {
			return "", err
		}
		res, err := database.PostgresDB.ExecContext(ctx, `
			UPDATE communities SET invite_code = $2, updated_at = NOW()
			WHERE id = $1 AND NOT EXISTS (
				SELECT 1 FROM communities WHERE invite_code = $2 AND id <> $1
			)
		`, communityID, code)
		if err != nil {
			return "", err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return code, nil
		}
	}
	return "", errors.New("failed to generate a unique invite code")
}

// ListJoinRequests returns pending requests for admins to review.
func ListJoinRequests(ctx context.Context, communityID uuid.UUID) ([]models.JoinRequest, error) {
	rows, err := database.PostgresDB.QueryContext(ctx, `
		SELECT jr.id, jr.community_id, jr.user_id, u.username, jr.created_at
		FROM join_requests jr
		JOIN users u ON u.id = jr.user_id
		WHERE jr.community_id = $1
		ORDER BY jr.created_at DESC
	`, communityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []models.JoinRequest{}
	for rows.Next() {
		var jr models.JoinRequest
		if err := rows.Scan(&jr.ID, &jr.CommunityID, &jr.UserID, &jr.Username, &jr.CreatedAt); err != nil {
			return nil, err
		}
		requests = append(requests, jr)
	}
	return requests, rows.Err()
}

// ProcessJoinRequest approves or rejects a pending request. Either way the
// request row is deleted.
func ProcessJoinRequest(ctx context.Context, communityID, requestID uuid.UUID, approve bool) (string, error) {
	var userID uuid.UUID
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT user_id FROM join_requests WHERE id = $1 AND community_id = $2
	`, requestID, communityID).Scan(&userID)
	if err != nil {
		return "", err
	}

	if approve {
		if err := addMember(ctx, communityID, userID); err != nil {
			return "", err
		}
		return "User approved", nil
	}

	_, err = database.PostgresDB.ExecContext(ctx, `
		DELETE FROM join_requests WHERE id = $1
	`, requestID)
	if err != nil {
		return "", err
	}
	return "User rejected", nil
}

// ListMembers returns a paginated, optionally searched member list.
func ListMembers(ctx context.Context, communityID uuid.UUID, search string, limit, offset int) ([]models.Membership, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}

	rows, err := database.PostgresDB.QueryContext(ctx, `
		SELECT m.id, m.community_id, m.user_id, u.username, m.role, m.is_muted, m.joined_at
		FROM memberships m
		JOIN users u ON u.id = m.user_id
		WHERE m.community_id = $1
		  AND ($2 = '' OR u.username ILIKE '%' || $2 || '%' OR u.first_name ILIKE '%' || $2 || '%')
		ORDER BY m.joined_at ASC
		LIMIT $3 OFFSET $4
	`, communityID, search, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []models.Membership{}
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.ID, &m.CommunityID, &m.UserID, &m.Username, &m.Role, &m.IsMuted, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// AddMemberByUsernameOrEmail lets an admin add a user directly.
func AddMemberByUsernameOrEmail(ctx context.Context, communityID uuid.UUID, usernameOrEmail string) (string, bool, error) {
	var userID uuid.UUID
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT id FROM users WHERE (username = $1 OR email = $1) AND is_active = TRUE
	`, usernameOrEmail).Scan(&userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "User not found", false, nil
		}
		return "", false, err
	}

	if IsMember(ctx, communityID, userID) {
		return "User already in community", false, nil
	}
	if err := addMember(ctx, communityID, userID); err != nil {
		return "", false, err
	}
	return "Member added", true, nil
}

// LeaveCommunity removes the membership; the last member out deletes the
// community itself.
func LeaveCommunity(ctx context.Context, communityID, userID uuid.UUID) error {
	tx, err := database.PostgresDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM memberships WHERE community_id = $1 AND user_id = $2
	`, communityID, userID); err != nil {
		return err
	}

	var remaining int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM memberships WHERE community_id = $1
	`, communityID).Scan(&remaining); err != nil {
		return err
	}
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM communities WHERE id = $1`, communityID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ToggleMute flips the caller's mute flag and returns the new value.
func ToggleMute(ctx context.Context, communityID, userID uuid.UUID) (bool, error) {
	var muted bool
	err := database.PostgresDB.QueryRowContext(ctx, `
		UPDATE memberships SET is_muted = NOT is_muted
		WHERE community_id = $1 AND user_id = $2
		RETURNING is_muted
	`, communityID, userID).Scan(&muted)
	if err == sql.ErrNoRows {
		return false, ErrNotMember
	}
	return muted, err
}

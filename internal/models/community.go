package models

import (
	"time"

	"github.com/google/uuid"
)

// Membership roles.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Community mirrors a row in the communities table. The invite code rotates;
// an old code is never valid again after rotation.
type Community struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        *string   `json:"icon,omitempty"`
	IsPrivate   bool      `json:"is_private"`
	InviteCode  string    `json:"invite_code,omitempty"`
	MemberCount int       `json:"member_count,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Membership links a user to a community. Unique per (community, user).
type Membership struct {
	ID          uuid.UUID `json:"id"`
	CommunityID uuid.UUID `json:"community_id"`
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username,omitempty"`
	Role        string    `json:"role"`
	IsMuted     bool      `json:"is_muted"`
	JoinedAt    time.Time `json:"joined_at"`
}

// JoinRequest is a pending request to join a private community. Deleted on
// approval, rejection, or direct join.
type JoinRequest struct {
	ID          uuid.UUID `json:"id"`
	CommunityID uuid.UUID `json:"community_id"`
	UserID      uuid.UUID `json:"user_id"`
	Username    string    `json:"username,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CommunityMessage is a single message stored in the community_messages Mongo
// collection.
type CommunityMessage struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	CommunityID    string    `bson:"community_id" json:"community_id"`
	SenderID       string    `bson:"sender_id" json:"sender_id"`
	SenderUsername string    `bson:"sender_username,omitempty" json:"sender_username,omitempty"`
	Text           string    `bson:"text" json:"text"`
	ImageURL       string    `bson:"image_url,omitempty" json:"image_url,omitempty"`
	AudioURL       string    `bson:"audio_url,omitempty" json:"audio_url,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

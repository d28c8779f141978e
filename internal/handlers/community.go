package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/raihq/rai-backend/internal/middleware"
	"github.com/raihq/rai-backend/internal/models"
	"github.com/raihq/rai-backend/internal/services"
)

type createCommunityRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	IsPrivate   bool    `json:"is_private"`
	Icon        *string `json:"icon"`
}

type updateCommunityRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	IsPrivate   bool    `json:"is_private"`
	Icon        *string `json:"icon"`
}

type joinByCodeRequest struct {
	Code string `json:"code"`
}

type processRequestRequest struct {
	Action string `json:"action"` // "approve" or "reject"
}

type addMemberRequest struct {
	UsernameOrEmail string `json:"username_or_email"`
}

func communityIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "communityID"))
}

// CreateCommunity creates a community with the caller as admin.
func CreateCommunity(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	var req createCommunityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Community name is required")
		return
	}

	community, err := services.CreateCommunity(r.Context(), userID, req.Name, req.Description, req.IsPrivate, req.Icon)
	if err != nil {
		log.Printf("community create failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to create community")
		return
	}
	respondSuccess(w, http.StatusCreated, "Community created", community)
}

// ListMyCommunities returns the caller's communities.
func ListMyCommunities(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	communities, err := services.ListUserCommunities(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch communities")
		return
	}
	respondSuccess(w, http.StatusOK, "Communities fetched", communities)
}

// GetCommunityDetail returns one community. The invite code is only included
// for admins.
func GetCommunityDetail(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	communityID, err := communityIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid community id")
		return
	}

	community, err := services.GetCommunity(r.Context(), communityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Community not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to fetch community")
		return
	}

	if !services.IsMember(r.Context(), communityID, userID) {
		respondError(w, http.StatusForbidden, "Not a member of this community")
		return
	}
	if !services.IsCommunityAdmin(r.Context(), communityID, userID) {
		community.InviteCode = ""
	}
	respondSuccess(w, http.StatusOK, "Community fetched", community)
}

// UpdateCommunity applies admin edits.
func UpdateCommunity(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	communityID, err := communityIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid community id")
		return
	}
	if !services.IsCommunityAdmin(r.Context(), communityID, userID) {
		respondError(w, http.StatusForbidden, "Admin access required")
		return
	}

	var req updateCommunityRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Community name is required")
		return
	}

	if err := services.UpdateCommunity(r.Context(), communityID, req.Name, req.Description, req.IsPrivate, req.Icon); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update community")
		return
	}
	respondSuccess(w, http.StatusOK, "Community updated", nil)
}

// DeleteCommunity removes a community entirely. Admin only.
func DeleteCommunity(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	communityID, err := communityIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid community id")
		return
	}
	if !services.IsCommunityAdmin(r.Context(), communityID, userID) {
		respondError(w, http.StatusForbidden, "Admin access required")
		return
	}

	if err := services.DeleteCommunity(r.Context(), communityID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete community")
		return
	}
	respondSuccess(w, http.StatusOK, "Community deleted", nil)
}

// JoinCommunity joins a public community or queues a request for a private one.
func JoinCommunity(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	communityID, err := communityIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid community id")
		return
	}

	msg, _, err := services.JoinCommunity(r.Context(), communityID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Community not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to join community")
		return
	}
	respondSuccess(w, http.StatusOK, msg, nil)
}

// JoinByCode joins via a live invite code.
func JoinByCode(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	var req joinByCodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	if req.Code == "" {
		respondError(w, http.StatusBadRequest, "Invite code is required")
		return
	}

	community, msg, err := services.JoinByCode(r.Context(), req.Code, userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to join community")
		return
	}
	if community == nil {
		respondError(w, http.StatusNotFound, msg)
		return
	}
	respondSuccess(w, http.StatusOK, msg, community)
}

// RotateInviteCode replaces the invite code. Admin only; the old code dies
// immediately.
func RotateInviteCode(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	communityID, err := communityIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid community id")
		return
	}
	if !services.IsCommunityAdmin(r.Context(), communityID, userID) {
		respondError(w, http.StatusForbidden, "Admin access required")
		return
	}

	code, err := services.RotateInviteCode(r.Context(), communityID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to rotate invite code")
		return
	}
	respondSuccess(w, http.StatusOK, "Invite code rotated", map[string]string{"invite_code": code})
}

// ListJoinRequests returns pending join requests. Admin only.
func ListJoinRequests(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	communityID, err := communityIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid community id")
		return
	}
	if !services.IsCommunityAdmin(r.Context(), communityID, userID) {
		respondError(w, http.StatusForbidden, "Admin access required")
		return
	}

	requests, err := services.ListJoinRequests(r.Context(), communityID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch join requests")
		return
	}
	respondSuccess(w, http.StatusOK, "Join requests fetched", requests)
}

// ProcessJoinRequest approves or rejects a pending request. Admin only.
func ProcessJoinRequest(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	communityID, err := communityIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid community id")
		return
	}
	requestID, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request id")
		return
	}
	if !services.IsCommunityAdmin(r.Context(), communityID, userID) {
		respondError(w, http.StatusForbidden, "Admin access required")
		return
	}

	var req processRequestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Action != "approve" && req.Action != "reject" {
		respondError(w, http.StatusBadRequest, "Action must be approve or reject")
		return
	}

	msg, err := services.ProcessJoinRequest(r.Context(), communityID, requestID, req.Action == "approve")
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Join request not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to process join request")
		return
	}
	respondSuccess(w, http.StatusOK, msg, nil)
}

// ListMembers returns the member list with optional search and pagination.
func ListMembers(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	communityID, err := communityIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid community id")
		return
	}
	if !services.IsMember(r.Context(), communityID, userID) {
		respondError(w, http.StatusForbidden, "Not a member of this community")
		return
	}

	search := strings.TrimSpace(r.URL.Query().Get("search"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 30
	}

	members, err := services.ListMembers(r.Context(), communityID, search, limit, (page-1)*limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch members")
		return
	}
	respondSuccess(w, http.StatusOK, "Members fetched", members)
}

// AddMember lets an admin add a user directly by username or email.
func AddMember(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	communityID, err := communityIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid community id")
		return
	}
	if !services.IsCommunityAdmin(r.Context(), communityID, userID) {
		respondError(w, http.StatusForbidden, "Admin access required")
		return
	}

	var req addMemberRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.UsernameOrEmail = strings.TrimSpace(req.UsernameOrEmail)
	if req.UsernameOrEmail == "" {
		respondError(w, http.StatusBadRequest, "username_or_email is required")
		return
	}

	msg, ok, err := services.AddMemberByUsernameOrEmail(r.Context(), communityID, req.UsernameOrEmail)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to add member")
		return
	}
	if !ok {
		respondError(w, http.StatusBadRequest, msg)
		return
	}
	respondSuccess(w, http.StatusOK, msg, nil)
}

// LeaveCommunity removes the caller; the last member out deletes the community.
func LeaveCommunity(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	communityID, err := communityIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid community id")
		return
	}
	if !services.IsMember(r.Context(), communityID, userID) {
		respondError(w, http.StatusForbidden, "Not a member of this community")
		return
	}

	if err := services.LeaveCommunity(r.Context(), communityID, userID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to leave community")
		return
	}
	respondSuccess(w, http.StatusOK, "Left community", nil)
}

// ToggleMute flips the caller's notification mute for the community.
func ToggleMute(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	communityID, err := communityIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid community id")
		return
	}

	muted, err := services.ToggleMute(r.Context(), communityID, userID)
	if err != nil {
		if errors.Is(err, services.ErrNotMember) {
			respondError(w, http.StatusForbidden, "Not a member of this community")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to toggle mute")
		return
	}
	respondSuccess(w, http.StatusOK, "Mute toggled", map[string]bool{"is_muted": muted})
}

// GetCommunityMessages returns paginated history for members.
func GetCommunityMessages(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	communityID, err := communityIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid community id")
		return
	}
	if !services.IsMember(r.Context(), communityID, userID) {
		respondError(w, http.StatusForbidden, "Not a member of this community")
		return
	}

	var before *time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		parsed, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			respondError(w, http.StatusBadRequest, "before must be RFC3339")
			return
		}
		before = &parsed
	}
	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)

	messages, err := services.LoadCommunityHistoryWithCache(r.Context(), communityID.String(), before, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}
	respondSuccess(w, http.StatusOK, "Messages fetched", messages)
}

// UploadCommunityMedia uploads an image or voice note and broadcasts it to the
// room as a message in one step.
func UploadCommunityMedia(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	communityID, err := communityIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid community id")
		return
	}
	if !services.IsMember(r.Context(), communityID, userID) {
		respondError(w, http.StatusForbidden, "Not a member of this community")
		return
	}
	if !services.MediaConfigured() {
		respondError(w, http.StatusServiceUnavailable, "Media uploads are not configured")
		return
	}

	if err := r.ParseMultipartForm(services.MaxAudioUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	var imageURL, audioURL string
	if _, header, ferr := r.FormFile("image"); ferr == nil {
		imageURL, err = services.Media.UploadImage(r.Context(), header, services.FolderChatImages)
	} else if _, header, ferr := r.FormFile("audio"); ferr == nil {
		audioURL, err = services.Media.UploadAudio(r.Context(), header, services.FolderChatAudio)
	} else {
		respondError(w, http.StatusBadRequest, "An image or audio file is required")
		return
	}
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedMediaType) {
			respondError(w, http.StatusUnsupportedMediaType, "Unsupported media type")
			return
		}
		log.Printf("community media upload failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Upload failed")
		return
	}

	user, err := services.GetUserByID(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to load sender")
		return
	}
	sender := &services.EventUser{ID: userID.String(), Username: user.Username}
	if user.ProfilePicture != nil {
		sender.ProfilePicture = *user.ProfilePicture
	}

	text := strings.TrimSpace(r.FormValue("text"))
	saved, err := services.SaveCommunityMessage(r.Context(), models.CommunityMessage{
		CommunityID:    communityID.String(),
		SenderID:       sender.ID,
		SenderUsername: sender.Username,
		Text:           text,
		ImageURL:       imageURL,
		AudioURL:       audioURL,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to save message")
		return
	}

	services.PushCommunityMessageToCache(saved)
	services.PublishChatEvent(r.Context(), services.ChatEvent{
		Type:      services.EventTypeChatMessage,
		Topic:     services.TopicCommunityPrefix + communityID.String(),
		ID:        saved.ID,
		Message:   saved.Text,
		User:      sender,
		ImageURL:  saved.ImageURL,
		AudioURL:  saved.AudioURL,
		Timestamp: saved.CreatedAt,
	})

	respondSuccess(w, http.StatusCreated, "Media uploaded", saved)
}

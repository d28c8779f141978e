package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/raihq/rai-backend/internal/middleware"
	"github.com/raihq/rai-backend/internal/models"
	"github.com/raihq/rai-backend/internal/services"
)

// ListConversations returns the user's active conversations, cached for the
// list TTL and invalidated on any write.
func ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	cacheKey := services.ConversationListKey(userID.String())

	var cached []models.Conversation
	if hit, err := services.Cache.Get(r.Context(), cacheKey, &cached); err == nil && hit {
		respondSuccess(w, http.StatusOK, "Conversations fetched", cached)
		return
	}

	conversations, err := services.GetUserConversations(r.Context(), userID)
	if err != nil {
		log.Printf("conversation list failed for %s: %v", userID, err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch conversations")
		return
	}

	services.Cache.Set(r.Context(), cacheKey, conversations)
	respondSuccess(w, http.StatusOK, "Conversations fetched", conversations)
}

// GetConversationMessages returns up to limit recent turns in chronological
// order.
func GetConversationMessages(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid conversation id")
		return
	}

	if _, err := services.GetConversation(r.Context(), conversationID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to fetch conversation")
		return
	}

	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	messages, err := services.LoadConversationHistory(r.Context(), conversationID.String(), limit, "")
	if err != nil {
		log.Printf("conversation history failed for %s: %v", conversationID, err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}
	respondSuccess(w, http.StatusOK, "Messages fetched", messages)
}

// DeleteConversation soft-deletes a conversation the user owns.
func DeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	conversationID, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid conversation id")
		return
	}

	if err := services.SoftDeleteConversation(r.Context(), conversationID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to delete conversation")
		return
	}
	respondSuccess(w, http.StatusOK, "Conversation deleted", nil)
}

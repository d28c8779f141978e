package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/raihq/rai-backend/internal/models"
	"github.com/raihq/rai-backend/internal/services"
)

// CommunityWebSocket is the group chat socket. Membership is checked before
// any history leaves the server.
func CommunityWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := chatUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	userID, err := services.JWT.UserIDFromAccessToken(wsToken(r))
	if err != nil {
		closeWith(conn, CloseUnauthorized, "authentication required")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	communityID, err := uuid.Parse(chi.URLParam(r, "communityID"))
	if err != nil {
		closeWith(conn, CloseNotFound, "community not found")
		return
	}
	if _, err := services.GetCommunity(ctx, communityID); err != nil {
		closeWith(conn, CloseNotFound, "community not found")
		return
	}
	if !services.IsMember(ctx, communityID, userID) {
		closeWith(conn, CloseForbidden, "not a member of this community")
		return
	}
	defer conn.Close()

	user, err := services.GetUserByID(ctx, userID)
	if err != nil {
		closeWith(conn, CloseUnauthorized, "authentication required")
		return
	}
	sender := &services.EventUser{ID: userID.String(), Username: user.Username}
	if user.ProfilePicture != nil {
		sender.ProfilePicture = *user.ProfilePicture
	}

	topic := services.TopicCommunityPrefix + communityID.String()
	eventsCh, unsubscribe := services.Hub.Subscribe(topic)
	defer unsubscribe()

	go func() {
		for evt := range eventsCh {
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		}
	}()

	if history, err := services.LoadCommunityHistoryWithCache(ctx, communityID.String(), nil, services.HistoryPageSize); err == nil {
		conn.WriteJSON(services.ChatEvent{
			Type:     services.EventTypeHistory,
			Messages: history,
		})
	}

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsReadDeadline))

		var msg chatClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.kind() {
		case "message":
			if !wsAllowEvent(ctx, userID) {
				conn.WriteJSON(services.ChatEvent{
					Type:    services.EventTypeError,
					Message: "Rate limit exceeded. Please slow down.",
				})
				continue
			}

			text, verr := services.ValidateMessage(msg.Message)
			if verr != nil && msg.ImageID == "" && msg.AudioID == "" {
				conn.WriteJSON(services.ChatEvent{
					Type:    services.EventTypeError,
					Message: verr.Error(),
				})
				continue
			}

			handleCommunityMessage(ctx, conn, communityID.String(), sender, text, msg.ImageID, msg.AudioID)
		case "ping":
			conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		default:
			// Ignore unknown types
		}
	}
}

// handleCommunityMessage persists and broadcasts one group message.
func handleCommunityMessage(ctx context.Context, conn *websocket.Conn, communityID string, sender *services.EventUser, text, imageURL, audioURL string) {
	saved, err := services.SaveCommunityMessage(ctx, models.CommunityMessage{
		CommunityID:    communityID,
		SenderID:       sender.ID,
		SenderUsername: sender.Username,
		Text:           text,
		ImageURL:       imageURL,
		AudioURL:       audioURL,
	})
	if err != nil {
		conn.WriteJSON(services.ChatEvent{
			Type:    services.EventTypeError,
			Message: "Failed to save message",
		})
		return
	}

	services.PushCommunityMessageToCache(saved)

	if err := services.PublishChatEvent(ctx, services.ChatEvent{
		Type:      services.EventTypeChatMessage,
		Topic:     services.TopicCommunityPrefix + communityID,
		ID:        saved.ID,
		Message:   saved.Text,
		User:      sender,
		ImageURL:  saved.ImageURL,
		AudioURL:  saved.AudioURL,
		Timestamp: saved.CreatedAt,
	}); err != nil {
		log.Printf("community ws: broadcast failed for %s: %v", communityID, err)
	}
}

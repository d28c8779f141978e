package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/raihq/rai-backend/internal/database"
	"github.com/raihq/rai-backend/internal/models"
	"github.com/raihq/rai-backend/internal/services"
)

// Application close codes, sent after the upgrade completes so browser
// clients can read them.
const (
	CloseUnauthorized = 4001
	CloseForbidden    = 4003
	CloseNotFound     = 4004
)

var chatUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin policy is enforced by the CORS layer on the HTTP side.
		return true
	},
}

const (
	wsReadLimit    = 64 * 1024
	wsReadDeadline = 90 * time.Second

	// Per-user event budget over a sliding minute, shared by both sockets.
	wsRateKeyPrefix = "ws_rate:"
	wsRateWindow    = time.Minute
	wsRateMax       = 20
)

// chatClientMessage is what the frontend sends over either chat socket. The
// media ids are the URLs handed back by the upload endpoints.
type chatClientMessage struct {
	Type    string `json:"type"` // "ping", or omitted for a chat turn
	Message string `json:"message"`
	ImageID string `json:"image_id"`
	AudioID string `json:"audio_id"`
}

// kind normalizes the frame type: a frame carrying content and no explicit
// type is a chat turn.
func (m chatClientMessage) kind() string {
	if m.Type == "" && (m.Message != "" || m.ImageID != "" || m.AudioID != "") {
		return "message"
	}
	return m.Type
}

func wsToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	conn.Close()
}

// wsAllowEvent applies the per-user sliding event limit in Redis. Fails open
// when Redis is unavailable.
func wsAllowEvent(ctx context.Context, userID uuid.UUID) bool {
	key := wsRateKeyPrefix + userID.String()
	count, err := database.RedisClient.Incr(ctx, key).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		database.RedisClient.Expire(ctx, key, wsRateWindow)
	}
	return count <= wsRateMax
}

// AIChatWebSocket is the 1:1 assistant socket. Connecting with a
// conversation_id resumes it; connecting without one lazily creates a
// conversation on the first message and announces it with an init event.
func AIChatWebSocket(w http.ResponseWriter, r *http.Request) {
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

	var conversationID string
	if raw := r.URL.Query().Get("conversation_id"); raw != "" {
		convID, err := uuid.Parse(raw)
		if err != nil {
			closeWith(conn, CloseNotFound, "conversation not found")
			return
		}

		var ownerID uuid.UUID
		err = database.PostgresDB.QueryRowContext(ctx, `
			SELECT user_id FROM conversations WHERE id = $1 AND is_active = TRUE
		`, convID).Scan(&ownerID)
		if err == sql.ErrNoRows {
			closeWith(conn, CloseNotFound, "conversation not found")
			return
		}
		if err != nil {
			closeWith(conn, CloseNotFound, "conversation not found")
			return
		}
		if ownerID != userID {
			closeWith(conn, CloseForbidden, "not your conversation")
			return
		}
		conversationID = convID.String()
	}
	defer conn.Close()

	var eventsCh <-chan services.ChatEvent
	var unsubscribe func()
	defer func() {
		if unsubscribe != nil {
			unsubscribe()
		}
	}()

	startWriter := func(ch <-chan services.ChatEvent) {
		go func() {
			for evt := range ch {
				if err := conn.WriteJSON(evt); err != nil {
					return
				}
			}
		}()
	}

	if conversationID != "" {
		eventsCh, unsubscribe = services.Hub.Subscribe(services.TopicConversationPrefix + conversationID)
		startWriter(eventsCh)

		history, err := services.LoadConversationHistory(ctx, conversationID, services.HistoryPageSize, "")
		if err == nil {
			conn.WriteJSON(services.ChatEvent{
				Type:           services.EventTypeHistory,
				ConversationID: conversationID,
				Messages:       history,
			})
		}
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
			if verr != nil && msg.ImageID == "" {
				conn.WriteJSON(services.ChatEvent{
					Type:    services.EventTypeError,
					Message: verr.Error(),
				})
				continue
			}

			// Lazy conversation creation on the first message.
			if conversationID == "" {
				created, cerr := services.CreateConversation(ctx, userID)
				if cerr != nil {
					log.Printf("ws chat: conversation create failed for %s: %v", userID, cerr)
					conn.WriteJSON(services.ChatEvent{
						Type:    services.EventTypeError,
						Message: "Failed to start conversation",
					})
					continue
				}
				conversationID = created.ID.String()
				services.Cache.Delete(ctx, services.ConversationListKey(userID.String()))

				eventsCh, unsubscribe = services.Hub.Subscribe(services.TopicConversationPrefix + conversationID)
				startWriter(eventsCh)

				conn.WriteJSON(services.ChatEvent{
					Type:           services.EventTypeInit,
					ConversationID: conversationID,
				})
			}

			handleAIChatMessage(ctx, conn, userID, conversationID, text, msg.ImageID)
		case "ping":
			conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		default:
			// Ignore unknown types
		}
	}
}

// handleAIChatMessage persists the user turn, echoes it to the room, and
// queues the assistant reply so the socket never waits on the provider.
func handleAIChatMessage(ctx context.Context, conn *websocket.Conn, userID uuid.UUID, conversationID, text, imageURL string) {
	isFirstTurn := false
	if count, err := services.CountConversationMessages(ctx, conversationID); err == nil && count == 0 {
		isFirstTurn = true
	}

	saved, err := services.SaveConversationMessage(ctx, models.ConversationMessage{
		ConversationID: conversationID,
		Sender:         models.SenderUser,
		Text:           text,
		ImageURL:       imageURL,
	})
	if err != nil {
		conn.WriteJSON(services.ChatEvent{
			Type:    services.EventTypeError,
			Message: "Failed to save message",
		})
		return
	}

	convID, _ := uuid.Parse(conversationID)
	if err := services.TouchConversation(ctx, convID); err != nil {
		log.Printf("ws chat: touch failed for %s: %v", conversationID, err)
	}

	services.PublishChatEvent(ctx, services.ChatEvent{
		Type:           services.EventTypeChatMessage,
		Topic:          services.TopicConversationPrefix + conversationID,
		ConversationID: conversationID,
		ID:             saved.ID,
		Message:        saved.Text,
		Sender:         models.SenderUser,
		ImageURL:       saved.ImageURL,
		Timestamp:      saved.CreatedAt,
	})

	if err := services.EnqueueAITask(ctx, services.AITask{
		ConversationID: conversationID,
		UserID:         userID.String(),
		MessageID:      saved.ID,
		Text:           text,
		ImageURL:       imageURL,
		IsFirstTurn:    isFirstTurn,
	}); err != nil {
		log.Printf("ws chat: enqueue failed for %s: %v", conversationID, err)
		conn.WriteJSON(services.ChatEvent{
			Type:    services.EventTypeError,
			Message: "AI service is busy. Please try again.",
		})
	}
}

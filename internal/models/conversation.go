package models

import (
	"time"

	"github.com/google/uuid"
)

// Sender kinds for conversation messages.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)

// Conversation mirrors a row in the conversations table. The cumulative token
// counter is only ever updated under a row lock (see services.ApplyAssistantReply).
type Conversation struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	Title           string    `json:"title"`
	IsActive        bool      `json:"is_active"`
	TotalTokensUsed int64     `json:"total_tokens_used"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DefaultConversationTitle is the placeholder until the title task runs.
const DefaultConversationTitle = "New Chat"

// ConversationMessage is a single turn stored in the conversation_messages
// Mongo collection. Immutable once written, except the text patch applied when
// an image-only message is annotated later.
type ConversationMessage struct {
	ID             string    `bson:"_id,omitempty" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	Sender         string    `bson:"sender" json:"sender"`
	Text           string    `bson:"text" json:"text"`
	ImageURL       string    `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Tokens         int       `bson:"tokens,omitempty" json:"tokens,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

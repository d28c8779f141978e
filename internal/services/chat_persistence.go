package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/raihq/rai-backend/internal/database"
	"github.com/raihq/rai-backend/internal/models"
)

const (
	conversationMessagesCollection = "conversation_messages"
	communityMessagesCollection    = "community_messages"
)

// HistoryPageSize is the bounded history snapshot sent on WebSocket join.
const HistoryPageSize = 50

// EnsureChatIndexes configures indexes for both message collections.
// Called on startup from main after Mongo has connected.
func EnsureChatIndexes(ctx context.Context) error {
	indexes := map[string]mongo.IndexModel{
		conversationMessagesCollection: {
			Keys: bson.D{
				{Key: "conversation_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_conversation_created"),
		},
		communityMessagesCollection: {
			Keys: bson.D{
				{Key: "community_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_community_created"),
		},
	}

	for collection, model := range indexes {
		if _, err := database.DB.Collection(collection).Indexes().CreateOne(ctx, model); err != nil {
			return err
		}
	}
	return nil
}

// SaveConversationMessage persists one AI chat turn and returns it with its id.
func SaveConversationMessage(ctx context.Context, msg models.ConversationMessage) (models.ConversationMessage, error) {
	if msg.ID == "" {
		msg.ID = primitive.NewObjectID().Hex()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := database.DB.Collection(conversationMessagesCollection).InsertOne(ctx, msg)
	return msg, err
}

// GetConversationMessage loads one message by id, scoped to its conversation.
func GetConversationMessage(ctx context.Context, conversationID, messageID string) (*models.ConversationMessage, error) {
	var msg models.ConversationMessage
	err := database.DB.Collection(conversationMessagesCollection).FindOne(ctx, bson.M{
		"_id":             messageID,
		"conversation_id": conversationID,
	}).Decode(&msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// PatchConversationMessageText applies the one allowed mutation: annotating an
// image-only message with transcribed or generated text.
func PatchConversationMessageText(ctx context.Context, messageID, text string) error {
	_, err := database.DB.Collection(conversationMessagesCollection).UpdateOne(ctx,
		bson.M{"_id": messageID},
		bson.M{"$set": bson.M{"text": text}},
	)
	return err
}

// LoadConversationHistory returns up to limit recent turns in chronological
// order. excludeID drops the pending image message from the context window.
func LoadConversationHistory(ctx context.Context, conversationID string, limit int64, excludeID string) ([]models.ConversationMessage, error) {
	if limit <= 0 || limit > 100 {
		limit = HistoryPageSize
	}

	filter := bson.M{"conversation_id": conversationID}
	if excludeID != "" {
		filter["_id"] = bson.M{"$ne": excludeID}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := database.DB.Collection(conversationMessagesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var newestFirst []models.ConversationMessage
	if err := cursor.All(ctx, &newestFirst); err != nil {
		return nil, err
	}

	// Query is newest-first for the index; callers want chronological.
	out := make([]models.ConversationMessage, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		out = append(out, newestFirst[i])
	}
	return out, nil
}

// CountConversationMessages returns how many turns a conversation holds.
func CountConversationMessages(ctx context.Context, conversationID string) (int64, error) {
	return database.DB.Collection(conversationMessagesCollection).CountDocuments(ctx, bson.M{
		"conversation_id": conversationID,
	})
}

// SaveCommunityMessage persists one community chat message.
func SaveCommunityMessage(ctx context.Context, msg models.CommunityMessage) (models.CommunityMessage, error) {
	if msg.ID == "" {
		msg.ID = primitive.NewObjectID().Hex()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	_, err := database.DB.Collection(communityMessagesCollection).InsertOne(ctx, msg)
	return msg, err
}

// LoadCommunityHistory returns paginated community history in chronological
// order. before==nil means the initial page.
func LoadCommunityHistory(ctx context.Context, communityID string, before *time.Time, limit int64) ([]models.CommunityMessage, error) {
	if limit <= 0 || limit > 100 {
		limit = HistoryPageSize
	}

	filter := bson.M{"community_id": communityID}
	if before != nil {
		filter["created_at"] = bson.M{"$lt": before.UTC()}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := database.DB.Collection(communityMessagesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var newestFirst []models.CommunityMessage
	if err := cursor.All(ctx, &newestFirst); err != nil {
		return nil, err
	}

	out := make([]models.CommunityMessage, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		out = append(out, newestFirst[i])
	}
	return out, nil
}

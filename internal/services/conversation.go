package services

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/raihq/rai-backend/internal/database"
	"github.com/raihq/rai-backend/internal/models"
)

// GetUserConversations lists a user's active conversations, most recently
// touched first.
func GetUserConversations(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	rows, err := database.PostgresDB.QueryContext(ctx, `
		SELECT id, user_id, title, is_active, total_tokens_used, created_at, updated_at
		FROM conversations
		WHERE user_id = $1 AND is_active = TRUE
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.IsActive, &c.TotalTokensUsed, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// GetConversation loads one active conversation owned by the user. Returns
// sql.ErrNoRows when missing or owned by someone else.
func GetConversation(ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT id, user_id, title, is_active, total_tokens_used, created_at, updated_at
		FROM conversations
		WHERE id = $1 AND user_id = $2 AND is_active = TRUE
	`, conversationID, userID).Scan(&c.ID, &c.UserID, &c.Title, &c.IsActive, &c.TotalTokensUsed, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateConversation opens a new conversation with the placeholder title.
func CreateConversation(ctx context.Context, userID uuid.UUID) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := database.PostgresDB.QueryRowContext(ctx, `
		INSERT INTO conversations (user_id, title)
		VALUES ($1, $2)
		RETURNING id, user_id, title, is_active, total_tokens_used, created_at, updated_at
	`, userID, models.DefaultConversationTitle).Scan(
		&c.ID, &c.UserID, &c.Title, &c.IsActive, &c.TotalTokensUsed, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SoftDeleteConversation flips the active flag. Returns sql.ErrNoRows when the
// conversation does not exist or belongs to another user.
func SoftDeleteConversation(ctx context.Context, conversationID, userID uuid.UUID) error {
	res, err := database.PostgresDB.ExecContext(ctx, `
		UPDATE conversations SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND is_active = TRUE
	`, conversationID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}

	Cache.Delete(ctx, ConversationListKey(userID.String()))
	return nil
}

// TouchConversation bumps the activity timestamp under a row lock, so
// concurrent turns finishing out of order don't clobber each other.
func TouchConversation(ctx context.Context, conversationID uuid.UUID) error {
	tx, err := database.PostgresDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		SELECT id FROM conversations WHERE id = $1 FOR UPDATE
	`, conversationID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET updated_at = NOW() WHERE id = $1
	`, conversationID); err != nil {
		return err
	}
	return tx.Commit()
}

// ApplyAssistantReply accumulates provider token usage onto the conversation
// counter. The row lock makes N concurrent replies add up to exactly the sum
// of their increments.
func ApplyAssistantReply(ctx context.Context, conversationID uuid.UUID, tokens int) error {
	tx, err := database.PostgresDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		SELECT id FROM conversations WHERE id = $1 FOR UPDATE
	`, conversationID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations
		SET total_tokens_used = total_tokens_used + $2, updated_at = NOW()
		WHERE id = $1
	`, conversationID, tokens); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateConversationTitle persists a generated title.
func UpdateConversationTitle(ctx context.Context, conversationID uuid.UUID, title string) error {
	_, err := database.PostgresDB.ExecContext(ctx, `
		UPDATE conversations SET title = $2, updated_at = NOW() WHERE id = $1
	`, conversationID, title)
	return err
}

// ConversationNeedsTitle reports whether the conversation still carries the
// placeholder title.
func ConversationNeedsTitle(ctx context.Context, conversationID uuid.UUID) bool {
	var title string
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT title FROM conversations WHERE id = $1 AND is_active = TRUE
	`, conversationID).Scan(&title)
	return err == nil && title == models.DefaultConversationTitle
}

package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/raihq/rai-backend/internal/database"
	"github.com/raihq/rai-backend/internal/models"
)

// aiTaskQueue is the Redis list backing the background task queue. Producers
// LPUSH, workers BRPOP, so the list behaves FIFO.
const aiTaskQueue = "tasks:ai"

const (
	brpopTimeout      = 5 * time.Second
	imageFetchTimeout = 20 * time.Second
	imageFetchMaxSize = 10 << 20 // 10 MiB
)

// AITask is one queued unit of work: generate the assistant reply (and, on the
// first turn, a title) for a user message that is already persisted.
type AITask struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	MessageID      string `json:"message_id"`
	Text           string `json:"text"`
	ImageURL       string `json:"image_url,omitempty"`
	IsFirstTurn    bool   `json:"is_first_turn"`
}

// EnqueueAITask pushes a task onto the queue. The WebSocket handler calls this
// after persisting the user turn so the socket never blocks on the provider.
func EnqueueAITask(ctx context.Context, task AITask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return database.RedisClient.LPush(ctx, aiTaskQueue, data).Err()
}

// StartAIWorkers launches n workers that block-pop the queue. Workers stop
// when ctx is cancelled.
func StartAIWorkers(ctx context.Context, n int) {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		go runAIWorker(ctx, i)
	}
	log.Printf("✅ Started %d AI task workers (queue: %s)", n, aiTaskQueue)
}

func runAIWorker(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := database.RedisClient.BRPop(ctx, brpopTimeout, aiTaskQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			log.Printf("AI worker %d: queue pop failed: %v", id, err)
			time.Sleep(time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}

		var task AITask
		if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
			log.Printf("AI worker %d: dropping malformed task: %v", id, err)
			continue
		}

		if err := processAITask(ctx, task); err != nil {
			log.Printf("AI worker %d: task for conversation %s failed: %v", id, task.ConversationID, err)
		}
	}
}

func processAITask(ctx context.Context, task AITask) error {
	topic := TopicConversationPrefix + task.ConversationID

	text, err := ValidateMessage(task.Text)
	if err != nil && task.ImageURL == "" {
		publishTaskError(ctx, topic, task.ConversationID, "Message could not be processed.")
		return err
	}

	// Title generation happens once, on the first turn, before the reply so
	// the client sees the rename alongside the answer.
	if task.IsFirstTurn && ConversationNeedsTitle(ctx, mustParse(task.ConversationID)) {
		generateConversationTitle(ctx, task, topic)
	}

	var imageDataURI string
	if task.ImageURL != "" {
		imageDataURI, err = fetchImageDataURI(ctx, task.ImageURL)
		if err != nil {
			log.Printf("AI task: image fetch failed, continuing text-only: %v", err)
			imageDataURI = ""
		}
	}

	history, err := LoadConversationHistory(ctx, task.ConversationID, ContextWindowSize, task.MessageID)
	if err != nil {
		publishTaskError(ctx, topic, task.ConversationID, "AI service is busy. Please try again.")
		return err
	}

	messages := BuildContextWindow(history, text, imageDataURI)

	var reply string
	var tokens int
	err = DefaultRetryPolicy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		reply, tokens, callErr = AI.Complete(ctx, messages)
		return callErr
	}, IsTransientProviderError)
	if err != nil {
		publishTaskError(ctx, topic, task.ConversationID, "AI service is busy. Please try again.")
		return err
	}

	saved, err := SaveConversationMessage(ctx, models.ConversationMessage{
		ConversationID: task.ConversationID,
		Sender:         models.SenderAssistant,
		Text:           reply,
		Tokens:         tokens,
	})
	if err != nil {
		return err
	}

	if err := ApplyAssistantReply(ctx, mustParse(task.ConversationID), tokens); err != nil {
		log.Printf("AI task: token accounting failed for %s: %v", task.ConversationID, err)
	}
	Cache.Delete(ctx, ConversationListKey(task.UserID))

	return PublishChatEvent(ctx, ChatEvent{
		Type:           EventTypeChatMessage,
		Topic:          topic,
		ConversationID: task.ConversationID,
		ID:             saved.ID,
		Message:        saved.Text,
		Sender:         models.SenderAssistant,
		Timestamp:      saved.CreatedAt,
	})
}

func generateConversationTitle(ctx context.Context, task AITask, topic string) {
	var title string
	err := DefaultRetryPolicy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		title, callErr = AI.GenerateTitle(ctx, task.Text)
		return callErr
	}, IsTransientProviderError)
	if err != nil {
		// The conversation keeps its placeholder title; next first-turn-like
		// message won't retry since IsFirstTurn is gone. Acceptable loss.
		log.Printf("AI task: title generation failed for %s: %v", task.ConversationID, err)
		return
	}

	if err := UpdateConversationTitle(ctx, mustParse(task.ConversationID), title); err != nil {
		log.Printf("AI task: title save failed for %s: %v", task.ConversationID, err)
		return
	}
	Cache.Delete(ctx, ConversationListKey(task.UserID))

	if err := PublishChatEvent(ctx, ChatEvent{
		Type:           EventTypeTitleUpdated,
		Topic:          topic,
		ConversationID: task.ConversationID,
		Title:          title,
	}); err != nil {
		log.Printf("AI task: title broadcast failed for %s: %v", task.ConversationID, err)
	}
}

func publishTaskError(ctx context.Context, topic, conversationID, message string) {
	if err := PublishChatEvent(ctx, ChatEvent{
		Type:           EventTypeError,
		Topic:          topic,
		ConversationID: conversationID,
		Message:        message,
	}); err != nil {
		log.Printf("AI task: error broadcast failed for %s: %v", conversationID, err)
	}
}

// mustParse converts queue payload ids back to UUIDs. Producers only enqueue
// ids that came from the database, so a parse failure yields the nil UUID and
// the downstream query simply matches nothing.
func mustParse(s string) uuid.UUID {
	id, _ := uuid.Parse(s)
	return id
}

// fetchImageDataURI downloads a stored image and inlines it as a base64 data
// URI for the multimodal completion call.
func fetchImageDataURI(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, imageFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, imageFetchMaxSize))
	if err != nil {
		return "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

package services

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/raihq/rai-backend/internal/database"
)

// Event types pushed to WebSocket clients.
const (
	EventTypeHistory      = "history"
	EventTypeInit         = "init"
	EventTypeChatMessage  = "chat_message"
	EventTypeTitleUpdated = "title_updated"
	EventTypeError        = "error"
)

// Room topic prefixes. A topic names one broadcast scope: either a
// conversation (1:1 user/assistant) or a community.
const (
	TopicConversationPrefix = "chat:"
	TopicCommunityPrefix    = "community:"
)

const redisRoomChannelPrefix = "room:"

// EventUser identifies a community message sender on the wire.
type EventUser struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}

// ChatEvent is the payload broadcast over Redis and WebSocket. Topic is
// routing metadata carried by the Redis channel name, not the JSON body.
type ChatEvent struct {
	Type           string      `json:"type"`
	Topic          string      `json:"-"`
	ConversationID string      `json:"conversation_id,omitempty"`
	ID             string      `json:"id,omitempty"`
	Message        string      `json:"message,omitempty"`
	Sender         string      `json:"sender,omitempty"`
	User           *EventUser  `json:"user,omitempty"`
	ImageURL       string      `json:"image_id,omitempty"`
	AudioURL       string      `json:"audio_id,omitempty"`
	Title          string      `json:"title,omitempty"`
	Messages       interface{} `json:"messages,omitempty"`
	Timestamp      time.Time   `json:"timestamp,omitempty"`
}

// subscriberBuffer bounds per-connection event queues; a subscriber that
// cannot keep up drops events rather than blocking the fan-out.
const subscriberBuffer = 16

// ChatHub fans events out to local WebSocket connections grouped by topic.
// Cross-instance delivery rides the Redis subscriber below.
type ChatHub struct {
	mu   sync.RWMutex
	subs map[string]map[chan ChatEvent]struct{}
}

func NewChatHub() *ChatHub {
	return &ChatHub{subs: make(map[string]map[chan ChatEvent]struct{})}
}

// Subscribe registers interest in a topic. The returned cancel func must be
// called on disconnect.
func (h *ChatHub) Subscribe(topic string) (<-chan ChatEvent, func()) {
	ch := make(chan ChatEvent, subscriberBuffer)

	h.mu.Lock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[chan ChatEvent]struct{})
	}
	h.subs[topic][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[topic]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, topic)
			}
		}
		h.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}

// Publish delivers an event to all local subscribers of its topic.
func (h *ChatHub) Publish(event ChatEvent) {
	if event.Topic == "" {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[event.Topic] {
		select {
		case ch <- event:
		default:
			log.Printf("chat hub: dropping event for slow subscriber on %s", event.Topic)
		}
	}
}

// Hub is the process-wide connection registry.
var Hub = NewChatHub()

var redisSubscriberStarted sync.Once

// StartRedisChatSubscriber ensures a single shared Redis listener per instance.
func StartRedisChatSubscriber(ctx context.Context) {
	redisSubscriberStarted.Do(func() {
		go runRedisSubscriber(ctx)
	})
}

func runRedisSubscriber(ctx context.Context) {
	client := database.RedisClient
	if client == nil {
		log.Println("Redis client not initialized; chat subscriber not started")
		return
	}

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			pubsub := client.PSubscribe(ctx, redisRoomChannelPrefix+"*")
			defer pubsub.Close()

			log.Println("✅ Chat Redis subscriber started (pattern: room:*)")

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Printf("Redis subscriber error: %v", err)
					time.Sleep(backoff)
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					return
				}

				backoff = time.Second

				var event ChatEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Printf("failed to unmarshal chat event: %v", err)
					continue
				}
				event.Topic = strings.TrimPrefix(msg.Channel, redisRoomChannelPrefix)

				Hub.Publish(event)
			}
		}()
	}
}

// PublishChatEvent publishes an event to the room's broadcast topic. Every
// broadcast, whether from a connection handler or a task worker, goes through
// here so delivery works across instances.
func PublishChatEvent(ctx context.Context, event ChatEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return database.RedisClient.Publish(ctx, redisRoomChannelPrefix+event.Topic, data).Err()
}

package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/raihq/rai-backend/internal/database"
	"github.com/raihq/rai-backend/internal/models"
)

const (
	communityRecentKeyPrefix = "community:"
	communityRecentKeySuffix = ":recent"
	communityRecentMaxLen    = HistoryPageSize
	communityRecentTTL       = 1 * time.Hour
)

func communityRecentKey(communityID string) string {
	return communityRecentKeyPrefix + communityID + communityRecentKeySuffix
}

// PushCommunityMessageToCache adds a message to the Redis recent cache (newest
// at head). Call after saving to Mongo. LPUSH + LTRIM keeps the last page.
func PushCommunityMessageToCache(msg models.CommunityMessage) {
	if database.RedisClient == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := communityRecentKey(msg.CommunityID)
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	pipe := database.RedisClient.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, communityRecentMaxLen-1)
	pipe.Expire(ctx, key, communityRecentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("chat cache: push failed for community %s: %v", msg.CommunityID, err)
	}
}

// GetRecentCommunityMessages returns cached recent messages (oldest-first).
// Returns (messages, true) on hit, (nil, false) on miss.
func GetRecentCommunityMessages(ctx context.Context, communityID string) ([]models.CommunityMessage, bool) {
	if database.RedisClient == nil {
		return nil, false
	}

	raw, err := database.RedisClient.LRange(ctx, communityRecentKey(communityID), 0, -1).Result()
	if err != nil || len(raw) == 0 {
		return nil, false
	}

	var msgs []models.CommunityMessage
	for i := len(raw) - 1; i >= 0; i-- {
		var m models.CommunityMessage
		if json.Unmarshal([]byte(raw[i]), &m) != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, true
}

// LoadCommunityHistoryWithCache returns history for a community. For the
// initial page (before==nil) it tries Redis first; on miss it fetches from
// Mongo and warms the cache.
func LoadCommunityHistoryWithCache(ctx context.Context, communityID string, before *time.Time, limit int64) ([]models.CommunityMessage, error) {
	if before == nil && limit <= communityRecentMaxLen {
		if cached, ok := GetRecentCommunityMessages(ctx, communityID); ok {
			if int64(len(cached)) > limit {
				cached = cached[int64(len(cached))-limit:]
			}
			return cached, nil
		}
	}

	msgs, err := LoadCommunityHistory(ctx, communityID, before, limit)
	if err != nil {
		return nil, err
	}

	if before == nil {
		go func(warm []models.CommunityMessage) {
			for _, m := range warm {
				PushCommunityMessageToCache(m)
			}
		}(msgs)
	}
	return msgs, nil
}

// InvalidateCommunityRecentCache drops the cached page, e.g. after a
// moderation delete.
func InvalidateCommunityRecentCache(ctx context.Context, communityID string) {
	if database.RedisClient == nil {
		return
	}
	database.RedisClient.Del(ctx, communityRecentKey(communityID))
}

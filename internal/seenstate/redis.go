package seenstate

import (
	"context"
	"errors"
	"time"

	"github.com/lumeapp/lume-stories/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const seenKeyPrefix = "seen:"

// RedisTracker marks stories seen with marker keys that expire with the
// story window, so the cache never outlives the stories it describes.
type RedisTracker struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisTracker(client *redis.Client, ttl time.Duration, logger logger.Logger) *RedisTracker {
	return &RedisTracker{
		client: client,
		ttl:    ttl,
		logger: logger.WithComponent("SeenTracker"),
	}
}

var _ Tracker = (*RedisTracker)(nil)

func (t *RedisTracker) IsSeen(ctx context.Context, viewerID, storyID string) bool {
	if viewerID == "" || storyID == "" {
		return false
	}

	_, err := t.client.Get(ctx, seenKey(viewerID, storyID)).Result()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		// Best effort: a cache miss is always safe to report.
		t.logger.Warn("Failed to read seen marker", "viewer_id", viewerID, "story_id", storyID, "error", err)
		return false
	}
	return true
}

func (t *RedisTracker) MarkSeen(ctx context.Context, viewerID, storyID string) {
	if viewerID == "" || storyID == "" {
		return
	}

	if err := t.client.Set(ctx, seenKey(viewerID, storyID), "1", t.ttl).Err(); err != nil {
		t.logger.Warn("Failed to write seen marker", "viewer_id", viewerID, "story_id", storyID, "error", err)
	}
}

func seenKey(viewerID, storyID string) string {
	return seenKeyPrefix + viewerID + ":" + storyID
}

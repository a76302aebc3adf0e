// Package cache holds the Redis-backed read-side caches. Every method is
// nil-safe: with no Redis configured the cache degrades to a no-op and the
// API falls back to counting in Postgres.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tutiful-scheduler/internal/common/logger"
)

const (
	unreadKeyPrefix = "notifications:unread:"
	unreadTTL       = 5 * time.Minute
)

// UnreadCache caches per-user unread notification counts.
type UnreadCache struct {
	client *redis.Client
	log    logger.Logger
}

// NewUnreadCache accepts a nil client, which disables the cache.
func NewUnreadCache(client *redis.Client, log logger.Logger) *UnreadCache {
	return &UnreadCache{client: client, log: log}
}

// Get returns the cached unread count and whether it was present.
func (c *UnreadCache) Get(ctx context.Context, userID string) (int, bool) {
	if c == nil || c.client == nil {
		return 0, false
	}

	count, err := c.client.Get(ctx, unreadKey(userID)).Int()
	if err == redis.Nil {
		return 0, false
	}
	if err != nil {
		c.log.Warn("Unread count cache read failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		return 0, false
	}
	return count, true
}

// Set stores the unread count with a short TTL.
func (c *UnreadCache) Set(ctx context.Context, userID string, count int) {
	if c == nil || c.client == nil {
		return
	}

	if err := c.client.Set(ctx, unreadKey(userID), count, unreadTTL).Err(); err != nil {
		c.log.Warn("Unread count cache write failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
	}
}

// Invalidate drops the cached count after any write that changes it
// (new notification, mark read, delete).
func (c *UnreadCache) Invalidate(ctx context.Context, userID string) {
	if c == nil || c.client == nil {
		return
	}

	if err := c.client.Del(ctx, unreadKey(userID)).Err(); err != nil {
		c.log.Warn("Unread count cache invalidation failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
	}
}

func unreadKey(userID string) string {
	return fmt.Sprintf("%s%s", unreadKeyPrefix, userID)
}

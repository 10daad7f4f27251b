package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// UnreadCache caches the per-user unread count in redis so the list
// endpoint does not hit the COUNT(*) query on every page load. Any mutation
// path invalidates; the DB stays the source of truth.
type UnreadCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewUnreadCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *UnreadCache {
	return &UnreadCache{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

func unreadKey(userID int) string {
	return fmt.Sprintf("unread_count:%d", userID)
}

// Get returns the cached count and whether it was present. Redis errors are
// treated as a miss.
func (c *UnreadCache) Get(ctx context.Context, userID int) (int, bool) {
	val, err := c.rdb.Get(ctx, unreadKey(userID)).Result()
	if err == redis.Nil {
		return 0, false
	}
	if err != nil {
		c.logger.Warn("Unread cache read failed", zap.Int("user_id", userID), zap.Error(err))
		return 0, false
	}

	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return count, true
}

func (c *UnreadCache) Set(ctx context.Context, userID, count int) {
	if err := c.rdb.Set(ctx, unreadKey(userID), count, c.ttl).Err(); err != nil {
		c.logger.Warn("Unread cache write failed", zap.Int("user_id", userID), zap.Error(err))
	}
}

func (c *UnreadCache) Invalidate(ctx context.Context, userID int) {
	if err := c.rdb.Del(ctx, unreadKey(userID)).Err(); err != nil {
		c.logger.Warn("Unread cache invalidation failed", zap.Int("user_id", userID), zap.Error(err))
	}
}

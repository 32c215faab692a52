package credits

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const summaryKeyPrefix = "credits:summary:"

// RedisSummaryCache caches balance summaries in Redis.
// TTL is the staleness window: a summary older than this is refetched.
// All cache errors degrade to a miss; the pipeline never fails on cache I/O.
type RedisSummaryCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

func NewRedisSummaryCache(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *RedisSummaryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisSummaryCache{rdb: rdb, ttl: ttl, log: log}
}

func (c *RedisSummaryCache) Get(ctx context.Context, userID string) (BalanceSummary, bool) {
	raw, err := c.rdb.Get(ctx, summaryKeyPrefix+userID).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("summary cache read failed", "user_id", userID, "err", err)
		}
		return BalanceSummary{}, false
	}
	var s BalanceSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		c.log.Warn("summary cache decode failed", "user_id", userID, "err", err)
		return BalanceSummary{}, false
	}
	return s, true
}

func (c *RedisSummaryCache) Set(ctx context.Context, userID string, s BalanceSummary) {
	raw, err := json.Marshal(s)
	if err != nil {
		c.log.Warn("summary cache encode failed", "user_id", userID, "err", err)
		return
	}
	if err := c.rdb.Set(ctx, summaryKeyPrefix+userID, raw, c.ttl).Err(); err != nil {
		c.log.Warn("summary cache write failed", "user_id", userID, "err", err)
	}
}

func (c *RedisSummaryCache) Invalidate(ctx context.Context, userID string) {
	if err := c.rdb.Del(ctx, summaryKeyPrefix+userID).Err(); err != nil {
		c.log.Warn("summary cache invalidate failed", "user_id", userID, "err", err)
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/siyavash-momeni/tracker/internal/calendar"
	"github.com/siyavash-momeni/tracker/internal/logger"
)

const defaultRangeCacheTTL = 10 * time.Minute

// RangeCache 缓存按天计数结果；任何失败都视为未命中
type RangeCache interface {
	Get(ctx context.Context, ownerID string, start, end time.Time) ([]DayCount, bool)
	Set(ctx context.Context, ownerID string, start, end time.Time, counts []DayCount)
	// Invalidate 使该用户所有已缓存区间失效
	Invalidate(ctx context.Context, ownerID string)
}

// NoopRangeCache 不缓存任何内容
type NoopRangeCache struct{}

func (NoopRangeCache) Get(context.Context, string, time.Time, time.Time) ([]DayCount, bool) {
	return nil, false
}
func (NoopRangeCache) Set(context.Context, string, time.Time, time.Time, []DayCount) {}
func (NoopRangeCache) Invalidate(context.Context, string)                            {}

// RedisRangeCache 以每个用户的版本号拼接缓存键，写入进度时递增版本号即可整体失效
type RedisRangeCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// NewRedisRangeCache 基于已有的 redis 客户端构造缓存
func NewRedisRangeCache(client *redis.Client, l *log.Logger) *RedisRangeCache {
	return &RedisRangeCache{client: client, ttl: defaultRangeCacheTTL, logger: logger.OrDiscard(l)}
}

// ConnectRangeCache 解析 REDIS_URL 并确认连通；url 为空或不可用时回退到 NoopRangeCache
func ConnectRangeCache(ctx context.Context, url string, l *log.Logger) RangeCache {
	l = logger.OrDiscard(l)
	if url == "" {
		return NoopRangeCache{}
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		l.Warn("invalid redis url, range cache disabled", "error", err)
		return NoopRangeCache{}
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		l.Warn("redis not available, range cache disabled", "error", err)
		_ = client.Close()
		return NoopRangeCache{}
	}

	return NewRedisRangeCache(client, l)
}

// Close 关闭底层 redis 连接
func (c *RedisRangeCache) Close() error {
	return c.client.Close()
}

// WithTTL 调整缓存有效期
func (c *RedisRangeCache) WithTTL(ttl time.Duration) *RedisRangeCache {
	if ttl > 0 {
		c.ttl = ttl
	}
	return c
}

func versionKey(ownerID string) string {
	return fmt.Sprintf("habitlog:range:%s:version", ownerID)
}

func (c *RedisRangeCache) rangeKey(ctx context.Context, ownerID string, start, end time.Time) (string, error) {
	version, err := c.client.Get(ctx, versionKey(ownerID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("habitlog:range:%s:v%d:%s:%s", ownerID, version, calendar.DayKey(start), calendar.DayKey(end)), nil
}

// Get 读取缓存
func (c *RedisRangeCache) Get(ctx context.Context, ownerID string, start, end time.Time) ([]DayCount, bool) {
	key, err := c.rangeKey(ctx, ownerID, start, end)
	if err != nil {
		c.logger.Debug("range cache unavailable", "error", err)
		return nil, false
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("range cache read failed", "error", err)
		}
		return nil, false
	}

	var counts []DayCount
	if err := json.Unmarshal(raw, &counts); err != nil {
		return nil, false
	}
	return counts, true
}

// Set 写入缓存
func (c *RedisRangeCache) Set(ctx context.Context, ownerID string, start, end time.Time, counts []DayCount) {
	key, err := c.rangeKey(ctx, ownerID, start, end)
	if err != nil {
		return
	}

	raw, err := json.Marshal(counts)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Debug("range cache write failed", "error", err)
	}
}

// Invalidate 递增用户版本号
func (c *RedisRangeCache) Invalidate(ctx context.Context, ownerID string) {
	if err := c.client.Incr(ctx, versionKey(ownerID)).Err(); err != nil {
		c.logger.Warn("range cache invalidation failed", "owner_id", ownerID, "error", err)
	}
}

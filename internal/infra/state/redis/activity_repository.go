package redisstate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/mokcj0825/board-hill/internal/repository"
)

// activityTTL 之后活动记录自动过期
const activityTTL = 7 * 24 * time.Hour

// RedisActivityRepository 是 ActivityRepository 的 Redis 实现。
// 每个房间一个字符串键，值为毫秒时间戳。
type RedisActivityRepository struct {
	client    *redis.Client
	keyPrefix string
}

var _ repository.ActivityRepository = (*RedisActivityRepository)(nil)

// NewRedisActivityRepository 创建 RedisActivityRepository 实例
func NewRedisActivityRepository(client *redis.Client, keyPrefix string) *RedisActivityRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisActivityRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "hill:"
	}
	return &RedisActivityRepository{client: client, keyPrefix: keyPrefix}
}

func (r *RedisActivityRepository) lastActiveKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s:last_active", r.keyPrefix, roomID)
}

func (r *RedisActivityRepository) Touch(ctx context.Context, roomID string, at time.Time) error {
	key := r.lastActiveKey(roomID)
	if err := r.client.Set(ctx, key, at.UnixMilli(), activityTTL).Err(); err != nil {
		logrus.WithError(err).WithField("key", key).Error("RedisActivityRepository: Failed to touch room")
		return fmt.Errorf("redis set failed for key %s: %w", key, err)
	}
	return nil
}

func (r *RedisActivityRepository) LastActive(ctx context.Context, roomID string) (time.Time, error) {
	key := r.lastActiveKey(roomID)
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, repository.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("redis get failed for key %s: %w", key, err)
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("RedisActivityRepository: Corrupted timestamp")
		return time.Time{}, fmt.Errorf("invalid timestamp %q in key %s: %w", val, key, err)
	}
	return time.UnixMilli(ms), nil
}

func (r *RedisActivityRepository) Forget(ctx context.Context, roomID string) error {
	key := r.lastActiveKey(roomID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del failed for key %s: %w", key, err)
	}
	return nil
}

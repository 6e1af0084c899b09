package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// AnswerCacheRepository 在 Redis 中缓存模型的原始回答。
type AnswerCacheRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewAnswerCacheRepository 创建一个新的 AnswerCacheRepository 实例。
func NewAnswerCacheRepository(redisClient *redis.Client, ttl time.Duration) *AnswerCacheRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AnswerCacheRepository{redisClient: redisClient, ttl: ttl}
}

// GetAnswer 读取缓存的回答，未命中时 ok 为 false。
func (r *AnswerCacheRepository) GetAnswer(ctx context.Context, key string) (string, bool, error) {
	answer, err := r.redisClient.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get cached answer: %w", err)
	}
	return answer, true, nil
}

// SetAnswer 写入回答并设置过期时间。
func (r *AnswerCacheRepository) SetAnswer(ctx context.Context, key, answer string) error {
	if err := r.redisClient.Set(ctx, key, answer, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cached answer: %w", err)
	}
	return nil
}

// AttemptRepository 使用 Redis 计数 Kafka 任务的失败次数。
type AttemptRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewAttemptRepository 创建一个新的 AttemptRepository 实例。
func NewAttemptRepository(redisClient *redis.Client) *AttemptRepository {
	return &AttemptRepository{redisClient: redisClient, ttl: 24 * time.Hour}
}

func attemptsKey(taskID string) string {
	return fmt.Sprintf("kafka:attempts:%s", taskID)
}

// Incr 增加失败次数并返回当前值。
func (r *AttemptRepository) Incr(ctx context.Context, taskID string) (int64, error) {
	key := attemptsKey(taskID)
	attempts, err := r.redisClient.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count attempts: %w", err)
	}
	_ = r.redisClient.Expire(ctx, key, r.ttl).Err()
	return attempts, nil
}

// Reset 清理失败计数。
func (r *AttemptRepository) Reset(ctx context.Context, taskID string) error {
	return r.redisClient.Del(ctx, attemptsKey(taskID)).Err()
}

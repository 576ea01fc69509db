package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/studygroups/internal/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	scanBatch   = 100
	pingTimeout = 2 * time.Second
)

// RedisCache кэш статусов в Redis
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisCache подключается к Redis по URL и проверяет соединение
func NewRedisCache(ctx context.Context, url string, logger *zap.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.ReadTimeout = pingTimeout
	opts.WriteTimeout = pingTimeout

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisCacheFromClient(client, logger), nil
}

func NewRedisCacheFromClient(client *redis.Client, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		logger: logger,
	}
}

// GetStatus возвращает закэшированный статус. Любая ошибка считается промахом.
func (c *RedisCache) GetStatus(ctx context.Context, courseID, studentID string) (*model.StatusResult, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, StatusKey(courseID, studentID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Status cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var status model.StatusResult
	if err := json.Unmarshal(raw, &status); err != nil {
		c.logger.Warn("Status cache entry is corrupt", zap.Error(err))
		return nil, false
	}

	return &status, true
}

func (c *RedisCache) SetStatus(ctx context.Context, courseID, studentID string, status *model.StatusResult, ttl time.Duration) {
	if c == nil || c.client == nil || status == nil {
		return
	}

	raw, err := json.Marshal(status)
	if err != nil {
		c.logger.Warn("Status cache encode failed", zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, StatusKey(courseID, studentID), raw, ttl).Err(); err != nil {
		c.logger.Warn("Status cache write failed", zap.Error(err))
	}
}

// InvalidateStudent удаляет ключи статуса перечисленных студентов
func (c *RedisCache) InvalidateStudent(ctx context.Context, courseID string, studentIDs ...string) {
	if c == nil || c.client == nil || len(studentIDs) == 0 {
		return
	}

	keys := make([]string, 0, len(studentIDs))
	for _, id := range studentIDs {
		keys = append(keys, StatusKey(courseID, id))
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("Status cache invalidation failed",
			zap.String("course_id", courseID),
			zap.Strings("keys", keys),
			zap.Error(err),
		)
	}
}

// InvalidateCourse удаляет все ключи статуса курса (SCAN + DEL)
func (c *RedisCache) InvalidateCourse(ctx context.Context, courseID string) {
	if c == nil || c.client == nil {
		return
	}

	if err := c.deletePattern(ctx, CourseStatusPattern(courseID)); err != nil {
		c.logger.Warn("Status cache course invalidation failed",
			zap.String("course_id", courseID),
			zap.Error(err),
		)
	}
}

func (c *RedisCache) deletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("scan %s: %w", pattern, err)
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete keys: %w", err)
			}
		}

		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Close закрывает соединение с Redis
func (c *RedisCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

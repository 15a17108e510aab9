package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis键前缀
const sessionKeyPrefix = "session:"

// RedisSessionStore Redis会话白名单实现
type RedisSessionStore struct {
	redis *redis.Client
}

// NewRedisSessionStore 创建Redis会话存储
func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{redis: client}
}

// Save 保存用户当前令牌
func (s *RedisSessionStore) Save(ctx context.Context, username, token string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, sessionKeyPrefix+username, token, ttl).Err(); err != nil {
		return fmt.Errorf("保存会话失败: %w", err)
	}
	return nil
}

// Current 获取用户当前令牌
func (s *RedisSessionStore) Current(ctx context.Context, username string) (string, error) {
	token, err := s.redis.Get(ctx, sessionKeyPrefix+username).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("读取会话失败: %w", err)
	}
	return token, nil
}

// Revoke 撤销用户会话
func (s *RedisSessionStore) Revoke(ctx context.Context, username string) error {
	if err := s.redis.Del(ctx, sessionKeyPrefix+username).Err(); err != nil {
		return fmt.Errorf("撤销会话失败: %w", err)
	}
	return nil
}

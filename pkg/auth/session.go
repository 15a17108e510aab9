package auth

import (
	"context"
	"time"
)

// SessionStore 服务端会话白名单，每个用户只保留最近一次登录的令牌
type SessionStore interface {
	// Save 保存用户当前令牌，ttl 与令牌有效期一致
	Save(ctx context.Context, username, token string, ttl time.Duration) error

	// Current 获取用户当前令牌，不存在时返回空字符串
	Current(ctx context.Context, username string) (string, error)

	// Revoke 撤销用户会话
	Revoke(ctx context.Context, username string) error
}

// StoreType 会话存储类型
type StoreType string

const (
	// MemoryStore 内存存储
	MemoryStore StoreType = "memory"
	// RedisStore Redis存储
	RedisStore StoreType = "redis"
)

// IsCurrent 判断令牌是否为用户当前有效的令牌
func IsCurrent(ctx context.Context, store SessionStore, username, token string) (bool, error) {
	current, err := store.Current(ctx, username)
	if err != nil {
		return false, err
	}
	return current != "" && current == token, nil
}

package auth

import (
	"context"
	"sync"
	"time"
)

type memorySession struct {
	token    string
	expireAt time.Time
}

// MemorySessionStore 内存会话白名单，适用于单实例部署
type MemorySessionStore struct {
	sessions map[string]memorySession // 用户名->会话
	mutex    sync.RWMutex
	now      func() time.Time
}

// NewMemorySessionStore 创建内存会话存储
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]memorySession),
		now:      time.Now,
	}
}

// Save 保存用户当前令牌
func (s *MemorySessionStore) Save(_ context.Context, username, token string, ttl time.Duration) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.sessions[username] = memorySession{token: token, expireAt: s.now().Add(ttl)}
	return nil
}

// Current 获取用户当前令牌，过期会话视为不存在
func (s *MemorySessionStore) Current(_ context.Context, username string) (string, error) {
	s.mutex.RLock()
	session, exists := s.sessions[username]
	s.mutex.RUnlock()

	if !exists {
		return "", nil
	}
	if s.now().After(session.expireAt) {
		s.mutex.Lock()
		if current, ok := s.sessions[username]; ok && s.now().After(current.expireAt) {
			delete(s.sessions, username)
		}
		s.mutex.Unlock()
		return "", nil
	}
	return session.token, nil
}

// Revoke 撤销用户会话
func (s *MemorySessionStore) Revoke(_ context.Context, username string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.sessions, username)
	return nil
}

// Cleanup 清理过期会话，返回清理数量
func (s *MemorySessionStore) Cleanup() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	removed := 0
	for username, session := range s.sessions {
		if now.After(session.expireAt) {
			delete(s.sessions, username)
			removed++
		}
	}
	return removed
}

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisSessionStore(client)
	ctx := context.Background()

	current, err := store.Current(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, current)

	require.NoError(t, store.Save(ctx, "alice", "token-1", time.Hour))
	ok, err := IsCurrent(ctx, store, "alice", "token-1")
	require.NoError(t, err)
	assert.True(t, ok)

	// 重新登录后旧令牌失效
	require.NoError(t, store.Save(ctx, "alice", "token-2", time.Hour))
	ok, err = IsCurrent(ctx, store, "alice", "token-1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, time.Hour, mr.TTL("session:alice"))

	mr.FastForward(2 * time.Hour)
	current, err = store.Current(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, current)
}

func TestRedisSessionStoreRevoke(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "alice", "token-1", time.Hour))
	require.NoError(t, store.Revoke(ctx, "alice"))
	assert.False(t, mr.Exists("session:alice"))
}

func TestRedisSessionStoreError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	mr.Close()
	_, err := NewRedisSessionStore(client).Current(context.Background(), "alice")
	assert.Error(t, err)
}

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "alice", "token-1", time.Minute))
	require.NoError(t, store.Save(ctx, "bob", "token-b", time.Hour))

	ok, err := IsCurrent(ctx, store, "alice", "token-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsCurrent(ctx, store, "alice", "")
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	current, err := store.Current(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, current)

	require.NoError(t, store.Save(ctx, "carol", "token-c", time.Second))
	now = now.Add(time.Minute)
	assert.Equal(t, 1, store.Cleanup())

	require.NoError(t, store.Revoke(ctx, "bob"))
	current, err = store.Current(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, current)
}

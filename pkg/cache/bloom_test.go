package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBloomFilterInMemory(t *testing.T) {
	ctx := context.Background()
	bf := NewRedisBloomFilter(nil, BloomFilterSiteKey, 1000, 0.001)

	require.NoError(t, bf.BatchAdd(ctx, []string{IDKey(1), IDKey(2)}))
	ok, err := bf.Test(ctx, IDKey(1))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = bf.Test(ctx, IDKey(42))
	require.NoError(t, err)
	assert.False(t, ok)

	// 没有Redis时持久化为空操作
	assert.NoError(t, bf.Save(ctx))
	assert.NoError(t, bf.Load(ctx))

	require.NoError(t, bf.Reset(ctx))
	ok, err = bf.Test(ctx, IDKey(1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBloomFilterRedisRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	saved := NewRedisBloomFilter(client, BloomFilterSiteKey, 1000, 0.001)
	require.NoError(t, saved.Add(ctx, IDKey(7)))
	require.NoError(t, saved.Save(ctx))
	assert.True(t, mr.Exists(BloomFilterSiteKey))

	loaded := NewRedisBloomFilter(client, BloomFilterSiteKey, 1000, 0.001)
	require.NoError(t, loaded.Load(ctx))
	ok, err := loaded.Test(ctx, IDKey(7))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, loaded.Reset(ctx))
	assert.False(t, mr.Exists(BloomFilterSiteKey))
}

package cache

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/redis/go-redis/v9"
)

const (
	// BloomFilterSiteKey 网站存在性布隆过滤器
	BloomFilterSiteKey = "bloom:site:exists"
	// BloomFilterExpiration 布隆过滤器在Redis中的保存时间
	BloomFilterExpiration = 24 * time.Hour
)

// BloomFilter 布隆过滤器接口
type BloomFilter interface {
	// Add 添加元素到布隆过滤器
	Add(ctx context.Context, element string) error

	// Test 测试元素是否可能存在
	Test(ctx context.Context, element string) (bool, error)

	// BatchAdd 批量添加元素
	BatchAdd(ctx context.Context, elements []string) error

	// Reset 重置布隆过滤器
	Reset(ctx context.Context) error

	// Save 持久化布隆过滤器
	Save(ctx context.Context) error

	// Load 加载已持久化的布隆过滤器
	Load(ctx context.Context) error
}

// RedisBloomFilter 本地布隆过滤器，可选保存到Redis以便重启后恢复
type RedisBloomFilter struct {
	filter    *bloom.BloomFilter
	redisKey  string
	client    *redis.Client // 为空时只在内存中使用
	mutex     sync.RWMutex
	capacity  uint    // 预期元素数量
	errorRate float64 // 误判率
}

// NewRedisBloomFilter 创建布隆过滤器
func NewRedisBloomFilter(client *redis.Client, redisKey string, capacity uint, errorRate float64) *RedisBloomFilter {
	return &RedisBloomFilter{
		filter:    bloom.NewWithEstimates(capacity, errorRate),
		redisKey:  redisKey,
		client:    client,
		capacity:  capacity,
		errorRate: errorRate,
	}
}

// IDKey 数字ID转为过滤器元素
func IDKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// Add 添加元素到布隆过滤器
func (bf *RedisBloomFilter) Add(_ context.Context, element string) error {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	bf.filter.AddString(element)
	return nil
}

// Test 测试元素是否可能存在
func (bf *RedisBloomFilter) Test(_ context.Context, element string) (bool, error) {
	bf.mutex.RLock()
	defer bf.mutex.RUnlock()

	return bf.filter.TestString(element), nil
}

// BatchAdd 批量添加元素
func (bf *RedisBloomFilter) BatchAdd(_ context.Context, elements []string) error {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	for _, element := range elements {
		bf.filter.AddString(element)
	}
	return nil
}

// Reset 重置布隆过滤器
func (bf *RedisBloomFilter) Reset(ctx context.Context) error {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	bf.filter.ClearAll()
	if bf.client == nil {
		return nil
	}
	return bf.client.Del(ctx, bf.redisKey).Err()
}

// Save 保存布隆过滤器到Redis
func (bf *RedisBloomFilter) Save(ctx context.Context) error {
	if bf.client == nil {
		return nil
	}

	bf.mutex.RLock()
	data, err := bf.filter.GobEncode()
	bf.mutex.RUnlock()
	if err != nil {
		return fmt.Errorf("encode bloom filter failed: %w", err)
	}

	// Base64编码后存储到Redis
	encoded := base64.StdEncoding.EncodeToString(data)
	return bf.client.Set(ctx, bf.redisKey, encoded, BloomFilterExpiration).Err()
}

// Load 从Redis加载布隆过滤器，不存在时保持当前过滤器
func (bf *RedisBloomFilter) Load(ctx context.Context) error {
	if bf.client == nil {
		return nil
	}

	encoded, err := bf.client.Get(ctx, bf.redisKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("get bloom filter from redis failed: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode bloom filter data failed: %w", err)
	}

	filter := &bloom.BloomFilter{}
	if err := filter.GobDecode(data); err != nil {
		return fmt.Errorf("decode bloom filter failed: %w", err)
	}

	bf.mutex.Lock()
	defer bf.mutex.Unlock()
	// 参数不一致时直接替换
	if err := bf.filter.Merge(filter); err != nil {
		bf.filter = filter
	}
	return nil
}

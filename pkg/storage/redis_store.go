package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/z-wentao/voicedub/pkg/models"
)

const (
	redisKeyPrefix = "voicedub:cache:"
	redisIndexKey  = "voicedub:cache:index"
)

// RedisStore Redis 缓存存储
// 条目带 TTL，Redis 到期自动删除；索引用 Sorted Set（score 为创建时间）
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient 使用已有的客户端
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// dataKey 格式: "voicedub:cache:{fingerprint}"
func (rs *RedisStore) dataKey(key string) string {
	return redisKeyPrefix + key
}

func (rs *RedisStore) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	data, err := rs.client.Get(ctx, rs.dataKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("从 Redis 获取失败: %w", err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("反序列化缓存失败: %w", err)
	}
	return &entry, nil
}

func (rs *RedisStore) Put(ctx context.Context, key string, entry *models.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("序列化缓存失败: %w", err)
	}

	pipe := rs.client.TxPipeline()
	pipe.Set(ctx, rs.dataKey(key), data, rs.ttl)
	pipe.ZAdd(ctx, redisIndexKey, redis.Z{
		Score:  float64(entry.CreatedAt.Unix()),
		Member: key,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("保存到 Redis 失败: %w", err)
	}
	return nil
}

func (rs *RedisStore) Delete(ctx context.Context, key string) error {
	pipe := rs.client.TxPipeline()
	pipe.Del(ctx, rs.dataKey(key))
	pipe.ZRem(ctx, redisIndexKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("删除缓存失败: %w", err)
	}
	return nil
}

// Keys 返回索引中仍然存在的 key，顺带清理已被 Redis 过期的索引项
func (rs *RedisStore) Keys(ctx context.Context) ([]string, error) {
	members, err := rs.client.ZRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("获取缓存索引失败: %w", err)
	}

	keys := make([]string, 0, len(members))
	for _, member := range members {
		exists, err := rs.client.Exists(ctx, rs.dataKey(member)).Result()
		if err != nil {
			continue
		}
		if exists == 0 {
			rs.client.ZRem(ctx, redisIndexKey, member)
			continue
		}
		keys = append(keys, member)
	}
	return keys, nil
}

// Close 关闭 Redis 连接
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anoixa/image-scraper/cache/types"
	"github.com/go-redis/redis/v8"
)

// Config Redis 配置
type Config struct {
	Address    string
	Password   string
	DB         int
	PoolSize   int
	DefaultTTL time.Duration
}

// Redis 基于 Redis 的共享缓存，多个进程可共用去重结果
type Redis struct {
	client     *redis.Client
	defaultTTL time.Duration
}

var _ types.Cache = (*Redis)(nil)

// NewRedis 创建一个新的Redis实例并测试连接
func NewRedis(cfg Config) (*Redis, error) {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Address, err)
	}

	return &Redis{client: client, defaultTTL: cfg.DefaultTTL}, nil
}

// Set 设置缓存项，值以 JSON 存储
func (r *Redis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = r.defaultTTL
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

// Exists 检查缓存项是否存在
func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close 关闭缓存连接
func (r *Redis) Close() error {
	return r.client.Close()
}

// Name 返回缓存提供者名称
func (r *Redis) Name() string {
	return "redis"
}

package ristretto

import (
	"context"
	"time"

	"github.com/anoixa/image-scraper/cache/types"
	"github.com/dgraph-io/ristretto"
)

// Ristretto 基于 ristretto 的有界进程内缓存
type Ristretto struct {
	client     *ristretto.Cache
	defaultTTL time.Duration
}

var _ types.Cache = (*Ristretto)(nil)

// Config Ristretto配置
type Config struct {
	// MaxEntries 最大条目数，每个条目的 cost 固定为 1
	MaxEntries int64
	DefaultTTL time.Duration
	Metrics    bool
}

// NewRistretto 创建新的Ristretto实例
func NewRistretto(config Config) (*Ristretto, error) {
	maxEntries := config.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 100_000
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		Metrics:     config.Metrics,

		// cost 按条目计数，不计入内部开销
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}

	return &Ristretto{client: cache, defaultTTL: config.DefaultTTL}, nil
}

// Set 设置缓存项
func (r *Ristretto) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = r.defaultTTL
	}
	if r.client.SetWithTTL(key, value, 1, expiration) {
		// 等待写缓冲落地，保证随后的 Exists 可见
		r.client.Wait()
	}
	return nil
}

// Exists 检查缓存项是否存在
func (r *Ristretto) Exists(_ context.Context, key string) (bool, error) {
	_, found := r.client.Get(key)
	return found, nil
}

// Close 关闭缓存
func (r *Ristretto) Close() error {
	r.client.Close()
	return nil
}

// Name 返回缓存提供者名称
func (r *Ristretto) Name() string {
	return "ristretto"
}

package gocache

import (
	"context"
	"time"

	"github.com/anoixa/image-scraper/cache/types"
	gocachepkg "github.com/patrickmn/go-cache"
)

// GoCache 基于 go-cache 的进程内缓存
type GoCache struct {
	client *gocachepkg.Cache
}

var _ types.Cache = (*GoCache)(nil)

// NewGoCache 创建新的GoCache实例
func NewGoCache(defaultExpiration, cleanupInterval time.Duration) *GoCache {
	return &GoCache{
		client: gocachepkg.New(defaultExpiration, cleanupInterval),
	}
}

// Set 设置缓存项
func (g *GoCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = gocachepkg.DefaultExpiration
	}
	g.client.Set(key, value, expiration)
	return nil
}

// Exists 检查缓存项是否存在
func (g *GoCache) Exists(_ context.Context, key string) (bool, error) {
	_, found := g.client.Get(key)
	return found, nil
}

// Close GoCache 不需要显式关闭
func (g *GoCache) Close() error {
	return nil
}

// Name 返回缓存提供者名称
func (g *GoCache) Name() string {
	return "memory"
}

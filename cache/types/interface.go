package types

import (
	"context"
	"time"
)

// Cache 缓存接口
type Cache interface {
	// Set 设置缓存项，expiration <= 0 表示使用默认过期时间
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error

	// Exists 检查缓存项是否存在
	Exists(ctx context.Context, key string) (bool, error)

	// Close 关闭缓存连接
	Close() error

	// Name 返回缓存提供者名称
	Name() string
}

package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("storage: object not found")

// Provider 二进制存储提供者接口
// handle 为相对路径，如 original/2024/01/15/<uuid>.jpg
type Provider interface {
	// SaveWithContext 保存对象
	SaveWithContext(ctx context.Context, handle string, file io.Reader) error

	// GetWithContext 读取对象，不存在时返回 ErrNotFound
	GetWithContext(ctx context.Context, handle string) (io.ReadCloser, error)

	// DeleteWithContext 删除对象
	DeleteWithContext(ctx context.Context, handle string) error

	// Exists 检查对象是否存在
	Exists(ctx context.Context, handle string) (bool, error)

	// Health 检查存储健康状态
	Health(ctx context.Context) error

	// Name 返回存储名称
	Name() string
}

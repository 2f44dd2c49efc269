package database

import (
	"context"
	"io"

	"github.com/anoixa/image-scraper/database/models"
)

// ImageStore 图片元数据存储
// 记录只追加，不更新也不删除；checksum 全局唯一
type ImageStore interface {
	// Count 统计某查询词下的记录数
	Count(ctx context.Context, query string) (int64, error)

	// ListRecent 按 created_at 倒序返回最多 limit 条记录
	ListRecent(ctx context.Context, query string, limit int) ([]*models.Image, error)

	// Exists 检查 checksum 是否已存在（不区分查询词）
	Exists(ctx context.Context, checksum string) (bool, error)

	// FindByChecksum 按 checksum 查询，不存在时返回 ErrNotFound
	FindByChecksum(ctx context.Context, checksum string) (*models.Image, error)

	// Save 写入原始字节与元数据，填充 StorageHandle/CreatedAt/FileSize
	// checksum 冲突时返回 ErrDuplicate，且不留下孤立的二进制对象
	Save(ctx context.Context, rec *models.Image, data []byte) error

	// OpenBlob 打开记录对应的原始字节
	OpenBlob(ctx context.Context, rec *models.Image) (io.ReadCloser, error)

	// Ping 检查存储连接
	Ping(ctx context.Context) error

	// Close 关闭连接
	Close() error

	// Name 返回存储名称
	Name() string
}

package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/anoixa/image-scraper/database"
	"github.com/anoixa/image-scraper/database/models"
	"github.com/anoixa/image-scraper/storage"
	"github.com/anoixa/image-scraper/utils/generator"
	"github.com/anoixa/image-scraper/utils/mime"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository SQL 元数据 + 二进制存储实现的 database.ImageStore
type Repository struct {
	db    database.Provider
	blobs storage.Provider
	paths *generator.PathGenerator
	now   func() time.Time
}

var _ database.ImageStore = (*Repository)(nil)

// Option 仓库可选项
type Option func(*Repository)

// WithClock 替换时间源，测试中用于构造确定的 created_at
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// NewRepository 创建新的图片仓库
func NewRepository(db database.Provider, blobs storage.Provider, opts ...Option) *Repository {
	r := &Repository{
		db:    db,
		blobs: blobs,
		paths: generator.NewPathGenerator(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Count 统计查询词下的记录数
func (r *Repository) Count(ctx context.Context, query string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Image{}).Where("query = ?", query).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count images for %q: %w", query, err)
	}
	return count, nil
}

// ListRecent 按创建时间倒序列出记录，同一时间戳按插入顺序倒序
func (r *Repository) ListRecent(ctx context.Context, query string, limit int) ([]*models.Image, error) {
	if limit <= 0 {
		return []*models.Image{}, nil
	}

	var images []*models.Image
	err := r.db.WithContext(ctx).
		Where("query = ?", query).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list images for %q: %w", query, err)
	}
	return images, nil
}

// Exists 检查 checksum 是否已存在
func (r *Repository) Exists(ctx context.Context, checksum string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Image{}).Where("checksum = ?", checksum).Limit(1).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check checksum: %w", err)
	}
	return count > 0, nil
}

// FindByChecksum 通过 checksum 获取记录
func (r *Repository) FindByChecksum(ctx context.Context, checksum string) (*models.Image, error) {
	var image models.Image
	err := r.db.WithContext(ctx).Where("checksum = ?", checksum).First(&image).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, database.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find image by checksum: %w", err)
	}
	return &image, nil
}

// Save 先写二进制对象再插入元数据
// 插入因 checksum 冲突而未生效时删除刚写入的对象并返回 database.ErrDuplicate
func (r *Repository) Save(ctx context.Context, rec *models.Image, data []byte) error {
	createdAt := r.now().UTC()
	handle := r.paths.BlobHandle(mime.ExtFromContentType(rec.ContentType), createdAt)

	if err := r.blobs.SaveWithContext(ctx, handle, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to store blob: %w", err)
	}

	rec.ID = 0
	rec.StorageHandle = handle
	rec.FileSize = int64(len(data))
	rec.CreatedAt = createdAt

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "checksum"}}, DoNothing: true}).
		Create(rec)

	switch {
	case errors.Is(result.Error, gorm.ErrDuplicatedKey):
		r.discardBlob(handle)
		return database.ErrDuplicate
	case result.Error != nil:
		r.discardBlob(handle)
		return fmt.Errorf("failed to insert image record: %w", result.Error)
	case result.RowsAffected == 0:
		r.discardBlob(handle)
		return database.ErrDuplicate
	}
	return nil
}

// discardBlob 回收未被引用的对象，失败只记录日志
func (r *Repository) discardBlob(handle string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.blobs.DeleteWithContext(ctx, handle); err != nil {
		log.Warn().Err(err).Str("handle", handle).Msg("Failed to remove unreferenced blob")
	}
}

// OpenBlob 打开记录对应的原始字节
func (r *Repository) OpenBlob(ctx context.Context, rec *models.Image) (io.ReadCloser, error) {
	rc, err := r.blobs.GetWithContext(ctx, rec.StorageHandle)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: blob %s", database.ErrNotFound, rec.StorageHandle)
		}
		return nil, err
	}
	return rc, nil
}

// Ping 检查数据库与二进制存储
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := r.blobs.Health(ctx); err != nil {
		return fmt.Errorf("blob storage: %w", err)
	}
	return nil
}

// Close 关闭数据库连接
func (r *Repository) Close() error {
	return r.db.Close()
}

// Name 返回存储名称
func (r *Repository) Name() string {
	return r.db.Name() + "+" + r.blobs.Name()
}

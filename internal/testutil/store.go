package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/anoixa/image-scraper/database"
	"github.com/anoixa/image-scraper/database/models"
	"github.com/anoixa/image-scraper/database/repo/images"
	"github.com/anoixa/image-scraper/storage"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// sqliteProvider 测试用数据库提供者
type sqliteProvider struct {
	db *gorm.DB
}

func (p *sqliteProvider) DB() *gorm.DB { return p.db }

func (p *sqliteProvider) WithContext(ctx context.Context) *gorm.DB { return p.db.WithContext(ctx) }

func (p *sqliteProvider) AutoMigrate(models ...interface{}) error { return p.db.AutoMigrate(models...) }

func (p *sqliteProvider) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (p *sqliteProvider) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *sqliteProvider) Name() string { return "sqlite" }

// NewSQLiteProvider 在临时目录创建已迁移的 SQLite 数据库
func NewSQLiteProvider(t *testing.T) database.Provider {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_journal_mode=WAL"
	db, err := database.OpenGorm(sqlite.Open(dsn))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	p := &sqliteProvider{db: db}
	require.NoError(t, database.NewFactoryWithProvider(p).AutoMigrate())
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// NewStore 创建基于 SQLite 与本地二进制存储的图片仓库
func NewStore(t *testing.T, opts ...images.Option) *images.Repository {
	t.Helper()

	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	return images.NewRepository(NewSQLiteProvider(t), blobs, opts...)
}

// SeedImages 直接写入 n 条记录，checksum 由 prefix 与序号组成
func SeedImages(t *testing.T, store database.ImageStore, query, prefix string, n int) []*models.Image {
	t.Helper()

	out := make([]*models.Image, 0, n)
	for i := 1; i <= n; i++ {
		rec := &models.Image{
			Query:       query,
			Filename:    fmt.Sprintf("%s_%d.jpg", query, i),
			URL:         fmt.Sprintf("https://seed.example/%s/%d.jpg", prefix, i),
			Checksum:    Checksum([]byte(fmt.Sprintf("%s-%d", prefix, i))),
			ContentType: "image/jpeg",
		}
		require.NoError(t, store.Save(context.Background(), rec, []byte(prefix)))
		out = append(out, rec)
	}
	return out
}

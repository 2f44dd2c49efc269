package database

import (
	"context"

	"gorm.io/gorm"
)

// Provider SQL 数据库提供者接口
// 仓库层只依赖此接口，便于测试时替换为内存 SQLite
type Provider interface {
	// DB 返回底层 *gorm.DB 实例
	DB() *gorm.DB

	// WithContext 返回带上下文的 *gorm.DB
	WithContext(ctx context.Context) *gorm.DB

	// AutoMigrate 自动迁移数据库结构
	AutoMigrate(models ...interface{}) error

	// Ping 检查数据库连接
	Ping(ctx context.Context) error

	// Close 关闭数据库连接
	Close() error

	// Name 返回数据库名称
	Name() string
}

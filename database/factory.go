package database

import (
	"fmt"

	"github.com/anoixa/image-scraper/config"
	"github.com/anoixa/image-scraper/database/models"
	"github.com/rs/zerolog/log"
)

// Factory SQL 数据库工厂，负责创建提供者并迁移表结构
type Factory struct {
	provider Provider
}

// NewFactory 创建新的数据库工厂
func NewFactory(cfg *config.Config) (*Factory, error) {
	log.Debug().Msg("Initializing database provider...")

	provider, err := NewGormProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database provider: %w", err)
	}

	return &Factory{provider: provider}, nil
}

// NewFactoryWithProvider 使用已有的提供者创建工厂
func NewFactoryWithProvider(provider Provider) *Factory {
	return &Factory{provider: provider}
}

// GetProvider 获取数据库提供者
func (f *Factory) GetProvider() Provider {
	return f.provider
}

// AutoMigrate 自动迁移数据库结构
func (f *Factory) AutoMigrate() error {
	if f.provider == nil {
		return fmt.Errorf("database provider not initialized")
	}

	if err := f.provider.AutoMigrate(&models.Image{}); err != nil {
		return fmt.Errorf("failed to auto migrate database: %w", err)
	}
	log.Debug().Str("backend", f.provider.Name()).Msg("Database auto migration completed")
	return nil
}

// Close 关闭数据库连接
func (f *Factory) Close() error {
	if f.provider != nil {
		return f.provider.Close()
	}
	return nil
}

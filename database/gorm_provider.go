package database

import (
	"context"
	"fmt"
	"time"

	"github.com/anoixa/image-scraper/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormProvider GORM 数据库提供者实现
type GormProvider struct {
	db      *gorm.DB
	backend Backend
}

// NewGormProvider 根据 STORE_DSN 创建 SQLite 或 PostgreSQL 连接
func NewGormProvider(cfg *config.Config) (*GormProvider, error) {
	backend, dsn, err := ParseDSN(cfg.StoreDSN)
	if err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch backend {
	case BackendSQLite:
		dialector = sqlite.Open(dsn)
	case BackendPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("backend %s is not a SQL database", backend)
	}

	db, err := OpenGorm(dialector)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", backend, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying DB instance: %w", err)
	}

	maxOpenConns := cfg.DBMaxOpenConns
	if maxOpenConns <= 0 {
		maxOpenConns = 25
	}
	// SQLite 单写者，多连接只会带来 SQLITE_BUSY
	if backend == BackendSQLite {
		maxOpenConns = 1
	}
	maxIdleConns := cfg.DBMaxIdleConns
	if maxIdleConns <= 0 {
		maxIdleConns = 10
	}
	connMaxLifetime := cfg.DBConnMaxLifetime
	if connMaxLifetime <= 0 {
		connMaxLifetime = 3600
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(connMaxLifetime) * time.Second)

	log.Info().Str("backend", string(backend)).Msg("Connected to metadata database")

	return &GormProvider{db: db, backend: backend}, nil
}

// OpenGorm 使用统一的 gorm 配置打开连接
// created_at 统一使用 UTC；唯一约束冲突翻译为 gorm.ErrDuplicatedKey
func OpenGorm(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger:                 newGormLogger(),
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// zerologWriter 将 gorm 日志转发到 zerolog
type zerologWriter struct {
	logger zerolog.Logger
}

func (w zerologWriter) Printf(format string, args ...interface{}) {
	w.logger.Debug().Msgf(format, args...)
}

// newGormLogger 创建 GORM 日志器，开发版本输出 SQL
func newGormLogger() logger.Interface {
	logLevel := logger.Warn
	if config.IsDevelopment() {
		logLevel = logger.Info
	}

	return logger.New(
		zerologWriter{logger: log.With().Str("component", "gorm").Logger()},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// DB 返回底层 *gorm.DB 实例
func (p *GormProvider) DB() *gorm.DB {
	return p.db
}

// WithContext 返回带上下文的 *gorm.DB
func (p *GormProvider) WithContext(ctx context.Context) *gorm.DB {
	return p.db.WithContext(ctx)
}

// AutoMigrate 自动迁移数据库结构
func (p *GormProvider) AutoMigrate(models ...interface{}) error {
	return p.db.AutoMigrate(models...)
}

// Ping 检查数据库连接
func (p *GormProvider) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭数据库连接
func (p *GormProvider) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	log.Info().Msg("Closing database connection...")
	return sqlDB.Close()
}

// Name 返回数据库名称
func (p *GormProvider) Name() string {
	return string(p.backend)
}

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/anoixa/image-scraper/cache"
	"github.com/anoixa/image-scraper/config"
	"github.com/anoixa/image-scraper/database"
	"github.com/anoixa/image-scraper/database/mongo"
	"github.com/anoixa/image-scraper/database/repo/images"
	"github.com/anoixa/image-scraper/internal/dedup"
	"github.com/anoixa/image-scraper/internal/discovery"
	"github.com/anoixa/image-scraper/internal/exporter"
	"github.com/anoixa/image-scraper/internal/fetcher"
	"github.com/anoixa/image-scraper/internal/imaging"
	"github.com/anoixa/image-scraper/internal/imaging/vips"
	"github.com/anoixa/image-scraper/internal/metrics"
	"github.com/anoixa/image-scraper/internal/scraper"
	"github.com/anoixa/image-scraper/storage"
	"github.com/rs/zerolog/log"
)

// Container 依赖注入容器 - 管理进程内共享资源的生命周期
type Container struct {
	config *config.Config

	store      database.ImageStore
	cache      cache.Provider
	index      *dedup.Index
	metrics    *metrics.Metrics
	transcoder imaging.Transcoder
	imageDir   *storage.LocalStorage
}

// NewContainer 创建新的依赖注入容器
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config: cfg,
	}
}

// Init 打开元数据存储、缓存与本地图片目录
func (c *Container) Init(ctx context.Context) error {
	log.Debug().Msg("Initializing DI container...")

	store, err := OpenStore(ctx, c.config)
	if err != nil {
		return fmt.Errorf("failed to open image store: %w", err)
	}
	c.store = store

	c.cache, err = cache.NewProvider(cache.Config{
		Type:          c.config.CacheType,
		TTL:           c.config.CacheTTL,
		MaxEntries:    c.config.CacheMaxEntries,
		RedisAddr:     c.config.CacheRedisAddr,
		RedisPassword: c.config.CacheRedisPassword,
		RedisDB:       c.config.CacheRedisDB,
	})
	if err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	c.index = dedup.NewIndex(c.store, c.cache, c.config.CacheTTL)

	c.imageDir, err = storage.NewLocalStorage(c.config.ImageDir)
	if err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to prepare image directory: %w", err)
	}

	c.metrics, err = metrics.New()
	if err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	c.transcoder = NewTranscoder(c.config.ImageEncoder)

	log.Debug().
		Str("store", c.store.Name()).
		Str("cache", c.cache.Name()).
		Str("encoder", c.transcoder.Name()).
		Msg("DI container initialized successfully")
	return nil
}

// OpenStore 按 DSN 的 scheme 打开 MongoDB 或 SQL 存储
// SQL 存储的原始字节写入 blob_storage 指定的后端
func OpenStore(ctx context.Context, cfg *config.Config) (database.ImageStore, error) {
	if cfg.StoreDSN == "" {
		return nil, config.ErrMissingDSN
	}
	backend, dsn, err := database.ParseDSN(cfg.StoreDSN)
	if err != nil {
		return nil, err
	}

	if backend == database.BackendMongo {
		return mongo.Open(ctx, dsn, cfg.StoreDatabase)
	}

	factory, err := database.NewFactory(cfg)
	if err != nil {
		return nil, err
	}
	if err := factory.AutoMigrate(); err != nil {
		_ = factory.Close()
		return nil, err
	}

	blobs, err := storage.NewProvider(cfg.BlobStorage, cfg.BlobOptions())
	if err != nil {
		_ = factory.Close()
		return nil, fmt.Errorf("failed to initialize blob storage: %w", err)
	}
	return images.NewRepository(factory.GetProvider(), blobs), nil
}

// NewTranscoder 按名称创建转码器，未知名称使用标准库实现
func NewTranscoder(name string) imaging.Transcoder {
	switch name {
	case "vips", "libvips":
		return vips.New()
	case "std", "":
		return imaging.NewStdTranscoder()
	default:
		log.Warn().Str("encoder", name).Msg("Unknown image encoder, falling back to std")
		return imaging.NewStdTranscoder()
	}
}

// DiscoveryOptions 合并配置文件与命令行给出的发现器选项
func (c *Container) DiscoveryOptions(headless bool, driverPath string, noManager bool) discovery.Options {
	return discovery.Options{
		Endpoint:   c.config.DiscoveryEndpoint,
		UserAgent:  c.config.FetchUserAgent,
		Pages:      c.config.DiscoveryPages,
		Wait:       c.config.DiscoveryWait,
		Headless:   headless,
		DriverPath: driverPath,
		NoManager:  noManager,
	}
}

// Pipeline 创建采集流水线
func (c *Container) Pipeline(opts discovery.Options) *scraper.Pipeline {
	fetch := fetcher.New(fetcher.Options{
		Timeout:   c.config.FetchTimeout,
		UserAgent: c.config.FetchUserAgent,
		MaxBytes:  c.config.FetchMaxBytes,
		RateLimit: c.config.FetchRateLimit,
	})

	return scraper.NewPipeline(
		c.store,
		c.index,
		discovery.New(opts),
		fetch,
		c.transcoder,
		c.imageDir,
		c.metrics,
		scraper.Options{
			MinImageBytes:       c.config.MinImageBytes,
			CandidateMultiplier: c.config.CandidateMultiplier,
			JPEGQuality:         c.config.JPEGQuality,
			Workers:             c.config.FetchWorkers,
		},
	)
}

// Exporter 创建导出工具，输出到 export_dir
func (c *Container) Exporter() (*exporter.Exporter, error) {
	out, err := storage.NewLocalStorage(c.config.ExportDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare export directory: %w", err)
	}
	return exporter.New(c.store, out, c.transcoder, c.config.JPEGQuality), nil
}

// Store 获取元数据存储
func (c *Container) Store() database.ImageStore {
	return c.store
}

// Metrics 获取指标集合
func (c *Container) Metrics() *metrics.Metrics {
	return c.metrics
}

// GetConfig 获取配置
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// Close 关闭所有服务，可重复调用
func (c *Container) Close() error {
	log.Debug().Msg("Closing DI container...")

	var errs []error
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
		c.cache = nil
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
		c.store = nil
	}
	if _, ok := c.transcoder.(*vips.Transcoder); ok {
		vips.Shutdown()
	}

	log.Debug().Msg("DI container closed")
	return errors.Join(errs...)
}

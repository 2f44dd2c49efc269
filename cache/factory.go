package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/anoixa/image-scraper/cache/gocache"
	"github.com/anoixa/image-scraper/cache/redis"
	"github.com/anoixa/image-scraper/cache/ristretto"
	"github.com/rs/zerolog/log"
)

// Config 缓存配置
type Config struct {
	Type          string // memory / ristretto / redis / none
	TTL           time.Duration
	MaxEntries    int64
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewProvider 根据配置创建缓存提供者
func NewProvider(cfg Config) (Provider, error) {
	var (
		provider Provider
		err      error
	)

	switch cfg.Type {
	case "memory", "":
		provider = gocache.NewGoCache(cfg.TTL, 10*time.Minute)
	case "ristretto":
		provider, err = ristretto.NewRistretto(ristretto.Config{
			MaxEntries: cfg.MaxEntries,
			DefaultTTL: cfg.TTL,
		})
	case "redis":
		provider, err = redis.NewRedis(redis.Config{
			Address:    cfg.RedisAddr,
			Password:   cfg.RedisPassword,
			DB:         cfg.RedisDB,
			DefaultTTL: cfg.TTL,
		})
	case "none":
		provider = Noop{}
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create %s cache: %w", cfg.Type, err)
	}

	log.Debug().Str("cache", provider.Name()).Msg("Cache provider initialized")
	return provider, nil
}

// Noop 不缓存任何内容
type Noop struct{}

func (Noop) Set(context.Context, string, interface{}, time.Duration) error { return nil }

func (Noop) Exists(context.Context, string) (bool, error) { return false, nil }

func (Noop) Close() error { return nil }

func (Noop) Name() string { return "none" }

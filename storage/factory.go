package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"
)

// LocalConfig 本地存储配置
type LocalConfig struct {
	Path string `mapstructure:"path"`
}

// NewProvider 根据存储类型和原始配置项创建存储提供者
// options 通常来自 config.Config.BlobOptions()
func NewProvider(kind string, options map[string]interface{}) (Provider, error) {
	var (
		provider Provider
		err      error
	)

	switch kind {
	case "local", "":
		var cfg LocalConfig
		if err = decodeOptions(options, &cfg); err != nil {
			return nil, err
		}
		if cfg.Path == "" {
			return nil, fmt.Errorf("local storage path is required")
		}
		provider, err = NewLocalStorage(cfg.Path)
	case "minio":
		var cfg MinioConfig
		if err = decodeOptions(options, &cfg); err != nil {
			return nil, err
		}
		provider, err = NewMinioStorage(cfg)
	case "webdav":
		var cfg WebDAVConfig
		if err = decodeOptions(options, &cfg); err != nil {
			return nil, err
		}
		provider, err = NewWebDAVStorage(cfg)
	default:
		return nil, fmt.Errorf("unsupported blob storage type: %s", kind)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", kind, err)
	}

	log.Info().Str("provider", provider.Name()).Msg("Blob storage initialized")
	return provider, nil
}

// decodeOptions 使用 mapstructure 解码配置项，支持 "30s" 形式的时长
func decodeOptions(options map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(options); err != nil {
		return fmt.Errorf("invalid storage options: %w", err)
	}
	return nil
}

// withTimeout 为单次操作附加超时，timeout <= 0 时不限制
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

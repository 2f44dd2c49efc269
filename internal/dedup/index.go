// Package dedup 基于 SHA-256 的全局去重索引
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/anoixa/image-scraper/cache"
	"github.com/anoixa/image-scraper/database"
	"github.com/anoixa/image-scraper/database/models"
	"github.com/rs/zerolog/log"
)

// Checksum 计算原始字节的 SHA-256 十六进制摘要
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Index 去重索引
// 记录永不删除，所以只缓存"存在"的结果；"不存在"每次都回源
type Index struct {
	store database.ImageStore
	cache cache.Provider
	keys  *cache.KeyBuilder
	ttl   time.Duration
}

// NewIndex 创建去重索引，c 为 nil 时不使用缓存
func NewIndex(store database.ImageStore, c cache.Provider, ttl time.Duration) *Index {
	if c == nil {
		c = cache.Noop{}
	}
	return &Index{
		store: store,
		cache: c,
		keys:  cache.NewKeyBuilder("checksum"),
		ttl:   ttl,
	}
}

// Exists 检查 checksum 是否已入库（不区分查询词）
func (i *Index) Exists(ctx context.Context, checksum string) (bool, error) {
	key := i.keys.Build(checksum)

	hit, err := i.cache.Exists(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("cache", i.cache.Name()).Msg("Checksum cache lookup failed, falling back to store")
	} else if hit {
		return true, nil
	}

	found, err := i.store.Exists(ctx, checksum)
	if err != nil {
		return false, err
	}
	if found {
		i.Remember(ctx, checksum)
	}
	return found, nil
}

// Remember 记录已入库的 checksum
func (i *Index) Remember(ctx context.Context, checksum string) {
	if err := i.cache.Set(ctx, i.keys.Build(checksum), true, i.ttl); err != nil {
		log.Warn().Err(err).Str("cache", i.cache.Name()).Msg("Failed to cache checksum")
	}
}

// Count 统计查询词下的记录数
func (i *Index) Count(ctx context.Context, query string) (int64, error) {
	return i.store.Count(ctx, query)
}

// ListRecent 返回查询词下最新的 limit 条记录
func (i *Index) ListRecent(ctx context.Context, query string, limit int) ([]*models.Image, error) {
	return i.store.ListRecent(ctx, query, limit)
}

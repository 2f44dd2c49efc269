// Package exporter 把某个查询词下的图片导出为 JPEG 文件
package exporter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/anoixa/image-scraper/database"
	"github.com/anoixa/image-scraper/database/models"
	"github.com/anoixa/image-scraper/internal/imaging"
	"github.com/anoixa/image-scraper/storage"
	"github.com/anoixa/image-scraper/utils/format"
	"github.com/anoixa/image-scraper/utils/naming"
	"github.com/rs/zerolog/log"
)

// DefaultLimit 默认导出数量
const DefaultLimit = 20

// Report 导出统计
type Report struct {
	Query    string `json:"query"`
	Dir      string `json:"dir"`
	Found    int    `json:"found"`
	Exported int    `json:"exported"`
	Failed   int    `json:"failed"`
}

// Exporter 图片导出工具
type Exporter struct {
	store      database.ImageStore
	out        *storage.LocalStorage
	transcoder imaging.Transcoder
	quality    int
}

// New 创建导出工具，文件写入 out 所在目录
func New(store database.ImageStore, out *storage.LocalStorage, transcoder imaging.Transcoder, quality int) *Exporter {
	if transcoder == nil {
		transcoder = imaging.NewStdTranscoder()
	}
	if quality <= 0 || quality > 100 {
		quality = imaging.DefaultQuality
	}
	return &Exporter{
		store:      store,
		out:        out,
		transcoder: transcoder,
		quality:    quality,
	}
}

// Export 导出最新的 limit 张图片到 <dir>/<query>/<query>_<i>.jpg，i 从 1 开始
// 没有记录时只记录警告；单张图片失败时记录日志并继续
func (e *Exporter) Export(ctx context.Context, query string, limit int) (*Report, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	records, err := e.store.ListRecent(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	safe := naming.SanitizeFilename(query)
	report := &Report{
		Query: query,
		Dir:   e.out.Path(safe),
		Found: len(records),
	}

	if len(records) == 0 {
		log.Warn().Str("query", query).Msg("No images found for query")
		return report, nil
	}
	log.Info().Str("query", query).Int("count", len(records)).Msg("Exporting images")

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		handle := path.Join(safe, fmt.Sprintf("%s_%d.jpg", safe, i+1))
		size, err := e.exportOne(ctx, rec, handle)
		if err != nil {
			report.Failed++
			log.Error().Err(err).Str("checksum", rec.Checksum).Int("index", i+1).Msg("Failed to export image")
			continue
		}

		report.Exported++
		log.Info().Str("path", e.out.Path(handle)).Str("size", format.HumanReadableSize(size)).Msg("Saved image")
	}

	return report, nil
}

// exportOne 读取原始字节，重新编码为 JPEG 后写入 handle
func (e *Exporter) exportOne(ctx context.Context, rec *models.Image, handle string) (int64, error) {
	rc, err := e.store.OpenBlob(ctx, rec)
	if err != nil {
		return 0, fmt.Errorf("failed to open blob: %w", err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return 0, fmt.Errorf("failed to read blob: %w", err)
	}

	jpg, err := e.transcoder.ToJPEG(data, e.quality)
	if err != nil {
		return 0, err
	}

	if err := e.out.SaveWithContext(ctx, handle, bytes.NewReader(jpg)); err != nil {
		return 0, err
	}
	return int64(len(jpg)), nil
}

package images

import (
	"context"
	"time"

	"github.com/anoixa/image-scraper/database"
	"github.com/anoixa/image-scraper/database/models"
	"github.com/anoixa/image-scraper/internal/scraper"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
	maxAcquireCount  = 100
)

// Acquirer 采集接口，由 scraper.Pipeline 实现
type Acquirer interface {
	EnsureImages(ctx context.Context, query string, requiredCount int) (*scraper.Result, error)
}

// Handler 图片处理器
type Handler struct {
	store    database.ImageStore
	acquirer Acquirer
}

// NewHandler 图片处理器
func NewHandler(store database.ImageStore, acquirer Acquirer) *Handler {
	return &Handler{
		store:    store,
		acquirer: acquirer,
	}
}

// ImageDTO 图片元数据
type ImageDTO struct {
	Query       string `json:"query"`
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	Checksum    string `json:"checksum"`
	ContentType string `json:"content_type"`
	FileSize    int64  `json:"file_size"`
	RawURL      string `json:"raw_url"`
	CreatedAt   string `json:"created_at"`
}

func toImageDTOs(records []*models.Image) []*ImageDTO {
	out := make([]*ImageDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, &ImageDTO{
			Query:       rec.Query,
			Filename:    rec.Filename,
			URL:         rec.URL,
			Checksum:    rec.Checksum,
			ContentType: rec.ContentType,
			FileSize:    rec.FileSize,
			RawURL:      "/api/v1/images/" + rec.Checksum + "/raw",
			CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return out
}

// Package vips 基于 libvips 的转码器
package vips

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/anoixa/image-scraper/internal/imaging"
	"github.com/davidbyttow/govips/v2/vips"
	"github.com/rs/zerolog/log"
)

var (
	startOnce sync.Once
	started   atomic.Bool
)

// Transcoder 使用 govips 转为 JPEG
type Transcoder struct{}

var _ imaging.Transcoder = (*Transcoder)(nil)

// New 初始化 libvips（进程内只初始化一次）并返回转码器
func New() *Transcoder {
	startOnce.Do(func() {
		vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
			log.Debug().Str("component", "vips").Str("domain", domain).Msg(msg)
		}, vips.LogLevelWarning)
		vips.Startup(nil)
		started.Store(true)
	})
	return &Transcoder{}
}

// Shutdown 释放 libvips 资源，未初始化时为空操作
func Shutdown() {
	if started.Load() {
		vips.Shutdown()
	}
}

// ToJPEG 铺白底后导出 JPEG
func (Transcoder) ToJPEG(data []byte, quality int) ([]byte, error) {
	img, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", imaging.ErrDecode, err)
	}
	defer img.Close()

	if img.HasAlpha() {
		if err := img.Flatten(&vips.Color{R: 255, G: 255, B: 255}); err != nil {
			return nil, fmt.Errorf("flatten alpha: %w", err)
		}
	}

	if quality <= 0 || quality > 100 {
		quality = imaging.DefaultQuality
	}

	params := vips.NewJpegExportParams()
	params.Quality = quality
	params.StripMetadata = true

	out, _, err := img.ExportJpeg(params)
	if err != nil {
		return nil, fmt.Errorf("export jpeg: %w", err)
	}
	return out, nil
}

// Name 返回转码器名称
func (Transcoder) Name() string {
	return "vips"
}

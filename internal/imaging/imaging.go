// Package imaging 图片格式归一化
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	// 注册解码器
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/anoixa/image-scraper/utils/mime"
)

// DefaultQuality 默认 JPEG 质量
const DefaultQuality = 95

// ErrDecode 图片无法解码
var ErrDecode = errors.New("imaging: decode failed")

// Transcoder 把任意受支持格式转为 JPEG
type Transcoder interface {
	ToJPEG(data []byte, quality int) ([]byte, error)
	Name() string
}

// Normalized 归一化结果
type Normalized struct {
	Data []byte
	Ext  string
	// Converted 为 true 表示 Data 已重新编码为 JPEG
	Converted bool
}

// Normalize 声明为 WEBP 的内容转为 JPEG（扩展名 .jpg），其余保持原样，扩展名由 Content-Type 推断
func Normalize(t Transcoder, data []byte, contentType string, quality int) (*Normalized, error) {
	if !mime.IsWebP(contentType) {
		return &Normalized{Data: data, Ext: mime.ExtFromContentType(contentType)}, nil
	}

	out, err := t.ToJPEG(data, quality)
	if err != nil {
		return nil, err
	}
	return &Normalized{Data: out, Ext: ".jpg", Converted: true}, nil
}

// StdTranscoder 纯 Go 实现：标准库与 x/image 解码，image/jpeg 编码
type StdTranscoder struct{}

// NewStdTranscoder 创建纯 Go 转码器
func NewStdTranscoder() *StdTranscoder {
	return &StdTranscoder{}
}

// ToJPEG 解码后铺白底（去除透明通道）再编码为 JPEG
func (StdTranscoder) ToJPEG(data []byte, quality int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flatten(src), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Name 返回转码器名称
func (StdTranscoder) Name() string {
	return "std"
}

// flatten 将图片合成到白色背景上，得到不透明的 RGBA 图
func flatten(src image.Image) image.Image {
	switch src.(type) {
	case *image.YCbCr, *image.Gray, *image.CMYK:
		return src
	}
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, b, src, b.Min, draw.Over)
	return dst
}

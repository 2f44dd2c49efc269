package generator

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PathGenerator 分层路径生成器
type PathGenerator struct {
	newID func() string
}

// NewPathGenerator 创建路径生成器
func NewPathGenerator() *PathGenerator {
	return &PathGenerator{newID: func() string { return uuid.NewString() }}
}

// BlobHandle 生成原图在二进制存储中的句柄
// 格式: original/2024/01/15/<uuid>.jpg，与文件内容无关，可直接作为存储路径
func (pg *PathGenerator) BlobHandle(ext string, createdAt time.Time) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	datePath := createdAt.UTC().Format("2006/01/02")
	return fmt.Sprintf("original/%s/%s%s", datePath, pg.newID(), ext)
}

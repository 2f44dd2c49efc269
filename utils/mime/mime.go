// Package mime 处理 Content-Type 与文件扩展名
package mime

import (
	"strings"
)

// DefaultExt 无法识别类型时使用的扩展名
const DefaultExt = ".jpg"

// ExtFromContentType 根据 Content-Type 推断扩展名
// 采用子串匹配以兼容 "image/x-png"、"image/pjpeg" 等非标准写法，无法识别时返回 .jpg
func ExtFromContentType(contentType string) string {
	c := strings.ToLower(contentType)
	switch {
	case c == "":
		return DefaultExt
	case strings.Contains(c, "png"):
		return ".png"
	case strings.Contains(c, "jpeg"), strings.Contains(c, "jpg"):
		return ".jpg"
	case strings.Contains(c, "gif"):
		return ".gif"
	case strings.Contains(c, "webp"):
		return ".webp"
	default:
		return DefaultExt
	}
}

// IsWebP 判断 Content-Type 是否声明为 WEBP
func IsWebP(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "webp")
}

// Package format 日志展示用的格式化工具
package format

import "fmt"

const byteUnit = 1024

var units = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// HumanReadableSize 将字节数转换为 "1.50 MB" 形式，负数按 0 处理
func HumanReadableSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	if bytes < byteUnit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(byteUnit), 1
	for n := bytes / byteUnit; n >= byteUnit && exp < len(units)-1; n /= byteUnit {
		div *= byteUnit
		exp++
	}
	return fmt.Sprintf("%.2f %s", float64(bytes)/float64(div), units[exp])
}

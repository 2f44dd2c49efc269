// Package naming 负责把搜索词转换为文件系统安全的名称
package naming

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxNameLength 文件名最大长度（字节）
const MaxNameLength = 200

var lower = cases.Lower(language.Und)

// SanitizeFilename 只保留 [0-9a-zA-Z._-]，其余字符替换为下划线
// 带变音符号的拉丁字母先折叠为基本字母（é -> e）
func SanitizeFilename(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}

	var sb strings.Builder
	sb.Grow(len(folded))
	for _, r := range folded {
		if isSafe(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
		if sb.Len() >= MaxNameLength {
			break
		}
	}
	return sb.String()
}

// TopicDir 返回搜索词对应的目录名（小写后再清洗）
func TopicDir(query string) string {
	return SanitizeFilename(lower.String(query))
}

// ImageFilename 生成 "<query>_<index><ext>" 形式的文件名
func ImageFilename(query string, index int, ext string) string {
	return SanitizeFilename(fmt.Sprintf("%s_%d", query, index)) + ext
}

func isSafe(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '.' || r == '_' || r == '-'
}

package config

import "fmt"

// 构建时通过 -ldflags 注入
var (
	Version    string = "dev"
	CommitHash string = ""
)

// IsDevelopment 判断是否为开发环境
func IsDevelopment() bool {
	return Version == "dev"
}

// VersionString 返回 "版本 (提交)" 形式的版本信息
func VersionString() string {
	if CommitHash == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, CommitHash)
}

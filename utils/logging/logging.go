// Package logging 初始化全局 zerolog 日志器
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options 日志配置
type Options struct {
	Level  string // trace/debug/info/warn/error
	Format string // console/json
	File   string // 非空时额外写入滚动日志文件
}

// Setup 根据配置设置全局日志器，返回的 io.Closer 用于关闭日志文件
func Setup(opts Options) io.Closer {
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer
	if strings.EqualFold(opts.Format, "json") {
		out = os.Stderr
	} else {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(out, rotator)
		closer = rotator
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger().Level(ParseLevel(opts.Level))
	return closer
}

// ParseLevel 解析日志级别，无法识别时返回 info
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Component 返回带 component 字段的子日志器
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

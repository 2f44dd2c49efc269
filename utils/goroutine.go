package utils

import (
	"runtime/debug"

	"github.com/rs/zerolog/log"
)

// SafeGo 启动后台 goroutine，panic 时记录日志而不是让进程退出
func SafeGo(name string, fn func()) {
	go func() {
		defer func() {
			if err := recover(); err != nil {
				log.Error().
					Str("goroutine", name).
					Interface("panic", err).
					Bytes("stack", debug.Stack()).
					Msg("Panic recovered")
			}
		}()
		fn()
	}()
}

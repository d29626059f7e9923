package global

import (
	"fmt"
	"runtime"

	dumpx "github.com/gookit/goutil/dump"
	"go.uber.org/zap"
)

// Logger is the process-wide logger, assigned once during server startup
// Logger 进程级日志器，服务启动时赋值一次
var Logger *zap.Logger

func Log() *zap.Logger {
	return Logger
}

// Dump prints values with the caller position, debugging helper only
// Dump 携带调用位置打印变量，仅用于调试
func Dump(a ...any) {
	if _, file, line, ok := runtime.Caller(1); ok {
		fmt.Printf("\033[32m%s:%d:\033[0m\n", file, line)
	}
	dumpx.P(a...)
}

package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger 构建全局日志器，之后各处通过 zap.L() / zap.S() 使用
func InitLogger(logLevel string) {
	cfg := zap.NewDevelopmentConfig()

	level, parseErr := zapcore.ParseLevel(logLevel)
	if parseErr != nil {
		level = zapcore.InfoLevel
	}
	cfg.Level.SetLevel(level)

	// 非调试级别下不输出调用栈，避免日志刷屏
	if level > zapcore.DebugLevel {
		cfg.DisableStacktrace = true
	}

	lgr, err := cfg.Build(zap.Fields(zap.String("service", "imposter-room")))
	if err != nil {
		panic(fmt.Errorf("构建日志器失败: %w", err))
	}

	zap.ReplaceGlobals(lgr)

	if parseErr != nil {
		zap.L().Warn("未知的日志级别，使用 info", zap.String("log_level", logLevel))
	}
}

// Sync 在进程退出前刷新缓冲
func Sync() {
	_ = zap.L().Sync()
}

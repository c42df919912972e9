// Package logger 提供 natprobe 的统一日志
//
// 基于标准库 log/slog，按子系统缓存 Logger，级别由环境变量
// NATPROBE_LOG_LEVEL 控制，也可在运行时通过 SetLevel 调整。
//
// 使用示例:
//
//	var log = logger.Logger("probe")
//
//	log.Info("获取到映射地址", "addr", addr, "localPort", port)
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	loggers  sync.Map // subsystem -> *slog.Logger
	handlers sync.Map // subsystem -> *levelHandler
)

// Logger 返回指定子系统的 Logger，同名子系统共享实例
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	h := newLevelHandler(subsystem, CurrentSettings())
	actual, loaded := loggers.LoadOrStore(subsystem, slog.New(h))
	if !loaded {
		handlers.Store(subsystem, h)
	}
	return actual.(*slog.Logger)
}

// SetLevel 运行时调整子系统级别
func SetLevel(subsystem string, level slog.Level) {
	if h, ok := handlers.Load(subsystem); ok {
		h.(*levelHandler).level.Set(level)
	}
}

// SetGlobalLevel 调整所有已创建子系统的级别
func SetGlobalLevel(level slog.Level) {
	handlers.Range(func(_, v any) bool {
		v.(*levelHandler).level.Set(level)
		return true
	})
}

// ApplyLevelSpec 按描述串调整级别，对已创建和之后创建的 Logger 均生效
//
// 格式同 NATPROBE_LOG_LEVEL。应在启动阶段调用。
func ApplyLevelSpec(spec string) {
	s := CurrentSettings()
	ParseLevelSpec(s, spec)
	handlers.Range(func(k, v any) bool {
		v.(*levelHandler).level.Set(s.levelFor(k.(string)))
		return true
	})
}

// SetOutput 设置全局输出目标，对已创建的 Logger 同样生效
func SetOutput(w io.Writer) {
	outputMu.Lock()
	output = w
	outputMu.Unlock()
}

// Discard 返回丢弃所有记录的 Logger（用于测试）
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

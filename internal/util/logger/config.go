package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// 环境变量名
const (
	EnvLevel     = "NATPROBE_LOG_LEVEL"
	EnvFormat    = "NATPROBE_LOG_FORMAT"
	EnvAddSource = "NATPROBE_LOG_ADD_SOURCE"
)

// Format 日志输出格式
type Format int

const (
	// FormatText 文本格式（默认）
	FormatText Format = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// Settings 日志设置
type Settings struct {
	// Level 默认级别
	Level slog.Level

	// Subsystems 按子系统覆盖的级别
	Subsystems map[string]slog.Level

	// Format 输出格式
	Format Format

	// AddSource 是否输出源码位置
	AddSource bool
}

// levelFor 返回子系统生效的级别
func (s *Settings) levelFor(subsystem string) slog.Level {
	if lvl, ok := s.Subsystems[subsystem]; ok {
		return lvl
	}
	return s.Level
}

var (
	settings     *Settings
	settingsOnce sync.Once
)

// CurrentSettings 返回当前日志设置
//
// 首次调用时从环境变量解析：
//   - NATPROBE_LOG_LEVEL: 子系统=级别,...,默认级别，例如 probe=debug,warn
//   - NATPROBE_LOG_FORMAT: text 或 json
//   - NATPROBE_LOG_ADD_SOURCE: true 或 false
func CurrentSettings() *Settings {
	settingsOnce.Do(func() {
		settings = settingsFromEnv()
	})
	return settings
}

func settingsFromEnv() *Settings {
	s := &Settings{
		Level:      slog.LevelInfo,
		Subsystems: make(map[string]slog.Level),
		Format:     FormatText,
	}
	if v := os.Getenv(EnvLevel); v != "" {
		ParseLevelSpec(s, v)
	}
	if strings.EqualFold(os.Getenv(EnvFormat), "json") {
		s.Format = FormatJSON
	}
	if v := os.Getenv(EnvAddSource); v != "" {
		s.AddSource = v != "false" && v != "0"
	}
	return s
}

// ParseLevelSpec 解析级别描述串并写入 s
//
// 格式: subsystem=level,subsystem=level,defaultLevel
// 无法识别的片段被忽略。
func ParseLevelSpec(s *Settings, spec string) {
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, lvl, found := strings.Cut(part, "=")
		if !found {
			if level, ok := ParseLevel(part); ok {
				s.Level = level
			}
			continue
		}
		if level, ok := ParseLevel(strings.TrimSpace(lvl)); ok {
			s.Subsystems[strings.TrimSpace(name)] = level
		}
	}
}

// ParseLevel 解析日志级别名称
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// resetSettings 重置缓存（仅用于测试）
func resetSettings() {
	settingsOnce = sync.Once{}
	settings = nil
}

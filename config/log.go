package config

import (
	"fmt"
	"strings"
)

// LogConfig 日志配置
//
// 输出格式由环境变量 NATPROBE_LOG_FORMAT 决定，在包初始化时生效。
type LogConfig struct {
	// Level 级别描述，格式 subsystem=level,...,default
	Level string `json:"level"`

	// File 日志文件路径，为空时输出到 stderr
	File string `json:"file,omitempty"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level: "info",
	}
}

// Validate 验证日志配置
func (c LogConfig) Validate() error {
	for _, part := range strings.Split(c.Level, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, lvl, found := strings.Cut(part, "="); found {
			part = strings.TrimSpace(lvl)
		}
		switch strings.ToLower(part) {
		case "debug", "info", "warn", "warning", "error":
		default:
			return fmt.Errorf("unknown log level %q", part)
		}
	}
	return nil
}

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dep2p/go-natprobe/config"
	"github.com/dep2p/go-natprobe/internal/util/logger"
)

// ============================================================================
//                              配置加载（CLI 专用）
// ============================================================================

// loadConfig 加载配置
//
// 优先级：命令行参数 > 环境变量 > 配置文件 > 默认值。
// 这里只处理后三者，命令行参数由调用方覆盖。
func loadConfig(path string) (*config.Config, []string, error) {
	cfg := config.NewConfig()
	if path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}
	ignored := config.ApplyEnv(cfg)
	return cfg, ignored, nil
}

// setupLogging 应用日志级别并按需重定向到文件
//
// 返回的关闭函数总是非 nil。
func setupLogging(cfg config.LogConfig) (func(), error) {
	logger.ApplyLevelSpec(cfg.Level)
	if cfg.File == "" {
		return func() {}, nil
	}

	if dir := filepath.Dir(cfg.File); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("创建日志目录失败: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // G304: 用户指定的日志路径
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	logger.SetOutput(f)
	return func() {
		logger.SetOutput(os.Stderr)
		_ = f.Close()
	}, nil
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// 环境变量前缀和名称常量（供 cmd 层使用）
const (
	// EnvPrefix 环境变量前缀
	EnvPrefix = "NATPROBE_"

	// EnvHost rendezvous 主机
	EnvHost = "HOST"

	// EnvPort rendezvous 端口
	EnvPort = "PORT"

	// EnvLocalPort 本地绑定端口
	EnvLocalPort = "LOCAL_PORT"

	// EnvInitialTimeout 首次尝试超时，例如 500ms
	EnvInitialTimeout = "INITIAL_TIMEOUT"

	// EnvTimeoutCeiling 超时上限
	EnvTimeoutCeiling = "TIMEOUT_CEILING"

	// EnvRetryDelay 重试间隔
	EnvRetryDelay = "RETRY_DELAY"

	// EnvListenAddr 服务端监听地址
	EnvListenAddr = "LISTEN_ADDR"

	// EnvMetricsAddr 服务端指标地址
	EnvMetricsAddr = "METRICS_ADDR"

	// EnvLogFile 日志文件路径
	EnvLogFile = "LOG_FILE"

	// EnvEnableMetrics 是否启用指标
	EnvEnableMetrics = "ENABLE_METRICS"
)

// ApplyEnv 使用环境变量覆盖配置
//
// 无法解析的值被忽略，返回被忽略的变量名。
func ApplyEnv(cfg *Config) (ignored []string) {
	return applyEnv(cfg, os.Getenv)
}

func applyEnv(cfg *Config, getenv func(string) string) (ignored []string) {
	lookup := func(name string) (string, bool) {
		v := strings.TrimSpace(getenv(EnvPrefix + name))
		return v, v != ""
	}
	setInt := func(name string, dst *int) {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				ignored = append(ignored, EnvPrefix+name)
				return
			}
			*dst = n
		}
	}
	setDuration := func(name string, dst *Duration) {
		if v, ok := lookup(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				ignored = append(ignored, EnvPrefix+name)
				return
			}
			*dst = Duration(d)
		}
	}

	if v, ok := lookup(EnvHost); ok {
		cfg.Probe.Host = v
	}
	setInt(EnvPort, &cfg.Probe.Port)
	setInt(EnvLocalPort, &cfg.Probe.LocalPort)
	setDuration(EnvInitialTimeout, &cfg.Probe.InitialTimeout)
	setDuration(EnvTimeoutCeiling, &cfg.Probe.TimeoutCeiling)
	setDuration(EnvRetryDelay, &cfg.Probe.RetryDelay)
	if v, ok := lookup(EnvEnableMetrics); ok {
		cfg.Probe.EnableMetrics = ParseBool(v)
	}
	if v, ok := lookup(EnvListenAddr); ok {
		cfg.Rendezvous.ListenAddr = v
	}
	if v, ok := lookup(EnvMetricsAddr); ok {
		cfg.Rendezvous.MetricsAddr = v
	}
	if v, ok := lookup(EnvLogFile); ok {
		cfg.Log.File = v
	}
	return ignored
}

// ParseBool 宽松解析布尔值
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

package config

import (
	"errors"
	"time"

	"go.uber.org/multierr"
)

// ProbeConfig 客户端探测配置
//
// 时间参数决定重试次数：超时从 InitialTimeout 开始每次翻倍，
// 翻倍后超过 TimeoutCeiling 即放弃。默认值下依次尝试 500ms、1s、2s。
type ProbeConfig struct {
	// Host rendezvous 服务器主机名或 IP
	Host string `json:"host"`

	// Port rendezvous 服务器端口
	Port int `json:"port"`

	// LocalPort 本地 UDP 绑定端口，0 表示系统分配
	LocalPort int `json:"local_port"`

	// InitialDelay 首次尝试前的延迟
	InitialDelay Duration `json:"initial_delay"`

	// InitialTimeout 首次尝试的超时
	InitialTimeout Duration `json:"initial_timeout"`

	// TimeoutCeiling 超时上限
	TimeoutCeiling Duration `json:"timeout_ceiling"`

	// RetryDelay 两次尝试之间的延迟
	RetryDelay Duration `json:"retry_delay"`

	// ErrorNotifyDelay 错误通知的投递延迟
	ErrorNotifyDelay Duration `json:"error_notify_delay"`

	// MaxWorkers 共享工作池的并发上限
	MaxWorkers int `json:"max_workers"`

	// EnableMetrics 是否注册 Prometheus 指标
	EnableMetrics bool `json:"enable_metrics"`
}

// DefaultProbeConfig 返回默认探测配置
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Port:             3478,
		InitialDelay:     Duration(10 * time.Millisecond),
		InitialTimeout:   Duration(500 * time.Millisecond),
		TimeoutCeiling:   Duration(3000 * time.Millisecond),
		RetryDelay:       Duration(2000 * time.Millisecond),
		ErrorNotifyDelay: Duration(10 * time.Millisecond),
		MaxWorkers:       64,
		EnableMetrics:    true,
	}
}

// Validate 验证探测配置
func (c ProbeConfig) Validate() (err error) {
	if c.Port <= 0 || c.Port > 65535 {
		err = multierr.Append(err, errors.New("probe port must be in 1..65535"))
	}
	if c.LocalPort < 0 || c.LocalPort > 65535 {
		err = multierr.Append(err, errors.New("probe local port must be in 0..65535"))
	}
	if c.InitialDelay < 0 {
		err = multierr.Append(err, errors.New("probe initial delay must not be negative"))
	}
	if c.InitialTimeout <= 0 {
		err = multierr.Append(err, errors.New("probe initial timeout must be positive"))
	}
	if c.TimeoutCeiling < c.InitialTimeout {
		err = multierr.Append(err, errors.New("probe timeout ceiling must not be less than initial timeout"))
	}
	if c.RetryDelay < 0 {
		err = multierr.Append(err, errors.New("probe retry delay must not be negative"))
	}
	if c.ErrorNotifyDelay < 0 {
		err = multierr.Append(err, errors.New("probe error notify delay must not be negative"))
	}
	if c.MaxWorkers <= 0 {
		err = multierr.Append(err, errors.New("probe max workers must be positive"))
	}
	return err
}

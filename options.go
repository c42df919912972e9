package natprobe

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-natprobe/config"
	"github.com/dep2p/go-natprobe/internal/core/probe"
)

// Option 应用配置选项
type Option func(*appConfig) error

// appConfig 组装应用所需的配置
type appConfig struct {
	config       *config.Config
	rendezvous   bool
	registerer   prometheus.Registerer
	probeOptions []probe.Option
	userFx       []fx.Option
}

func newAppConfig() *appConfig {
	return &appConfig{config: config.NewConfig()}
}

// WithConfig 使用给定的统一配置
func WithConfig(cfg *config.Config) Option {
	return func(c *appConfig) error {
		if cfg == nil {
			return config.ErrNilConfig
		}
		c.config = cfg
		return nil
	}
}

// WithRendezvousServer 同时启动 rendezvous 服务端
func WithRendezvousServer(enable bool) Option {
	return func(c *appConfig) error {
		c.rendezvous = enable
		return nil
	}
}

// WithRegisterer 指定指标注册器，缺省使用默认注册器
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *appConfig) error {
		c.registerer = reg
		return nil
	}
}

// WithTimeouts 设置初始超时与超时上限
func WithTimeouts(initial, ceiling time.Duration) Option {
	return func(c *appConfig) error {
		c.probeOptions = append(c.probeOptions,
			probe.WithInitialTimeout(initial),
			probe.WithTimeoutCeiling(ceiling))
		return nil
	}
}

// WithRetryDelay 设置失败后的重试延迟
func WithRetryDelay(d time.Duration) Option {
	return func(c *appConfig) error {
		c.probeOptions = append(c.probeOptions, probe.WithRetryDelay(d))
		return nil
	}
}

// WithMaxWorkers 设置并发工作协程上限
func WithMaxWorkers(n int64) Option {
	return func(c *appConfig) error {
		c.probeOptions = append(c.probeOptions, probe.WithMaxWorkers(n))
		return nil
	}
}

// WithFxOption 追加自定义 fx 选项
func WithFxOption(opts ...fx.Option) Option {
	return func(c *appConfig) error {
		c.userFx = append(c.userFx, opts...)
		return nil
	}
}

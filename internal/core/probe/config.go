package probe

import (
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/dep2p/go-natprobe/config"
)

// 默认参数
const (
	DefaultInitialDelay      = 10 * time.Millisecond
	DefaultInitialTimeout    = 500 * time.Millisecond
	DefaultTimeoutCeiling    = 3000 * time.Millisecond
	DefaultRetryDelay        = 2000 * time.Millisecond
	DefaultErrorNotifyDelay  = 10 * time.Millisecond
	DefaultMaxWorkers        = 64
	DefaultReceiveBufferSize = 1024
)

// Config 探测配置
type Config struct {
	// InitialDelay 首次尝试前的延迟
	InitialDelay time.Duration

	// InitialTimeout 首次尝试超时
	InitialTimeout time.Duration

	// TimeoutCeiling 超时上限，翻倍后超过即放弃
	TimeoutCeiling time.Duration

	// RetryDelay 两次尝试之间的延迟
	RetryDelay time.Duration

	// ErrorNotifyDelay 错误通知投递延迟
	ErrorNotifyDelay time.Duration

	// MaxWorkers 工作池并发上限
	MaxWorkers int64

	// ReceiveBufferSize 接收缓冲区大小
	ReceiveBufferSize int

	// EnableMetrics 是否记录 Prometheus 指标
	EnableMetrics bool

	// Clock 调度时钟，测试中可替换为 clock.NewMock()
	Clock clock.Clock
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		InitialDelay:      DefaultInitialDelay,
		InitialTimeout:    DefaultInitialTimeout,
		TimeoutCeiling:    DefaultTimeoutCeiling,
		RetryDelay:        DefaultRetryDelay,
		ErrorNotifyDelay:  DefaultErrorNotifyDelay,
		MaxWorkers:        DefaultMaxWorkers,
		ReceiveBufferSize: DefaultReceiveBufferSize,
		EnableMetrics:     true,
		Clock:             clock.New(),
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}

	var err error
	if c.InitialDelay < 0 {
		err = multierr.Append(err, errors.New("initial delay must not be negative"))
	}
	if c.InitialTimeout <= 0 {
		err = multierr.Append(err, errors.New("initial timeout must be positive"))
	}
	if c.TimeoutCeiling < c.InitialTimeout {
		err = multierr.Append(err, errors.New("timeout ceiling must not be less than initial timeout"))
	}
	if c.RetryDelay < 0 {
		err = multierr.Append(err, errors.New("retry delay must not be negative"))
	}
	if c.ErrorNotifyDelay < 0 {
		err = multierr.Append(err, errors.New("error notify delay must not be negative"))
	}
	if c.MaxWorkers <= 0 {
		err = multierr.Append(err, errors.New("max workers must be positive"))
	}
	if c.ReceiveBufferSize < 64 {
		err = multierr.Append(err, errors.New("receive buffer size must be at least 64"))
	}
	if c.Clock == nil {
		err = multierr.Append(err, errors.New("clock is nil"))
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ConfigFromUnified 从统一配置创建探测配置
func ConfigFromUnified(cfg *config.Config) *Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	p := cfg.Probe
	c.InitialDelay = p.InitialDelay.Duration()
	c.InitialTimeout = p.InitialTimeout.Duration()
	c.TimeoutCeiling = p.TimeoutCeiling.Duration()
	c.RetryDelay = p.RetryDelay.Duration()
	c.ErrorNotifyDelay = p.ErrorNotifyDelay.Duration()
	c.MaxWorkers = int64(p.MaxWorkers)
	c.EnableMetrics = p.EnableMetrics
	return c
}

// Option 配置选项
type Option func(*Config) error

// Apply 依次应用选项
func (c *Config) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

// WithInitialDelay 设置首次尝试延迟
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) error {
		c.InitialDelay = d
		return nil
	}
}

// WithInitialTimeout 设置首次尝试超时
func WithInitialTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return fmt.Errorf("%w: initial timeout must be positive", ErrInvalidConfig)
		}
		c.InitialTimeout = d
		return nil
	}
}

// WithTimeoutCeiling 设置超时上限
func WithTimeoutCeiling(d time.Duration) Option {
	return func(c *Config) error {
		c.TimeoutCeiling = d
		return nil
	}
}

// WithRetryDelay 设置重试间隔
func WithRetryDelay(d time.Duration) Option {
	return func(c *Config) error {
		c.RetryDelay = d
		return nil
	}
}

// WithErrorNotifyDelay 设置错误通知延迟
func WithErrorNotifyDelay(d time.Duration) Option {
	return func(c *Config) error {
		c.ErrorNotifyDelay = d
		return nil
	}
}

// WithMaxWorkers 设置工作池并发上限
func WithMaxWorkers(n int64) Option {
	return func(c *Config) error {
		if n <= 0 {
			return fmt.Errorf("%w: max workers must be positive", ErrInvalidConfig)
		}
		c.MaxWorkers = n
		return nil
	}
}

// WithClock 设置调度时钟
func WithClock(clk clock.Clock) Option {
	return func(c *Config) error {
		if clk == nil {
			return fmt.Errorf("%w: clock is nil", ErrInvalidConfig)
		}
		c.Clock = clk
		return nil
	}
}

// WithMetrics 启用或关闭指标
func WithMetrics(enabled bool) Option {
	return func(c *Config) error {
		c.EnableMetrics = enabled
		return nil
	}
}

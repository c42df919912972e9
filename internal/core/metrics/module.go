package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"

	"github.com/dep2p/go-natprobe/config"
)

// Config 指标配置
type Config struct {
	// Addr /metrics 监听地址，为空时不导出
	Addr string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{}
}

// ConfigFromUnified 从统一配置创建指标配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		Addr: cfg.Rendezvous.MetricsAddr,
	}
}

// NewRegistry 创建注册器并注册运行时指标
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Params Metrics 依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// Result Metrics 输出
type Result struct {
	fx.Out

	Registry   *prometheus.Registry
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	Exporter   *Exporter
}

// Provide 提供注册器与导出器
func Provide(p Params) Result {
	reg := NewRegistry()
	return Result{
		Registry:   reg,
		Registerer: reg,
		Gatherer:   reg,
		Exporter:   NewExporter(ConfigFromUnified(p.UnifiedCfg).Addr, reg),
	}
}

// Module 是 metrics 的 Fx 模块
var Module = fx.Module("metrics",
	fx.Provide(Provide),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, exporter *Exporter) {
	lc.Append(fx.Hook{
		OnStart: exporter.Start,
		OnStop: func(ctx context.Context) error {
			return exporter.Close(ctx)
		},
	})
}

package natprobe

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-natprobe/internal/core/metrics"
	"github.com/dep2p/go-natprobe/internal/core/probe"
	"github.com/dep2p/go-natprobe/internal/core/rendezvous"
	"github.com/dep2p/go-natprobe/internal/util/logger"
	"github.com/dep2p/go-natprobe/pkg/interfaces"
)

var fxLog = logger.Logger("natprobe/fx")

// App 组装好的探测应用
type App struct {
	app      *fx.App
	prober   interfaces.Prober
	server   *rendezvous.Server
	exporter *metrics.Exporter
}

// New 创建应用，尚未启动
func New(opts ...Option) (*App, error) {
	cfg := newAppConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	a := &App{}
	fxApp, err := buildFxApp(cfg, a)
	if err != nil {
		return nil, err
	}
	a.app = fxApp
	return a, nil
}

// buildFxApp 构建 Fx 应用
//
// 加载顺序：配置 → 指标 → 探测模块 → 服务端模块（可选）→ 用户选项
//
// 指定了外部注册器时不加载指标模块，也不导出 /metrics。
func buildFxApp(cfg *appConfig, a *App) (*fx.App, error) {
	if err := cfg.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	options := []fx.Option{
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
		fx.Supply(cfg.config),
	}

	if cfg.registerer != nil {
		options = append(options, fx.Provide(func() prometheus.Registerer { return cfg.registerer }))
	} else {
		options = append(options, metrics.Module, fx.Populate(&a.exporter))
	}
	for _, opt := range cfg.probeOptions {
		opt := opt
		options = append(options, fx.Provide(fx.Annotate(
			func() probe.Option { return opt },
			fx.ResultTags(`group:"probe_options"`),
		)))
	}

	options = append(options, probe.Module(), fx.Populate(&a.prober))

	if cfg.rendezvous {
		options = append(options, rendezvous.Module(), fx.Populate(&a.server))
	}

	options = append(options, cfg.userFx...)

	app := fx.New(options...)
	if err := app.Err(); err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	fxLog.Debug("Fx 应用构建完成", "rendezvous", cfg.rendezvous)
	return app, nil
}

// Start 启动应用
func (a *App) Start(ctx context.Context) error {
	return a.app.Start(ctx)
}

// Stop 停止应用，未结束的探测以 ErrPoolClosed 回调
func (a *App) Stop(ctx context.Context) error {
	return a.app.Stop(ctx)
}

// Prober 返回探测器
func (a *App) Prober() Prober {
	return a.prober
}

// ServerAddr 返回服务端监听地址，未启用服务端时为空
func (a *App) ServerAddr() string {
	if a.server == nil || a.server.Addr() == nil {
		return ""
	}
	return a.server.Addr().String()
}

// MetricsAddr 返回 /metrics 监听地址，未导出时为空
func (a *App) MetricsAddr() string {
	if a.exporter == nil {
		return ""
	}
	return a.exporter.Addr()
}

package rendezvous

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-natprobe/config"
)

// ConfigFromUnified 从统一配置创建服务端配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	c.ListenAddr = cfg.Rendezvous.ListenAddr
	c.LegacyMappedAddress = cfg.Rendezvous.LegacyMappedAddress
	return c
}

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	UnifiedCfg *config.Config        `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`
}

// ProvideServer 提供服务端
func ProvideServer(input ModuleInput) *Server {
	return NewServer(ConfigFromUnified(input.UnifiedCfg), NewMetrics(input.Registerer))
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("rendezvous",
		fx.Provide(ProvideServer),
		fx.Invoke(registerLifecycle),
	)
}

// registerLifecycle 注册生命周期
func registerLifecycle(lc fx.Lifecycle, server *Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return server.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			return server.Close()
		},
	})
}

package probe

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-natprobe/config"
	"github.com/dep2p/go-natprobe/pkg/interfaces"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	// UnifiedCfg 统一配置（可选）
	UnifiedCfg *config.Config `optional:"true"`

	// Registerer 指标注册器（可选，缺省使用默认注册器）
	Registerer prometheus.Registerer `optional:"true"`

	// Options 额外选项（可选）
	Options []Option `group:"probe_options"`
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Prober    *Prober
	Interface interfaces.Prober
	Metrics   *Metrics
}

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	cfg := ConfigFromUnified(input.UnifiedCfg)
	if err := cfg.Apply(input.Options...); err != nil {
		return ModuleOutput{}, err
	}

	var metrics *Metrics
	if cfg.EnableMetrics {
		metrics = NewMetrics(input.Registerer)
	}

	prober, err := NewProber(cfg, metrics)
	if err != nil {
		return ModuleOutput{}, err
	}

	return ModuleOutput{
		Prober:    prober,
		Interface: prober,
		Metrics:   metrics,
	}, nil
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("probe",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

// lifecycleInput 生命周期输入参数
type lifecycleInput struct {
	fx.In
	LC     fx.Lifecycle
	Prober *Prober
}

// registerLifecycle 注册生命周期
func registerLifecycle(input lifecycleInput) {
	input.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			log.Info("探测模块启动")
			return nil
		},
		OnStop: func(_ context.Context) error {
			log.Info("探测模块停止", "active", input.Prober.Active())
			if err := input.Prober.Close(); err != nil {
				log.Warn("探测器关闭失败", "err", err)
			}
			return nil
		},
	})
}

// ============================================================================
//                              模块元信息
// ============================================================================

// 模块元信息常量
const (
	Version     = "1.0.0"
	Name        = "probe"
	Description = "rendezvous 地址探测模块，提供重试探测与映射地址解码"
)

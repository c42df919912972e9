// Package metrics 提供指标注册与导出
//
// 模块为整个应用提供一个独立的 Prometheus 注册器，
// 预先注册 Go 运行时与进程指标；探测与服务端模块的指标都注册到这里。
//
// 配置了导出地址时，模块在启动阶段监听该地址并通过 /metrics 暴露指标：
//
//	cfg := config.NewConfig()
//	cfg.Rendezvous.MetricsAddr = "127.0.0.1:9478"
//
//	app := fx.New(
//	    fx.Supply(cfg),
//	    metrics.Module,
//	    probe.Module(),
//	)
//
// 未配置导出地址时只提供注册器，不监听任何端口。
package metrics

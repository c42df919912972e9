// Package main 提供独立的 rendezvous 服务器
//
// rendezvous 服务器把探测请求的源地址回写给请求方，
// 使 NAT 之后的客户端得知自己的公网映射地址。
//
// 使用方法:
//
//	go run main.go -listen :3478 -metrics :9478
//
// 环境变量（NATPROBE_ 前缀）优先级高于配置文件，低于命令行参数。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dep2p/go-natprobe"
	"github.com/dep2p/go-natprobe/config"
	"github.com/dep2p/go-natprobe/internal/util/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("❌ 错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 解析命令行参数
	configFile := flag.String("config", "", "配置文件路径")
	listen := flag.String("listen", "", "UDP 监听地址（默认 :3478）")
	metricsAddr := flag.String("metrics", "", "Prometheus 指标地址，为空时不启用")
	legacy := flag.Bool("legacy", false, "以 MAPPED-ADDRESS 回复")
	logLevel := flag.String("log-level", "", "日志级别，例如 info 或 rendezvous=debug,info")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Rendezvous.ListenAddr = *listen
	}
	if *metricsAddr != "" {
		cfg.Rendezvous.MetricsAddr = *metricsAddr
	}
	if *legacy {
		cfg.Rendezvous.LegacyMappedAddress = true
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置无效: %w", err)
	}
	logger.ApplyLevelSpec(cfg.Log.Level)

	fmt.Println("╔══════════════════════════════════════════════════════╗")
	fmt.Println("║            NATProbe Rendezvous Server                ║")
	fmt.Println("╚══════════════════════════════════════════════════════╝")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 捕获中断信号
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signalCh
		fmt.Printf("\n收到信号 %v，正在关闭...\n", sig)
		cancel()
	}()

	app, err := natprobe.New(natprobe.WithConfig(cfg), natprobe.WithRendezvousServer(true))
	if err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("启动 rendezvous 服务器失败: %w", err)
	}
	defer func() {
		stopCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = app.Stop(stopCtx)
	}()

	printServerInfo(app, cfg)

	// 等待关闭
	<-ctx.Done()

	fmt.Println("\n正在关闭 rendezvous 服务器...")
	fmt.Println("再见! 👋")
	return nil
}

// loadConfig 加载配置文件并应用环境变量
func loadConfig(path string) (*config.Config, error) {
	cfg := config.NewConfig()
	if path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
		cfg = loaded
	}
	for _, name := range config.ApplyEnv(cfg) {
		fmt.Printf("⚠️  忽略无法解析的环境变量 %s\n", name)
	}
	return cfg, nil
}

// printServerInfo 打印服务器信息
func printServerInfo(app *natprobe.App, cfg *config.Config) {
	mode := "XOR-MAPPED-ADDRESS"
	if cfg.Rendezvous.LegacyMappedAddress {
		mode = "MAPPED-ADDRESS"
	}

	fmt.Println("╔══════════════════════════════════════════════════════╗")
	fmt.Println("║                    服务器信息                         ║")
	fmt.Println("╠══════════════════════════════════════════════════════╣")
	fmt.Printf("║ 监听地址: %s\n", app.ServerAddr())
	fmt.Printf("║ 回复属性: %s\n", mode)
	if addr := app.MetricsAddr(); addr != "" {
		fmt.Printf("║ 指标地址: http://%s/metrics\n", addr)
	}
	fmt.Println("╚══════════════════════════════════════════════════════╝")
	fmt.Println()

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("rendezvous 服务器已启动，等待探测请求...")
	fmt.Println("按 Ctrl+C 停止服务器")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}

// Package main 提供 natprobe 命令行入口
//
// 绑定本地 UDP 端口，向 rendezvous 服务器探测该端口的公网映射地址。
//
// 使用方法:
//
//	natprobe -host rendezvous.example.com -port 3478 -local-port 40000
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/dep2p/go-natprobe"
	"github.com/dep2p/go-natprobe/internal/core/probe"
	"github.com/dep2p/go-natprobe/internal/util/logger"
)

var log = logger.Logger("natprobe/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
var (
	// ─────────────────────────────────────────────────────────────────────
	// 探测目标
	// ─────────────────────────────────────────────────────────────────────
	host       = flag.String("host", "", "rendezvous 服务器地址")
	port       = flag.Int("port", 0, "rendezvous 服务器端口（默认 3478）")
	localPort  = flag.Int("local-port", -1, "本地 UDP 端口（0 = 随机端口）")
	configFile = flag.String("config", "", "配置文件路径")

	// ─────────────────────────────────────────────────────────────────────
	// 位置负载
	// ─────────────────────────────────────────────────────────────────────
	callerID  = flag.Int64("caller", 0, "调用方 ID")
	latitude  = flag.Float64("lat", 0, "纬度")
	longitude = flag.Float64("lon", 0, "经度")

	// ─────────────────────────────────────────────────────────────────────
	// 日志与信息
	// ─────────────────────────────────────────────────────────────────────
	logLevel    = flag.String("log-level", "", "日志级别，例如 warn 或 probe=debug,info")
	showVersion = flag.Bool("version", false, "显示版本信息")
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	errColor  = color.New(color.FgRed, color.Bold)
	infoColor = color.New(color.FgHiBlue)
)

func main() {
	if err := run(); err != nil {
		errColor.Printf("❌ 错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Printf("natprobe %s (%s)\n", probe.Version, probe.Description)
		return nil
	}

	cfg, ignored, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	for _, name := range ignored {
		fmt.Printf("⚠️  忽略无法解析的环境变量 %s\n", name)
	}

	// 命令行参数覆盖
	if *host != "" {
		cfg.Probe.Host = *host
	}
	if *port > 0 {
		cfg.Probe.Port = *port
	}
	if *localPort >= 0 {
		cfg.Probe.LocalPort = *localPort
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if cfg.Probe.Host == "" {
		return fmt.Errorf("未指定 rendezvous 服务器，请使用 -host 或 NATPROBE_HOST")
	}

	closeLog, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	app, err := natprobe.New(natprobe.WithConfig(cfg))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() {
		stopCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = app.Stop(stopCtx)
	}()

	conn, err := net.ListenPacket("udp", ":"+strconv.Itoa(cfg.Probe.LocalPort))
	if err != nil {
		return fmt.Errorf("绑定本地端口失败: %w", err)
	}
	defer conn.Close()

	target := net.JoinHostPort(cfg.Probe.Host, strconv.Itoa(cfg.Probe.Port))
	infoColor.Printf("🔍 探测 %s（本地 %s）\n", target, conn.LocalAddr())

	type result struct {
		endpoint natprobe.MappedEndpoint
		err      error
	}
	results := make(chan result, 1)
	listener := natprobe.ListenerFuncs{
		EstablishedFunc: func(addr string, p, lp int) {
			results <- result{endpoint: natprobe.MappedEndpoint{IP: net.ParseIP(addr), Port: p, LocalPort: lp}}
		},
		ErrorFunc: func(err error) { results <- result{err: err} },
	}

	payload := natprobe.LocationPayload{
		CallerID:  *callerID,
		Latitude:  *latitude,
		Longitude: *longitude,
		LocatedAt: time.Now(),
	}
	handle := app.Prober().StartProbe(conn, cfg.Probe.Host, cfg.Probe.Port, payload, listener)
	log.Debug("探测已启动", "id", handle.ID())

	// 捕获中断信号
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	for {
		select {
		case sig := <-signalCh:
			fmt.Printf("\n收到信号 %v，取消探测...\n", sig)
			handle.Cancel()
			signalCh = nil
		case r := <-results:
			if r.err != nil {
				return fmt.Errorf("探测失败: %w", r.err)
			}
			printResult(&r.endpoint)
			return nil
		}
	}
}

// printResult 打印探测结果
func printResult(ep *natprobe.MappedEndpoint) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════════════╗")
	fmt.Println("║                    探测结果                           ║")
	fmt.Println("╠══════════════════════════════════════════════════════╣")
	okColor.Printf("║ 公网地址: %s\n", ep.String())
	fmt.Printf("║ 本地端口: %d\n", ep.LocalPort)
	if ep.Port == ep.LocalPort {
		fmt.Println("║ 端口映射: 保持不变")
	} else {
		fmt.Println("║ 端口映射: 已改写")
	}
	fmt.Println("╚══════════════════════════════════════════════════════╝")
}

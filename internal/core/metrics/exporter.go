package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-natprobe/internal/util/logger"
)

var log = logger.Logger("metrics")

// Exporter 通过 HTTP 暴露 /metrics
type Exporter struct {
	addr     string
	gatherer prometheus.Gatherer

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

// NewExporter 创建导出器，addr 为空时 Start 不做任何事
func NewExporter(addr string, gatherer prometheus.Gatherer) *Exporter {
	return &Exporter{addr: addr, gatherer: gatherer}
}

// Start 监听并在后台提供服务
func (e *Exporter) Start(ctx context.Context) error {
	if e.addr == "" {
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", e.addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", e.addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	e.mu.Lock()
	e.srv, e.ln = srv, ln
	e.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("指标服务退出", "err", err)
		}
	}()
	log.Info("指标导出已启动", "addr", ln.Addr().String())
	return nil
}

// Addr 返回实际监听地址，未启动时为空
func (e *Exporter) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ln == nil {
		return ""
	}
	return e.ln.Addr().String()
}

// Close 停止服务
func (e *Exporter) Close(ctx context.Context) error {
	e.mu.Lock()
	srv := e.srv
	e.srv, e.ln = nil, nil
	e.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

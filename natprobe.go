// Package natprobe 提供 rendezvous 地址探测客户端
//
// 客户端通过已绑定的 UDP 套接字向 rendezvous 服务器发送地址发现请求，
// 服务器回写它观察到的源地址，即 NAT 之后的公网映射地址。
// 失败时按加倍超时重试，超时超过上限后放弃；结果通过 Listener 异步回调，
// 每个探测序列恰好回调一次。
//
// 快速开始：
//
//	conn, _ := net.ListenPacket("udp4", ":0")
//	natprobe.StartProbe(conn, "rendezvous.example.com", 3478,
//	    natprobe.LocationPayload{CallerID: 1},
//	    natprobe.ListenerFuncs{
//	        EstablishedFunc: func(addr string, port, localPort int) { ... },
//	        ErrorFunc:       func(err error) { ... },
//	    })
//
// 需要服务端或自定义配置时使用 New 组装完整应用。
package natprobe

import (
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/dep2p/go-natprobe/internal/core/probe"
	"github.com/dep2p/go-natprobe/pkg/interfaces"
	"github.com/dep2p/go-natprobe/pkg/types"
)

// ============================================================================
//                              类型别名
// ============================================================================

type (
	// Listener 探测结果监听器
	Listener = interfaces.Listener

	// ListenerFuncs 以函数对实现 Listener
	ListenerFuncs = interfaces.ListenerFuncs

	// ProbeHandle 探测序列句柄
	ProbeHandle = interfaces.ProbeHandle

	// Prober 地址探测器
	Prober = interfaces.Prober

	// LocationPayload 位置负载
	LocationPayload = types.LocationPayload

	// MappedEndpoint 映射地址
	MappedEndpoint = types.MappedEndpoint

	// ProbeState 序列状态
	ProbeState = types.ProbeState
)

// 探测失败原因，可与 errors.Is 配合使用
var (
	ErrGaveUp           = probe.ErrGaveUp
	ErrCancelled        = probe.ErrCancelled
	ErrPoolClosed       = probe.ErrPoolClosed
	ErrUnresolvableHost = probe.ErrUnresolvableHost
	ErrHostUnreachable  = probe.ErrHostUnreachable
	ErrAttemptTimedOut  = probe.ErrAttemptTimedOut
	ErrDecodeError      = probe.ErrDecodeError
	ErrInvalidParams    = probe.ErrInvalidParams
)

// ============================================================================
//                              默认探测器
// ============================================================================

var (
	defaultMu     sync.Mutex
	defaultProber *probe.Prober
)

// newDefaultProber 创建默认探测器（测试中可替换）
var newDefaultProber = func() (*probe.Prober, error) {
	return probe.NewProber(probe.DefaultConfig(), probe.NewMetrics(nil))
}

// getDefaultProber 返回进程级默认探测器，关闭后重建
func getDefaultProber() (*probe.Prober, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultProber != nil {
		return defaultProber, nil
	}
	p, err := newDefaultProber()
	if err != nil {
		return nil, err
	}
	defaultProber = p
	return p, nil
}

// StartProbe 使用默认探测器启动一次探测并立即返回
//
// conn 由调用方持有，探测结束后不会被关闭。
func StartProbe(conn net.PacketConn, host string, port int, payload LocationPayload, listener Listener) ProbeHandle {
	p, err := getDefaultProber()
	if err != nil {
		return newFailedHandle(err, listener)
	}
	return p.StartProbe(conn, host, port, payload, listener)
}

// failedHandle 未能启动的探测序列，错误异步投递给监听器
type failedHandle struct {
	id   string
	done chan struct{}
}

var _ ProbeHandle = (*failedHandle)(nil)

func newFailedHandle(err error, listener Listener) *failedHandle {
	h := &failedHandle{id: uuid.NewString(), done: make(chan struct{})}
	go func() {
		defer close(h.done)
		if listener != nil {
			listener.OnError(err)
		}
	}()
	return h
}

func (h *failedHandle) ID() string            { return h.id }
func (h *failedHandle) State() ProbeState     { return types.ProbeStateGivingUp }
func (h *failedHandle) Cancel()               {}
func (h *failedHandle) Done() <-chan struct{} { return h.done }

// Shutdown 关闭默认探测器
//
// 尚未结束的序列以 ErrPoolClosed 回调。之后再调用 StartProbe 会创建新的探测器。
func Shutdown() error {
	defaultMu.Lock()
	p := defaultProber
	defaultProber = nil
	defaultMu.Unlock()
	if p == nil {
		return nil
	}
	return p.Close()
}

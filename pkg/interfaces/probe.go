// Package interfaces 定义 natprobe 公共接口
//
// 本文件定义地址探测的监听器与探测器接口。
package interfaces

import (
	"net"

	"github.com/dep2p/go-natprobe/pkg/types"
)

// Listener 探测结果监听器
//
// 每个探测序列恰好回调一次：Established 与 OnError 互斥。
// 回调在工作协程中执行，不在 StartProbe 的调用栈上。
type Listener interface {
	// Established 获取到映射地址
	//
	// 参数：
	//   - publicAddress: rendezvous 服务器观察到的公网 IP
	//   - publicPort: 服务器观察到的端口
	//   - localPort: 探测套接字本地绑定端口
	Established(publicAddress string, publicPort, localPort int)

	// OnError 探测序列失败（放弃、取消或探测器已关闭）
	OnError(err error)
}

// ListenerFuncs 以函数对实现 Listener，未设置的回调被忽略
type ListenerFuncs struct {
	EstablishedFunc func(publicAddress string, publicPort, localPort int)
	ErrorFunc       func(err error)
}

// Established 实现 Listener
func (f ListenerFuncs) Established(publicAddress string, publicPort, localPort int) {
	if f.EstablishedFunc != nil {
		f.EstablishedFunc(publicAddress, publicPort, localPort)
	}
}

// OnError 实现 Listener
func (f ListenerFuncs) OnError(err error) {
	if f.ErrorFunc != nil {
		f.ErrorFunc(err)
	}
}

var _ Listener = ListenerFuncs{}

// ProbeHandle 正在运行的探测序列句柄
type ProbeHandle interface {
	// ID 序列标识
	ID() string

	// State 当前状态
	State() types.ProbeState

	// Cancel 协作式取消
	//
	// 在调度下一次尝试之前检查取消标志；正在进行的尝试不会被打断。
	// 套接字不会被关闭。
	Cancel()

	// Done 监听器回调返回后关闭
	Done() <-chan struct{}
}

// Prober 地址探测器
type Prober interface {
	// StartProbe 异步启动探测序列并立即返回
	//
	// conn 由调用方持有，探测器只修改其读超时，从不关闭它。
	// listener 可以为 nil，此时结果只记录日志。
	// 参数错误或探测器已关闭同样通过 listener.OnError 异步报告。
	StartProbe(conn net.PacketConn, host string, port int, payload types.LocationPayload, listener Listener) ProbeHandle

	// Close 停止接收新序列并等待工作协程退出
	Close() error
}

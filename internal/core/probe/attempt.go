package probe

import (
	"errors"
	"net"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/pion/stun"

	"github.com/dep2p/go-natprobe/internal/core/protocol"
	"github.com/dep2p/go-natprobe/pkg/types"
)

// ============================================================================
//                              尝试结果
// ============================================================================

// Outcome 单次尝试的结果，Endpoint 与 Err 恰有一个非空
type Outcome struct {
	Endpoint *types.MappedEndpoint
	Err      error
}

// Succeeded 是否成功
func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Endpoint != nil
}

// Kind 返回失败类别，成功时为 KindNone
func (o Outcome) Kind() ErrorKind {
	if o.Err == nil {
		return KindNone
	}
	if k := KindOf(o.Err); k != KindNone {
		return k
	}
	return KindTransportError
}

// ============================================================================
//                              单次尝试
// ============================================================================

// Attempt 在调用方持有的套接字上执行一次发送并等待匹配应答
//
// 读超时是本次尝试的绝对截止时间，丢弃不匹配的数据报不会重置它。
// 套接字从不被关闭。
type Attempt struct {
	conn    net.PacketConn
	params  Params
	bufSize int
	agent   *protocol.Agent

	resolve    func(address string) (net.Addr, error)
	newFactory func(transactionID [stun.TransactionIDSize]byte) protocol.AttributeFactory
}

// NewAttempt 创建尝试
func NewAttempt(conn net.PacketConn, params Params, bufSize int) *Attempt {
	if bufSize <= 0 {
		bufSize = DefaultReceiveBufferSize
	}
	return &Attempt{
		conn:       conn,
		params:     params,
		bufSize:    bufSize,
		agent:      protocol.NewAgent(),
		resolve:    resolveUDP,
		newFactory: protocol.NewAttributeFactory,
	}
}

func resolveUDP(address string) (net.Addr, error) {
	return net.ResolveUDPAddr("udp", address)
}

// Run 执行尝试，所有错误都转换为 Outcome
func (a *Attempt) Run() Outcome {
	timeout := a.params.Timeout

	req, err := protocol.NewRequest(a.params.Location.Marshal())
	if err != nil {
		return a.fail(KindTransportError, "build request", err)
	}

	dst, err := a.resolve(a.params.Address())
	if err != nil {
		return a.fail(KindUnresolvableHost, "resolve", err)
	}

	log.Debug("发送探测请求",
		"server", dst.String(),
		"local", a.conn.LocalAddr().String(),
		"timeout", timeout)

	if _, err := a.conn.WriteTo(req.Bytes(), dst); err != nil {
		return a.fail(classify(err), "send", err)
	}

	// 接收窗口从发送之后开始计算，不包含解析耗时
	if err := a.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return a.fail(KindSocketFault, "set deadline", err)
	}

	buf := make([]byte, a.bufSize)
	for {
		n, from, err := a.conn.ReadFrom(buf)
		if err != nil {
			return a.fail(classify(err), "receive", err)
		}

		if !req.Matches(buf[:n]) {
			log.Debug("丢弃事务不匹配的数据报", "from", addrString(from), "bytes", n)
			continue
		}

		// 只取本次收到的字节
		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		log.Debug("收到应答", "from", addrString(from), "bytes", n)

		h := &responseHandler{
			localPort:  localPort(a.conn),
			newFactory: a.newFactory,
		}
		if err := a.agent.OnMessage(datagram, h); err != nil {
			return a.fail(KindDecodeError, "dispatch", err)
		}
		if !h.done {
			continue
		}
		if h.err != nil {
			return a.fail(KindDecodeError, "decode", h.err)
		}
		return Outcome{Endpoint: h.endpoint}
	}
}

func (a *Attempt) fail(kind ErrorKind, op string, cause error) Outcome {
	return Outcome{Err: &AttemptError{
		Kind:    kind,
		Op:      op,
		Timeout: a.params.Timeout,
		Cause:   cause,
	}}
}

// responseHandler 处理事务匹配的数据报
type responseHandler struct {
	localPort  int
	newFactory func(transactionID [stun.TransactionIDSize]byte) protocol.AttributeFactory

	done     bool
	endpoint *types.MappedEndpoint
	err      error
}

func (h *responseHandler) OnRequest(m *stun.Message) {
	log.Debug("忽略请求消息", "type", m.Type.String())
}

func (h *responseHandler) OnIndication(m *stun.Message) {
	log.Debug("忽略指示消息", "type", m.Type.String())
}

func (h *responseHandler) OnResponse(m *stun.Message, attributes []byte) {
	h.done = true
	ep, err := DecodeAttribute(attributes, h.newFactory(m.TransactionID))
	if err != nil {
		h.err = err
		return
	}
	ep.LocalPort = h.localPort
	h.endpoint = ep
}

// ============================================================================
//                              错误分类
// ============================================================================

// classify 将网络错误归类
func classify(err error) ErrorKind {
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr):
		return KindUnresolvableHost
	case errors.Is(err, os.ErrDeadlineExceeded):
		return KindAttemptTimedOut
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH):
		return KindHostUnreachable
	case errors.Is(err, net.ErrClosed):
		return KindSocketFault
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindAttemptTimedOut
	}
	return KindTransportError
}

// localPort 返回套接字本地端口
func localPort(conn net.PacketConn) int {
	addr := conn.LocalAddr()
	if ua, ok := addr.(*net.UDPAddr); ok {
		return ua.Port
	}
	if addr == nil {
		return 0
	}
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(port)
	return n
}

func addrString(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	return addr.String()
}

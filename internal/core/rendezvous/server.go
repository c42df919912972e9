// Package rendezvous 实现地址探测的服务端：把请求方的源地址回写给它
//
// 服务端收到地址发现请求后：
//  1. 解析位置负载并记录日志
//  2. 构造成功响应，属性区只含一个（XOR-）MAPPED-ADDRESS
//  3. 按原事务 ID 回复到请求的源地址
package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/dep2p/go-natprobe/internal/core/protocol"
	"github.com/dep2p/go-natprobe/internal/util/logger"
	"github.com/dep2p/go-natprobe/pkg/types"
)

// 包级别日志实例
var log = logger.Logger("rendezvous")

// ErrServerClosed 服务端已关闭
var ErrServerClosed = errors.New("rendezvous: server closed")

// Config 服务端配置
type Config struct {
	// ListenAddr UDP 监听地址
	ListenAddr string

	// LegacyMappedAddress 以 MAPPED-ADDRESS 回复
	LegacyMappedAddress bool

	// ReadBufferSize 接收缓冲区大小
	ReadBufferSize int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		ListenAddr:     ":3478",
		ReadBufferSize: 1500,
	}
}

// Server 反射服务端
type Server struct {
	cfg     Config
	metrics *Metrics

	mu     sync.Mutex
	conn   net.PacketConn
	closed bool
	wg     sync.WaitGroup

	// onLocation 收到位置负载时调用（用于测试）
	onLocation func(from net.Addr, loc types.LocationPayload)
}

// NewServer 创建服务端，metrics 可以为 nil
func NewServer(cfg Config, metrics *Metrics) *Server {
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultConfig().ReadBufferSize
	}
	return &Server{cfg: cfg, metrics: metrics}
}

// Start 监听并在后台处理请求
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return ErrServerClosed
	}
	s.conn = conn
	s.wg.Add(1)
	s.mu.Unlock()

	log.Info("rendezvous 服务端启动", "addr", conn.LocalAddr().String(), "legacy", s.cfg.LegacyMappedAddress)
	go func() {
		defer s.wg.Done()
		if err := s.serve(conn); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Warn("rendezvous 服务端退出", "err", err)
		}
	}()
	return nil
}

// Addr 返回实际监听地址，未启动时为 nil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Close 停止服务
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	s.wg.Wait()
	log.Info("rendezvous 服务端停止")
	return err
}

func (s *Server) serve(conn net.PacketConn) error {
	buf := make([]byte, s.cfg.ReadBufferSize)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			return err
		}
		s.handle(conn, buf[:n], from)
	}
}

// handle 处理单个数据报，错误只记录不返回
func (s *Server) handle(conn net.PacketConn, datagram []byte, from net.Addr) {
	udpAddr, ok := from.(*net.UDPAddr)
	if !ok {
		s.metrics.request(resultMalformed)
		return
	}

	req, err := protocol.ParseRequest(datagram)
	if err != nil {
		log.Debug("忽略无效请求", "from", from.String(), "err", err)
		s.metrics.request(resultMalformed)
		return
	}

	if raw, err := protocol.Location(req); err == nil {
		loc, err := types.UnmarshalLocationPayload(raw)
		if err != nil {
			log.Debug("位置负载无法解析", "from", from.String(), "err", err)
			s.metrics.request(resultBadPayload)
		} else {
			log.Info("收到探测请求", "from", from.String(), "location", loc.String())
			if s.onLocation != nil {
				s.onLocation(from, loc)
			}
		}
	}

	resp, err := protocol.NewResponse(req, udpAddr, s.cfg.LegacyMappedAddress)
	if err != nil {
		log.Warn("构造响应失败", "err", err)
		s.metrics.request(resultWriteError)
		return
	}
	if _, err := conn.WriteTo(resp.Raw, from); err != nil {
		log.Debug("回复失败", "to", from.String(), "err", err)
		s.metrics.request(resultWriteError)
		return
	}
	s.metrics.request(resultReflected)
}

package types

import (
	"net"
	"strconv"
)

// MappedEndpoint rendezvous 服务器观察到的公网地址
type MappedEndpoint struct {
	// IP 映射地址（4 或 16 字节）
	IP net.IP

	// Port 服务器看到的端口
	Port int

	// LocalPort 探测套接字自身绑定的本地端口
	LocalPort int
}

// Address 返回 IP 的文本形式
func (e *MappedEndpoint) Address() string {
	if e == nil || e.IP == nil {
		return ""
	}
	return e.IP.String()
}

// UDPAddr 转换为 net.UDPAddr
func (e *MappedEndpoint) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: e.IP, Port: e.Port}
}

// String 返回 host:port 形式，IPv6 带方括号
func (e *MappedEndpoint) String() string {
	if e == nil {
		return "<nil>"
	}
	return net.JoinHostPort(e.Address(), strconv.Itoa(e.Port))
}

package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"net"

	"github.com/pion/stun"
)

// ============================================================================
//                              常量定义
// ============================================================================

const (
	// MethodAddressDiscovery 地址发现方法
	MethodAddressDiscovery stun.Method = 0x0080

	// AttrLocation 位置负载属性（comprehension-optional 区间）
	AttrLocation stun.AttrType = 0x8050

	// HeaderSize 报文头长度
	HeaderSize = 20

	transactionIDOffset = 8
)

// ============================================================================
//                              请求
// ============================================================================

// Request 已编码的探测请求
type Request struct {
	msg *stun.Message
}

// NewRequest 构造携带位置负载的请求，生成新的事务 ID
func NewRequest(payload []byte) (*Request, error) {
	msg, err := stun.Build(
		stun.TransactionID,
		stun.NewType(MethodAddressDiscovery, stun.ClassRequest),
		locationSetter(payload),
	)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return &Request{msg: msg}, nil
}

// Bytes 返回编码后的报文
func (r *Request) Bytes() []byte {
	return r.msg.Raw
}

// TransactionID 返回事务 ID
func (r *Request) TransactionID() [stun.TransactionIDSize]byte {
	return r.msg.TransactionID
}

// Matches 判断数据报是否为本请求的应答
//
// 非协议报文或事务 ID 不同均返回 false。
func (r *Request) Matches(datagram []byte) bool {
	if !stun.IsMessage(datagram) {
		return false
	}
	id := datagram[transactionIDOffset:HeaderSize]
	return bytes.Equal(id, r.msg.TransactionID[:])
}

// locationSetter 以原始字节写入位置属性
type locationSetter []byte

func (s locationSetter) AddTo(m *stun.Message) error {
	m.Add(AttrLocation, s)
	return nil
}

// ============================================================================
//                              服务端
// ============================================================================

// ParseRequest 解析地址发现请求
func ParseRequest(raw []byte) (*stun.Message, error) {
	m := new(stun.Message)
	m.Raw = append(m.Raw[:0], raw...)
	if err := m.Decode(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if m.Type.Class != stun.ClassRequest || m.Type.Method != MethodAddressDiscovery {
		return nil, fmt.Errorf("%w: unexpected type %s", ErrMalformedMessage, m.Type)
	}
	return m, nil
}

// Location 读取请求中的位置负载
func Location(m *stun.Message) ([]byte, error) {
	v, err := m.Get(AttrLocation)
	if errors.Is(err, stun.ErrAttributeNotFound) {
		return nil, ErrMissingLocation
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// NewResponse 构造成功响应，属性区只含一个地址属性
//
// legacy 为 true 时写 MAPPED-ADDRESS，否则写 XOR-MAPPED-ADDRESS。
func NewResponse(req *stun.Message, observed *net.UDPAddr, legacy bool) (*stun.Message, error) {
	var addr stun.Setter = &stun.XORMappedAddress{IP: observed.IP, Port: observed.Port}
	if legacy {
		addr = &stun.MappedAddress{IP: observed.IP, Port: observed.Port}
	}
	return stun.Build(
		stun.NewTransactionIDSetter(req.TransactionID),
		stun.NewType(req.Type.Method, stun.ClassSuccessResponse),
		addr,
	)
}

package protocol

import (
	"fmt"

	"github.com/pion/stun"
)

// AddressAttribute 工厂产出的地址属性
type AddressAttribute struct {
	// Address 原始地址字节（IPv4 为 4 字节，IPv6 为 16 字节）
	Address []byte

	// Port 端口
	Port int
}

// AttributeFactory 由原始 TLV 构造地址属性
//
// value 已按 4 字节填充，length 为声明长度。
type AttributeFactory interface {
	CreateAttribute(attrType, length uint16, value []byte) (AddressAttribute, error)
}

// AttributeFactoryFunc 函数适配器
type AttributeFactoryFunc func(attrType, length uint16, value []byte) (AddressAttribute, error)

// CreateAttribute 实现 AttributeFactory
func (f AttributeFactoryFunc) CreateAttribute(attrType, length uint16, value []byte) (AddressAttribute, error) {
	return f(attrType, length, value)
}

// rfc5389Factory 支持 MAPPED-ADDRESS 与 XOR-MAPPED-ADDRESS
//
// XOR 还原需要响应的事务 ID。
type rfc5389Factory struct {
	transactionID [stun.TransactionIDSize]byte
}

// NewAttributeFactory 创建 RFC 5389 地址属性工厂
func NewAttributeFactory(transactionID [stun.TransactionIDSize]byte) AttributeFactory {
	return &rfc5389Factory{transactionID: transactionID}
}

func (f *rfc5389Factory) CreateAttribute(attrType, length uint16, value []byte) (AddressAttribute, error) {
	if int(length) > len(value) {
		return AddressAttribute{}, fmt.Errorf("%w: length %d exceeds value %d", ErrInvalidAttribute, length, len(value))
	}

	// 借助临时消息复用 pion/stun 的地址解析
	m := new(stun.Message)
	m.TransactionID = f.transactionID
	m.Add(stun.AttrType(attrType), value[:length])

	switch stun.AttrType(attrType) {
	case stun.AttrXORMappedAddress:
		var a stun.XORMappedAddress
		if err := a.GetFrom(m); err != nil {
			return AddressAttribute{}, fmt.Errorf("%w: %v", ErrInvalidAttribute, err)
		}
		return AddressAttribute{Address: a.IP, Port: a.Port}, nil
	case stun.AttrMappedAddress:
		var a stun.MappedAddress
		if err := a.GetFrom(m); err != nil {
			return AddressAttribute{}, fmt.Errorf("%w: %v", ErrInvalidAttribute, err)
		}
		return AddressAttribute{Address: a.IP, Port: a.Port}, nil
	default:
		return AddressAttribute{}, fmt.Errorf("%w: 0x%04x", ErrUnsupportedAttribute, attrType)
	}
}

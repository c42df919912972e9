package probe

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"

	"github.com/dep2p/go-natprobe/internal/core/protocol"
	"github.com/dep2p/go-natprobe/pkg/types"
)

// ============================================================================
//                              TLV 解码
// ============================================================================

// attributeHeaderSize 属性头：type(2) + length(2)
const attributeHeaderSize = 4

// RawAttribute 单个属性的原始视图，只在一次解码期间存在
type RawAttribute struct {
	Type   uint16
	Length uint16
	// Value 按 4 字节填充，填充部分为零
	Value []byte
}

// PaddedLength 向上取整到 4 的倍数
func PaddedLength(n int) int {
	return (n + 3) &^ 3
}

// ParseRawAttribute 读取属性区的第一个属性
//
// 值被复制到新分配的零值缓冲区，源数据中位于填充位置的字节不会被带入。
// 声明长度为 0 时 Value 为空切片而非 nil。
func ParseRawAttribute(payload []byte) (RawAttribute, error) {
	if len(payload) < attributeHeaderSize {
		return RawAttribute{}, fmt.Errorf("%w: attribute header needs %d bytes, got %d",
			ErrDecodeError, attributeHeaderSize, len(payload))
	}

	attr := RawAttribute{
		Type:   binary.BigEndian.Uint16(payload[0:2]),
		Length: binary.BigEndian.Uint16(payload[2:4]),
	}

	declared := int(attr.Length)
	if declared == 0 {
		attr.Value = []byte{}
		return attr, nil
	}

	src := payload[attributeHeaderSize:]
	if len(src) < declared {
		return RawAttribute{}, fmt.Errorf("%w: declared length %d exceeds %d available bytes",
			ErrDecodeError, declared, len(src))
	}

	attr.Value = make([]byte, PaddedLength(declared))
	copy(attr.Value, src[:declared])
	return attr, nil
}

// DecodeAttribute 将属性区解码为映射地址
//
// 地址族与 XOR 还原由 factory 负责，这里只校验地址字节长度。
func DecodeAttribute(payload []byte, factory protocol.AttributeFactory) (*types.MappedEndpoint, error) {
	attr, err := ParseRawAttribute(payload)
	if err != nil {
		return nil, err
	}

	addr, err := factory.CreateAttribute(attr.Type, attr.Length, attr.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeError, err)
	}

	ip, ok := netip.AddrFromSlice(addr.Address)
	if !ok {
		return nil, fmt.Errorf("%w: invalid address length %d", ErrDecodeError, len(addr.Address))
	}
	if addr.Port < 0 || addr.Port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrDecodeError, addr.Port)
	}

	return &types.MappedEndpoint{
		IP:   net.IP(ip.Unmap().AsSlice()),
		Port: addr.Port,
	}, nil
}

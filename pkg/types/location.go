package types

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// LocationPayload 随探测请求发送的位置信息
//
// 探测核心把它当作不透明字节处理；编码采用 protobuf 线格式，
// 字段编号与 rendezvous 服务端约定：
//
//	1: caller_id   (varint, int64)
//	2: latitude    (fixed64, double)
//	3: longitude   (fixed64, double)
//	4: locate_time (varint, unix 毫秒)
type LocationPayload struct {
	CallerID  int64
	Latitude  float64
	Longitude float64
	LocatedAt time.Time
}

const (
	fieldCallerID  protowire.Number = 1
	fieldLatitude  protowire.Number = 2
	fieldLongitude protowire.Number = 3
	fieldLocatedAt protowire.Number = 4
)

// ErrInvalidPayload 负载无法解析
var ErrInvalidPayload = errors.New("types: invalid location payload")

// Marshal 编码为字节
func (p LocationPayload) Marshal() []byte {
	b := make([]byte, 0, 32)
	b = protowire.AppendTag(b, fieldCallerID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.CallerID))
	b = protowire.AppendTag(b, fieldLatitude, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(p.Latitude))
	b = protowire.AppendTag(b, fieldLongitude, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(p.Longitude))
	if !p.LocatedAt.IsZero() {
		b = protowire.AppendTag(b, fieldLocatedAt, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(p.LocatedAt.UnixMilli()))
	}
	return b
}

// UnmarshalLocationPayload 解码位置负载，未知字段被跳过
func UnmarshalLocationPayload(b []byte) (LocationPayload, error) {
	var p LocationPayload
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return p, fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldCallerID && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return p, fmt.Errorf("%w: caller_id: %v", ErrInvalidPayload, protowire.ParseError(m))
			}
			p.CallerID = int64(v)
			n = m
		case num == fieldLatitude && typ == protowire.Fixed64Type:
			v, m := protowire.ConsumeFixed64(b)
			if m < 0 {
				return p, fmt.Errorf("%w: latitude: %v", ErrInvalidPayload, protowire.ParseError(m))
			}
			p.Latitude = math.Float64frombits(v)
			n = m
		case num == fieldLongitude && typ == protowire.Fixed64Type:
			v, m := protowire.ConsumeFixed64(b)
			if m < 0 {
				return p, fmt.Errorf("%w: longitude: %v", ErrInvalidPayload, protowire.ParseError(m))
			}
			p.Longitude = math.Float64frombits(v)
			n = m
		case num == fieldLocatedAt && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return p, fmt.Errorf("%w: locate_time: %v", ErrInvalidPayload, protowire.ParseError(m))
			}
			p.LocatedAt = time.UnixMilli(int64(v))
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return p, fmt.Errorf("%w: field %d: %v", ErrInvalidPayload, num, protowire.ParseError(n))
			}
		}
		b = b[n:]
	}
	return p, nil
}

// String 返回可读形式
func (p LocationPayload) String() string {
	return fmt.Sprintf("caller=%d lat=%.6f lon=%.6f at=%s",
		p.CallerID, p.Latitude, p.Longitude, p.LocatedAt.Format(time.RFC3339))
}

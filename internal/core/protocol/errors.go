package protocol

import "errors"

// 协议模块错误定义
var (
	// ErrMalformedMessage 报文无法解析
	ErrMalformedMessage = errors.New("protocol: malformed message")

	// ErrUnsupportedAttribute 工厂不支持的属性类型
	ErrUnsupportedAttribute = errors.New("protocol: unsupported address attribute")

	// ErrInvalidAttribute 属性值无法解析
	ErrInvalidAttribute = errors.New("protocol: invalid address attribute")

	// ErrMissingLocation 请求中缺少位置属性
	ErrMissingLocation = errors.New("protocol: missing location attribute")

	// ErrNilHandler 未提供处理器
	ErrNilHandler = errors.New("protocol: nil handler")
)

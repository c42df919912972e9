package probe

import (
	"errors"
	"fmt"
	"time"
)

// 探测模块错误定义
var (
	// ErrUnresolvableHost rendezvous 主机名无法解析
	ErrUnresolvableHost = errors.New("probe: unresolvable host")

	// ErrHostUnreachable 发送或接收时目标不可达
	ErrHostUnreachable = errors.New("probe: host unreachable")

	// ErrAttemptTimedOut 超时内未收到匹配应答
	ErrAttemptTimedOut = errors.New("probe: attempt timed out")

	// ErrSocketFault 套接字无法配置或使用
	ErrSocketFault = errors.New("probe: socket fault")

	// ErrTransportError 其他收发错误
	ErrTransportError = errors.New("probe: transport error")

	// ErrDecodeError 应答已匹配但地址属性无法解码
	ErrDecodeError = errors.New("probe: decode error")

	// ErrGaveUp 超时超过上限后放弃
	ErrGaveUp = errors.New("probe: gave up after exceeding timeout ceiling")

	// ErrCancelled 序列被调用方取消
	ErrCancelled = errors.New("probe: cancelled")

	// ErrPoolClosed 工作池已关闭
	ErrPoolClosed = errors.New("probe: pool closed")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("probe: invalid config")

	// ErrInvalidParams 探测参数无效
	ErrInvalidParams = errors.New("probe: invalid params")
)

// ErrorKind 单次尝试的失败类别
type ErrorKind int

const (
	// KindNone 无错误
	KindNone ErrorKind = iota
	// KindUnresolvableHost 主机无法解析
	KindUnresolvableHost
	// KindHostUnreachable 主机不可达
	KindHostUnreachable
	// KindAttemptTimedOut 尝试超时
	KindAttemptTimedOut
	// KindSocketFault 套接字故障
	KindSocketFault
	// KindTransportError 传输错误
	KindTransportError
	// KindDecodeError 解码错误
	KindDecodeError
)

// String 返回类别名称，用作指标标签
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUnresolvableHost:
		return "unresolvable_host"
	case KindHostUnreachable:
		return "host_unreachable"
	case KindAttemptTimedOut:
		return "timed_out"
	case KindSocketFault:
		return "socket_fault"
	case KindTransportError:
		return "transport_error"
	case KindDecodeError:
		return "decode_error"
	default:
		return "unknown"
	}
}

// Sentinel 返回类别对应的哨兵错误
func (k ErrorKind) Sentinel() error {
	switch k {
	case KindUnresolvableHost:
		return ErrUnresolvableHost
	case KindHostUnreachable:
		return ErrHostUnreachable
	case KindAttemptTimedOut:
		return ErrAttemptTimedOut
	case KindSocketFault:
		return ErrSocketFault
	case KindTransportError:
		return ErrTransportError
	case KindDecodeError:
		return ErrDecodeError
	default:
		return nil
	}
}

// AttemptError 单次尝试失败
type AttemptError struct {
	Kind    ErrorKind
	Op      string
	Timeout time.Duration
	Cause   error
}

// Error 实现 error 接口
func (e *AttemptError) Error() string {
	msg := fmt.Sprintf("probe %s (timeout %s): %s", e.Op, e.Timeout, e.Kind)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap 返回底层错误
func (e *AttemptError) Unwrap() error {
	return e.Cause
}

// Is 与类别哨兵错误匹配
func (e *AttemptError) Is(target error) bool {
	s := e.Kind.Sentinel()
	return s != nil && target == s
}

// KindOf 返回错误的类别，非 AttemptError 返回 KindNone
func KindOf(err error) ErrorKind {
	var ae *AttemptError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindNone
}

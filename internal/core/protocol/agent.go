package protocol

import (
	"fmt"

	"github.com/pion/stun"
)

// Handler 入站消息处理器
type Handler interface {
	// OnRequest 收到请求
	OnRequest(m *stun.Message)

	// OnResponse 收到成功或错误响应
	//
	// attributes 为去掉报文头后的属性区原始字节。
	OnResponse(m *stun.Message, attributes []byte)

	// OnIndication 收到指示
	OnIndication(m *stun.Message)
}

// Agent 按消息类别分发入站数据报
type Agent struct{}

// NewAgent 创建 Agent
func NewAgent() *Agent {
	return &Agent{}
}

// OnMessage 解码数据报并分发给 h
//
// raw 在调用期间被引用，调用方不应同时修改。
func (a *Agent) OnMessage(raw []byte, h Handler) error {
	if h == nil {
		return ErrNilHandler
	}

	m := &stun.Message{Raw: raw}
	if err := m.Decode(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch m.Type.Class {
	case stun.ClassRequest:
		h.OnRequest(m)
	case stun.ClassIndication:
		h.OnIndication(m)
	case stun.ClassSuccessResponse, stun.ClassErrorResponse:
		end := HeaderSize + int(m.Length)
		h.OnResponse(m, raw[HeaderSize:end])
	}
	return nil
}

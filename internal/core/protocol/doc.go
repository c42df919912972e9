// Package protocol 实现地址探测使用的请求/响应消息协议
//
// 消息沿用 STUN 报文格式（20 字节头 + TLV 属性），由 pion/stun 负责
// 编解码与事务 ID 生成。本包只提供探测所需的最小集合：
//
// 1. 请求构造 (NewRequest)
//   - 消息类别 request，方法 MethodAddressDiscovery
//   - 携带一个 AttrLocation 属性（不透明的位置负载）
//   - 每个请求生成新的 96 位事务 ID
//
// 2. 事务匹配 (Request.Matches)
//   - 比较入站数据报中的事务 ID 与请求是否一致
//
// 3. 消息分发 (Agent)
//   - 按消息类别分发到 Handler 的 OnRequest / OnResponse / OnIndication
//   - OnResponse 收到去掉报文头后的属性区原始字节
//
// 4. 地址属性工厂 (AttributeFactory)
//   - 将 MAPPED-ADDRESS / XOR-MAPPED-ADDRESS 的原始值还原为地址字节与端口
//
// 5. 响应构造 (NewResponse)
//   - rendezvous 服务端使用，回写观察到的源地址
//
// # 快速开始
//
//	req, err := protocol.NewRequest(payload)
//	conn.WriteTo(req.Bytes(), server)
//
//	n, _, _ := conn.ReadFrom(buf)
//	if req.Matches(buf[:n]) {
//	    err = protocol.NewAgent().OnMessage(buf[:n], handler)
//	}
package protocol

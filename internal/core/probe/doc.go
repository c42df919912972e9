// Package probe 实现 rendezvous 地址探测的客户端核心
//
// 探测序列由以下部分组成：
//   - Attempt: 一次发送并在超时内等待事务匹配的应答
//   - DecodeAttribute: 将应答属性区的 TLV 解码为映射地址
//   - Sequence: 重试状态机，失败后以加倍超时重新调度，超过上限即放弃
//   - notifier: 每个序列恰好一次地向监听器投递结果
//   - Pool: 共享的延迟任务工作池
//
// 使用示例:
//
//	prober, _ := probe.NewProber(probe.DefaultConfig(), nil)
//	defer prober.Close()
//
//	conn, _ := net.ListenPacket("udp", ":0")
//	prober.StartProbe(conn, "rendezvous.example.com", 3478, payload, interfaces.ListenerFuncs{
//	    EstablishedFunc: func(addr string, port, localPort int) { ... },
//	    ErrorFunc:       func(err error) { ... },
//	})
package probe

import "github.com/dep2p/go-natprobe/internal/util/logger"

// 包级别日志实例
var log = logger.Logger("probe")

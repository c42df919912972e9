// Package types 定义 natprobe 的公共数据类型
//
//   - LocationPayload: 随请求发送的位置负载及其线格式
//   - MappedEndpoint: 服务器观察到的公网映射地址
//   - ProbeState: 探测序列状态
package types

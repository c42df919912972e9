// Package config 提供统一的配置管理
//
// 本包采用与子配置分文件的组织方式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义
//   - 支持从 JSON 加载和保存配置
//   - 支持 NATPROBE_ 前缀的环境变量覆盖
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.Probe.Host = "rendezvous.example.com"
//
//	// 从文件加载并应用环境变量
//	cfg, err := config.LoadFile("natprobe.json")
//	config.ApplyEnv(cfg)
package config

// Config 是 natprobe 的完整配置结构
//
// 配置按照功能组织：
//   - Probe: 客户端探测（rendezvous 地址、超时、重试）
//   - Rendezvous: 反射服务端
//   - Log: 日志
type Config struct {
	// Probe 探测配置
	Probe ProbeConfig `json:"probe"`

	// Rendezvous 服务端配置
	Rendezvous RendezvousConfig `json:"rendezvous"`

	// Log 日志配置
	Log LogConfig `json:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Probe:      DefaultProbeConfig(),
		Rendezvous: DefaultRendezvousConfig(),
		Log:        DefaultLogConfig(),
	}
}

// Validate 验证配置的有效性
//
// 所有子配置的问题会被合并返回，而不是在第一个错误处停止。
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	return validateAll(c.Probe, c.Rendezvous, c.Log)
}

package config

import (
	"errors"
	"net"

	"go.uber.org/multierr"
)

// RendezvousConfig 反射服务端配置
type RendezvousConfig struct {
	// ListenAddr UDP 监听地址
	ListenAddr string `json:"listen_addr"`

	// MetricsAddr Prometheus 指标 HTTP 地址，为空时不启用
	MetricsAddr string `json:"metrics_addr,omitempty"`

	// LegacyMappedAddress 以 MAPPED-ADDRESS 代替 XOR-MAPPED-ADDRESS 回复
	LegacyMappedAddress bool `json:"legacy_mapped_address"`
}

// DefaultRendezvousConfig 返回默认服务端配置
func DefaultRendezvousConfig() RendezvousConfig {
	return RendezvousConfig{
		ListenAddr: ":3478",
	}
}

// Validate 验证服务端配置
func (c RendezvousConfig) Validate() (err error) {
	if c.ListenAddr == "" {
		err = multierr.Append(err, errors.New("rendezvous listen address is empty"))
	} else if _, _, splitErr := net.SplitHostPort(c.ListenAddr); splitErr != nil {
		err = multierr.Append(err, errors.New("rendezvous listen address must be host:port"))
	}
	if c.MetricsAddr != "" {
		if _, _, splitErr := net.SplitHostPort(c.MetricsAddr); splitErr != nil {
			err = multierr.Append(err, errors.New("rendezvous metrics address must be host:port"))
		}
	}
	return err
}

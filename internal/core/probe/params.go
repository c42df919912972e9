package probe

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/dep2p/go-natprobe/pkg/types"
)

// Params 一次探测序列的请求参数
//
// 除 Timeout 外在整个序列中保持不变，重试通过 WithTimeout 派生新值。
type Params struct {
	Host     string
	Port     int
	Location types.LocationPayload
	Timeout  time.Duration
}

// WithTimeout 返回替换了超时的副本
func (p Params) WithTimeout(d time.Duration) Params {
	p.Timeout = d
	return p
}

// Address 返回 host:port
func (p Params) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// Validate 校验参数
func (p Params) Validate() error {
	if p.Host == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidParams)
	}
	if p.Port <= 0 || p.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidParams, p.Port)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidParams)
	}
	return nil
}

package rendezvous

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricNamespace = "natprobe_rendezvous"

// 请求结果标签
const (
	resultReflected  = "reflected"
	resultMalformed  = "malformed"
	resultBadPayload = "bad_payload"
	resultWriteError = "write_error"
)

// Metrics 服务端指标，nil 安全
type Metrics struct {
	requests *prometheus.CounterVec
}

// NewMetrics 创建并注册指标，reg 为 nil 时使用默认注册器
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricNamespace,
		Name:      "requests_total",
		Help:      "按结果统计的探测请求数",
	}, []string{"result"})

	if err := reg.Register(requests); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			panic(err)
		}
		requests = are.ExistingCollector.(*prometheus.CounterVec)
	}

	for _, r := range []string{resultReflected, resultMalformed, resultBadPayload, resultWriteError} {
		requests.WithLabelValues(r)
	}
	return &Metrics{requests: requests}
}

func (m *Metrics) request(result string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(result).Inc()
}

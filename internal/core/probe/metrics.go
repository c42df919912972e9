package probe

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 指标命名空间
const metricNamespace = "natprobe_probe"

// Metrics 探测指标
//
// nil 的 *Metrics 可以安全调用，所有记录均为空操作。
type Metrics struct {
	attempts        *prometheus.CounterVec
	attemptDuration prometheus.Histogram
	sequences       *prometheus.CounterVec
	active          prometheus.Gauge
}

// NewMetrics 创建并注册指标，reg 为 nil 时使用默认注册器
//
// 同一注册器上重复创建时复用已注册的收集器。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "attempts_total",
			Help:      "按结果统计的探测尝试次数",
		}, []string{"outcome"}),
		attemptDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Name:      "attempt_duration_seconds",
			Help:      "单次探测尝试耗时",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 4},
		}),
		sequences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "sequences_total",
			Help:      "按终态统计的探测序列数",
		}, []string{"result"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricNamespace,
			Name:      "sequences_active",
			Help:      "尚未结束的探测序列数",
		}),
	}

	m.attempts = registerCollector(reg, m.attempts)
	m.attemptDuration = registerCollector(reg, m.attemptDuration)
	m.sequences = registerCollector(reg, m.sequences)
	m.active = registerCollector(reg, m.active)

	// 预先创建标签，保证首个数据点可见
	for _, k := range []ErrorKind{KindNone, KindUnresolvableHost, KindHostUnreachable,
		KindAttemptTimedOut, KindSocketFault, KindTransportError, KindDecodeError} {
		m.attempts.WithLabelValues(outcomeLabel(k))
	}
	for _, r := range []string{resultEstablished, resultGaveUp, resultCancelled, resultAborted} {
		m.sequences.WithLabelValues(r)
	}
	return m
}

func registerCollector[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
	}
	log.Warn("注册指标失败", "err", err)
	return c
}

// 序列终态标签
const (
	resultEstablished = "established"
	resultGaveUp      = "gave_up"
	resultCancelled   = "cancelled"
	resultAborted     = "aborted"
)

func outcomeLabel(k ErrorKind) string {
	if k == KindNone {
		return "success"
	}
	return k.String()
}

func (m *Metrics) attemptFinished(kind ErrorKind, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(outcomeLabel(kind)).Inc()
	m.attemptDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) sequenceStarted() {
	if m == nil {
		return
	}
	m.active.Inc()
}

func (m *Metrics) sequenceFinished(result string) {
	if m == nil {
		return
	}
	m.active.Dec()
	m.sequences.WithLabelValues(result).Inc()
}

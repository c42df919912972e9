package probe

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dep2p/go-natprobe/pkg/interfaces"
	"github.com/dep2p/go-natprobe/pkg/types"
)

// ============================================================================
//                              探测器
// ============================================================================

// Prober 管理探测序列，所有序列共享一个工作池
type Prober struct {
	cfg     *Config
	pool    *Pool
	metrics *Metrics

	// attempt 执行单次尝试，测试中可替换
	attempt func(conn net.PacketConn, params Params) Outcome

	mu     sync.Mutex
	closed bool
	active map[string]*Sequence
}

var _ interfaces.Prober = (*Prober)(nil)

// NewProber 创建探测器，metrics 可以为 nil
func NewProber(cfg *Config, metrics *Metrics) (*Prober, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Prober{
		cfg:     cfg,
		pool:    NewPool(cfg.Clock, cfg.MaxWorkers),
		metrics: metrics,
		active:  make(map[string]*Sequence),
	}
	p.attempt = func(conn net.PacketConn, params Params) Outcome {
		return NewAttempt(conn, params, cfg.ReceiveBufferSize).Run()
	}
	return p, nil
}

// StartProbe 实现 interfaces.Prober
func (p *Prober) StartProbe(conn net.PacketConn, host string, port int, payload types.LocationPayload, listener interfaces.Listener) interfaces.ProbeHandle {
	return p.Start(conn, Params{
		Host:     host,
		Port:     port,
		Location: payload,
		Timeout:  p.cfg.InitialTimeout,
	}, listener)
}

// Start 以给定参数启动探测序列并立即返回
//
// params.Timeout 为首次尝试的超时。
func (p *Prober) Start(conn net.PacketConn, params Params, listener interfaces.Listener) *Sequence {
	s := &Sequence{
		id:     uuid.NewString(),
		prober: p,
		conn:   conn,
	}
	s.notifier = newNotifier(s.id, listener, p.pool, p.cfg.ErrorNotifyDelay)
	s.notifier.onDone = func() { p.release(s) }
	p.metrics.sequenceStarted()

	err := params.Validate()
	if err == nil && conn == nil {
		err = fmt.Errorf("%w: nil conn", ErrInvalidParams)
	}
	if err != nil {
		s.finish(types.ProbeStateGivingUp, resultAborted, err)
		return s
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		s.finish(types.ProbeStateGivingUp, resultAborted, ErrPoolClosed)
		return s
	}
	p.active[s.id] = s
	p.mu.Unlock()

	log.Debug("启动探测序列",
		"seq", s.id,
		"server", params.Address(),
		"timeout", params.Timeout,
		"delay", p.cfg.InitialDelay)

	s.setState(types.ProbeStateScheduled)
	if err := p.pool.Schedule(p.cfg.InitialDelay, func() { s.run(params) }); err != nil {
		s.finish(types.ProbeStateGivingUp, resultAborted, err)
	}
	return s
}

// Active 返回尚未投递结果的序列数
func (p *Prober) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// Close 停止接收新序列，取消进行中的序列并等待工作协程退出
//
// 尚未投递结果的序列会收到 OnError。
func (p *Prober) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	pending := make([]*Sequence, 0, len(p.active))
	for _, s := range p.active {
		pending = append(pending, s)
	}
	p.mu.Unlock()

	for _, s := range pending {
		s.cancelled.Store(true)
	}
	err := p.pool.Close()

	for _, s := range pending {
		s.abort()
	}
	return err
}

func (p *Prober) release(s *Sequence) {
	p.mu.Lock()
	delete(p.active, s.id)
	p.mu.Unlock()
}

// ============================================================================
//                              探测序列
// ============================================================================

// Sequence 一次探测序列的重试状态机
//
//	Idle → Scheduled → Running → Succeeded
//	                           → Retrying → Running ...
//	                           → GivingUp
//
// 同一序列的尝试严格串行：下一次尝试只在上一次结果确定后调度。
type Sequence struct {
	id       string
	prober   *Prober
	conn     net.PacketConn
	notifier *notifier

	state     atomic.Int32
	cancelled atomic.Bool

	mu       sync.Mutex
	timeouts []time.Duration
}

var _ interfaces.ProbeHandle = (*Sequence)(nil)

// ID 序列标识
func (s *Sequence) ID() string {
	return s.id
}

// State 当前状态
func (s *Sequence) State() types.ProbeState {
	return types.ProbeState(s.state.Load())
}

// Cancel 协作式取消，在下一次尝试开始前生效
func (s *Sequence) Cancel() {
	if s.cancelled.CompareAndSwap(false, true) {
		log.Debug("取消探测序列", "seq", s.id)
	}
}

// Done 监听器回调返回后关闭
func (s *Sequence) Done() <-chan struct{} {
	return s.notifier.done
}

// Timeouts 返回已执行尝试的超时序列
func (s *Sequence) Timeouts() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.timeouts))
	copy(out, s.timeouts)
	return out
}

func (s *Sequence) setState(st types.ProbeState) {
	s.state.Store(int32(st))
}

// run 执行一次尝试并决定下一步
func (s *Sequence) run(params Params) {
	if s.cancelled.Load() {
		s.finish(types.ProbeStateCancelled, resultCancelled, ErrCancelled)
		return
	}

	s.setState(types.ProbeStateRunning)
	s.mu.Lock()
	s.timeouts = append(s.timeouts, params.Timeout)
	attemptNum := len(s.timeouts)
	s.mu.Unlock()

	start := time.Now()
	out := s.prober.attempt(s.conn, params)
	s.prober.metrics.attemptFinished(out.Kind(), time.Since(start))

	if out.Succeeded() {
		s.setState(types.ProbeStateSucceeded)
		if s.notifier.established(out.Endpoint) {
			s.prober.metrics.sequenceFinished(resultEstablished)
		}
		return
	}

	cfg := s.prober.cfg
	// 比较的是翻倍后的超时：默认值下只执行 500ms、1s、2s 三次
	next := params.Timeout * 2
	if next > cfg.TimeoutCeiling {
		log.Info("超时超过上限，放弃探测",
			"seq", s.id,
			"attempts", attemptNum,
			"lastTimeout", params.Timeout,
			"err", out.Err)
		s.finish(types.ProbeStateGivingUp, resultGaveUp, fmt.Errorf("%w: %w", ErrGaveUp, out.Err))
		return
	}

	if s.cancelled.Load() {
		s.finish(types.ProbeStateCancelled, resultCancelled, ErrCancelled)
		return
	}

	log.Info("探测失败，稍后重试",
		"seq", s.id,
		"attempt", attemptNum,
		"kind", out.Kind().String(),
		"nextTimeout", next,
		"delay", cfg.RetryDelay)

	s.setState(types.ProbeStateRetrying)
	retry := params.WithTimeout(next)
	if err := s.prober.pool.Schedule(cfg.RetryDelay, func() { s.run(retry) }); err != nil {
		s.finish(types.ProbeStateGivingUp, resultAborted, err)
	}
}

// finish 以错误结束序列
func (s *Sequence) finish(st types.ProbeState, result string, err error) {
	s.setState(st)
	if s.notifier.failed(err) {
		s.prober.metrics.sequenceFinished(result)
	}
}

// abort 工作池关闭后收尾：未结束的序列报告错误，已触发但未投递的通知立即投递
func (s *Sequence) abort() {
	if !s.State().IsTerminal() {
		s.finish(types.ProbeStateCancelled, resultAborted, ErrPoolClosed)
	}
	s.notifier.flush()
}

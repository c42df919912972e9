package probe

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-natprobe/pkg/interfaces"
	"github.com/dep2p/go-natprobe/pkg/types"
)

// ============================================================================
//                              测试辅助
// ============================================================================

type establishedCall struct {
	addr      string
	port      int
	localPort int
}

// recordingListener 记录监听器回调
type recordingListener struct {
	mu          sync.Mutex
	established []establishedCall
	errs        []error
	notified    chan struct{}
}

func newRecordingListener() *recordingListener {
	return &recordingListener{notified: make(chan struct{}, 16)}
}

func (l *recordingListener) Established(addr string, port, localPort int) {
	l.mu.Lock()
	l.established = append(l.established, establishedCall{addr, port, localPort})
	l.mu.Unlock()
	l.notified <- struct{}{}
}

func (l *recordingListener) OnError(err error) {
	l.mu.Lock()
	l.errs = append(l.errs, err)
	l.mu.Unlock()
	l.notified <- struct{}{}
}

func (l *recordingListener) counts() (established, errs int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.established), len(l.errs)
}

func (l *recordingListener) total() int {
	e, r := l.counts()
	return e + r
}

func (l *recordingListener) lastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.errs) == 0 {
		return nil
	}
	return l.errs[len(l.errs)-1]
}

// scriptedAttempts 按脚本返回尝试结果并记录超时
type scriptedAttempts struct {
	mu       sync.Mutex
	timeouts []time.Duration
	script   func(n int, p Params) Outcome
}

func (s *scriptedAttempts) run(_ net.PacketConn, p Params) Outcome {
	s.mu.Lock()
	s.timeouts = append(s.timeouts, p.Timeout)
	n := len(s.timeouts)
	s.mu.Unlock()
	return s.script(n, p)
}

func (s *scriptedAttempts) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.timeouts...)
}

func timedOut(p Params) Outcome {
	return Outcome{Err: &AttemptError{Kind: KindAttemptTimedOut, Op: "receive", Timeout: p.Timeout}}
}

func mapped(localPort int) Outcome {
	return Outcome{Endpoint: &types.MappedEndpoint{IP: net.IPv4(203, 0, 113, 5).To4(), Port: 51820, LocalPort: localPort}}
}

func newMockProber(t *testing.T, script func(n int, p Params) Outcome) (*Prober, *clock.Mock, *scriptedAttempts, *Metrics) {
	t.Helper()
	mock := clock.NewMock()
	cfg := DefaultConfig()
	require.NoError(t, cfg.Apply(WithClock(mock)))

	metrics := NewMetrics(prometheus.NewRegistry())
	p, err := NewProber(cfg, metrics)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	attempts := &scriptedAttempts{script: script}
	p.attempt = attempts.run
	return p, mock, attempts, metrics
}

// advanceUntil 推进 mock 时钟直到条件满足
func advanceUntil(t *testing.T, mock *clock.Mock, step time.Duration, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		if cond() {
			return true
		}
		mock.Add(step)
		return cond()
	}, 5*time.Second, 2*time.Millisecond)
}

// stayQuiet 继续推进时钟，确认不再有回调
func stayQuiet(t *testing.T, mock *clock.Mock, l *recordingListener, want int) {
	t.Helper()
	for i := 0; i < 10; i++ {
		mock.Add(time.Second)
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, want, l.total(), "回调次数")
}

func dummyConn(t *testing.T) net.PacketConn {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// ============================================================================
//                              重试状态机
// ============================================================================

func TestSequence_GivesUpAfterThreeTimeouts(t *testing.T) {
	p, mock, attempts, metrics := newMockProber(t, func(_ int, p Params) Outcome { return timedOut(p) })
	l := newRecordingListener()

	seq := p.StartProbe(dummyConn(t), "rendezvous.example.com", 3478, types.LocationPayload{CallerID: 1}, l)
	advanceUntil(t, mock, 100*time.Millisecond, func() bool { return l.total() > 0 })

	assert.Equal(t, []time.Duration{500 * time.Millisecond, 1000 * time.Millisecond, 2000 * time.Millisecond}, attempts.recorded())
	established, errs := l.counts()
	assert.Equal(t, 0, established)
	assert.Equal(t, 1, errs)

	err := l.lastError()
	assert.ErrorIs(t, err, ErrGaveUp)
	assert.ErrorIs(t, err, ErrAttemptTimedOut)
	assert.Equal(t, types.ProbeStateGivingUp, seq.State())

	stayQuiet(t, mock, l, 1)
	assert.Len(t, attempts.recorded(), 3, "4000 的尝试不应执行")

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.attempts.WithLabelValues("timed_out")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.sequences.WithLabelValues(resultGaveUp)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.active))

	t.Log("✅ 500/1000/2000 后放弃，OnError 恰好一次")
}

func TestSequence_RetryDelays(t *testing.T) {
	p, mock, attempts, _ := newMockProber(t, func(_ int, p Params) Outcome { return timedOut(p) })
	l := newRecordingListener()

	p.StartProbe(dummyConn(t), "127.0.0.1", 3478, types.LocationPayload{}, l)

	mock.Add(9 * time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, attempts.recorded(), "初始延迟未到")

	advanceUntil(t, mock, time.Millisecond, func() bool { return len(attempts.recorded()) == 1 })

	mock.Add(1900 * time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, attempts.recorded(), 1, "重试间隔未到")

	advanceUntil(t, mock, 5*time.Millisecond, func() bool { return len(attempts.recorded()) == 2 })
}

func TestSequence_SuccessOnFirstAttempt(t *testing.T) {
	p, mock, attempts, metrics := newMockProber(t, func(int, Params) Outcome { return mapped(40000) })
	l := newRecordingListener()

	seq := p.StartProbe(dummyConn(t), "127.0.0.1", 3478, types.LocationPayload{}, l)
	advanceUntil(t, mock, 5*time.Millisecond, func() bool { return l.total() > 0 })

	l.mu.Lock()
	require.Len(t, l.established, 1)
	assert.Equal(t, establishedCall{"203.0.113.5", 51820, 40000}, l.established[0])
	assert.Empty(t, l.errs)
	l.mu.Unlock()

	assert.Equal(t, types.ProbeStateSucceeded, seq.State())
	assert.Equal(t, 0, p.pool.Pending(), "不应调度重试")
	stayQuiet(t, mock, l, 1)
	assert.Len(t, attempts.recorded(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.sequences.WithLabelValues(resultEstablished)))

	select {
	case <-seq.Done():
	case <-time.After(time.Second):
		t.Fatal("Done 未关闭")
	}
}

func TestSequence_SuccessAfterRetry(t *testing.T) {
	p, mock, attempts, _ := newMockProber(t, func(n int, p Params) Outcome {
		if n == 1 {
			return Outcome{Err: &AttemptError{Kind: KindDecodeError, Op: "decode", Timeout: p.Timeout}}
		}
		return mapped(40001)
	})
	l := newRecordingListener()

	p.StartProbe(dummyConn(t), "127.0.0.1", 3478, types.LocationPayload{}, l)
	advanceUntil(t, mock, 50*time.Millisecond, func() bool { return l.total() > 0 })

	established, errs := l.counts()
	assert.Equal(t, 1, established)
	assert.Equal(t, 0, errs)
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, attempts.recorded())
}

func TestSequence_CancelBeforeFirstAttempt(t *testing.T) {
	p, mock, attempts, metrics := newMockProber(t, func(int, Params) Outcome { return mapped(1) })
	l := newRecordingListener()

	seq := p.StartProbe(dummyConn(t), "127.0.0.1", 3478, types.LocationPayload{}, l)
	seq.Cancel()
	advanceUntil(t, mock, 5*time.Millisecond, func() bool { return l.total() > 0 })

	assert.ErrorIs(t, l.lastError(), ErrCancelled)
	assert.Empty(t, attempts.recorded())
	assert.Equal(t, types.ProbeStateCancelled, seq.State())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.sequences.WithLabelValues(resultCancelled)))
}

func TestSequence_CancelBetweenAttempts(t *testing.T) {
	var seq interfaces.ProbeHandle
	ready := make(chan struct{})
	p, mock, attempts, _ := newMockProber(t, func(_ int, p Params) Outcome {
		<-ready
		seq.Cancel()
		return timedOut(p)
	})
	l := newRecordingListener()

	seq = p.StartProbe(dummyConn(t), "127.0.0.1", 3478, types.LocationPayload{}, l)
	close(ready)
	advanceUntil(t, mock, 50*time.Millisecond, func() bool { return l.total() > 0 })

	assert.ErrorIs(t, l.lastError(), ErrCancelled)
	assert.Len(t, attempts.recorded(), 1)
	stayQuiet(t, mock, l, 1)
}

func TestSequence_InvalidParams(t *testing.T) {
	p, mock, attempts, _ := newMockProber(t, func(int, Params) Outcome { return mapped(1) })

	for _, tc := range []struct {
		host string
		port int
	}{{"", 3478}, {"127.0.0.1", 0}, {"127.0.0.1", 70000}} {
		l := newRecordingListener()
		p.StartProbe(dummyConn(t), tc.host, tc.port, types.LocationPayload{}, l)
		advanceUntil(t, mock, 5*time.Millisecond, func() bool { return l.total() > 0 })
		assert.ErrorIs(t, l.lastError(), ErrInvalidParams)
	}

	l := newRecordingListener()
	p.StartProbe(nil, "127.0.0.1", 3478, types.LocationPayload{}, l)
	advanceUntil(t, mock, 5*time.Millisecond, func() bool { return l.total() > 0 })
	assert.ErrorIs(t, l.lastError(), ErrInvalidParams)

	assert.Empty(t, attempts.recorded())
}

func TestSequence_NilListener(t *testing.T) {
	p, mock, _, _ := newMockProber(t, func(int, Params) Outcome { return mapped(1) })

	seq := p.StartProbe(dummyConn(t), "127.0.0.1", 3478, types.LocationPayload{}, nil)
	advanceUntil(t, mock, 5*time.Millisecond, func() bool {
		select {
		case <-seq.Done():
			return true
		default:
			return false
		}
	})
	assert.Equal(t, types.ProbeStateSucceeded, seq.State())
}

func TestSequence_AttemptsNeverOverlap(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	p, mock, _, _ := newMockProber(t, func(_ int, p Params) Outcome {
		n := inFlight.Add(1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return timedOut(p)
	})
	l := newRecordingListener()

	p.StartProbe(dummyConn(t), "127.0.0.1", 3478, types.LocationPayload{}, l)
	// 一次推进很长时间也只会按顺序执行
	advanceUntil(t, mock, 10*time.Second, func() bool { return l.total() > 0 })

	assert.Equal(t, int32(1), maxInFlight.Load())
}

// ============================================================================
//                              通知
// ============================================================================

func TestNotifier_ExactlyOnceUnderRace(t *testing.T) {
	pool := NewPool(clock.New(), 8)
	defer pool.Close()

	for round := 0; round < 50; round++ {
		l := newRecordingListener()
		n := newNotifier("race", l, pool, 0)

		var wg sync.WaitGroup
		var fired atomic.Int32
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				var ok bool
				if i%2 == 0 {
					ok = n.established(&types.MappedEndpoint{IP: net.IPv4(203, 0, 113, 5), Port: 51820})
				} else {
					ok = n.failed(errors.New("boom"))
				}
				if ok {
					fired.Add(1)
				}
			}(i)
		}
		wg.Wait()

		<-n.done
		assert.Equal(t, int32(1), fired.Load())
		assert.Equal(t, 1, l.total(), "round %d", round)
	}
	t.Log("✅ Established 与 OnError 互斥且至多一次")
}

func TestNotifier_DoesNotBlockCaller(t *testing.T) {
	pool := NewPool(clock.New(), 2)
	defer pool.Close()

	block := make(chan struct{})
	l := interfaces.ListenerFuncs{
		EstablishedFunc: func(string, int, int) { <-block },
	}
	n := newNotifier("slow", l, pool, 0)

	returned := make(chan struct{})
	go func() {
		n.established(&types.MappedEndpoint{IP: net.IPv4(10, 0, 0, 1), Port: 1})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("投递阻塞了调用方")
	}
	close(block)
	<-n.done
}

func TestNotifier_ErrorDelay(t *testing.T) {
	mock := clock.NewMock()
	pool := NewPool(mock, 2)
	defer pool.Close()

	l := newRecordingListener()
	n := newNotifier("delay", l, pool, 10*time.Millisecond)
	n.failed(errors.New("boom"))

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, l.total(), "错误通知应延迟投递")

	advanceUntil(t, mock, time.Millisecond, func() bool { return l.total() == 1 })
}

// ============================================================================
//                              关闭
// ============================================================================

func TestProber_CloseReportsPendingSequences(t *testing.T) {
	p, _, attempts, _ := newMockProber(t, func(int, Params) Outcome { return mapped(1) })
	l := newRecordingListener()

	seq := p.StartProbe(dummyConn(t), "127.0.0.1", 3478, types.LocationPayload{}, l)
	assert.Equal(t, 1, p.Active())

	require.NoError(t, p.Close())

	select {
	case <-seq.Done():
	case <-time.After(time.Second):
		t.Fatal("关闭后未投递结果")
	}
	assert.ErrorIs(t, l.lastError(), ErrPoolClosed)
	assert.Equal(t, types.ProbeStateCancelled, seq.State())
	assert.Empty(t, attempts.recorded())
	assert.Eventually(t, func() bool { return p.Active() == 0 }, time.Second, 5*time.Millisecond)
}

func TestProber_StartAfterClose(t *testing.T) {
	p, _, _, _ := newMockProber(t, func(int, Params) Outcome { return mapped(1) })
	require.NoError(t, p.Close())

	l := newRecordingListener()
	seq := p.StartProbe(dummyConn(t), "127.0.0.1", 3478, types.LocationPayload{}, l)

	select {
	case <-seq.Done():
	case <-time.After(time.Second):
		t.Fatal("未投递结果")
	}
	assert.ErrorIs(t, l.lastError(), ErrPoolClosed)
}

func TestNewProber_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialTimeout = 0
	cfg.MaxWorkers = 0

	_, err := NewProber(cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "max workers")
}

func TestProber_CloseFromListenerCallback(t *testing.T) {
	p, mock, _, _ := newMockProber(t, func(int, Params) Outcome { return mapped(40000) })

	closed := make(chan error, 1)
	l := interfaces.ListenerFuncs{
		EstablishedFunc: func(string, int, int) { closed <- p.Close() },
	}
	seq := p.StartProbe(dummyConn(t), "127.0.0.1", 3478, types.LocationPayload{}, l)

	var err error
	advanceUntil(t, mock, 5*time.Millisecond, func() bool {
		select {
		case err = <-closed:
			return true
		default:
			return false
		}
	})
	require.NoError(t, err)

	select {
	case <-seq.Done():
	case <-time.After(time.Second):
		t.Fatal("Done 未关闭")
	}
	assert.Equal(t, 0, p.pool.Pending())

	t.Log("✅ 回调中关闭探测器不会死锁")
}

func TestProber_CloseFromErrorCallback(t *testing.T) {
	p, mock, _, _ := newMockProber(t, func(int, Params) Outcome { return mapped(1) })

	closed := make(chan error, 1)
	l := interfaces.ListenerFuncs{
		ErrorFunc: func(error) { closed <- p.Close() },
	}
	seq := p.StartProbe(dummyConn(t), "", 3478, types.LocationPayload{}, l)

	var err error
	advanceUntil(t, mock, 5*time.Millisecond, func() bool {
		select {
		case err = <-closed:
			return true
		default:
			return false
		}
	})
	require.NoError(t, err)
	<-seq.Done()
}

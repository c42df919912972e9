package probe

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-natprobe/pkg/interfaces"
	"github.com/dep2p/go-natprobe/pkg/types"
)

// notifier 向监听器投递序列的终态结果，每个序列恰好一次
//
// 回调由工作池任务转交到独立协程执行，不会在调用方或尝试所在的
// 执行上下文中回调；工作池关闭时直接启动独立协程。
type notifier struct {
	seqID      string
	listener   interfaces.Listener
	pool       *Pool
	errorDelay time.Duration

	// onDone 回调返回后调用
	onDone func()

	once    sync.Once
	fired   atomic.Bool
	call    func(interfaces.Listener)
	runOnce sync.Once
	done    chan struct{}
}

func newNotifier(seqID string, l interfaces.Listener, pool *Pool, errorDelay time.Duration) *notifier {
	return &notifier{
		seqID:      seqID,
		listener:   l,
		pool:       pool,
		errorDelay: errorDelay,
		done:       make(chan struct{}),
	}
}

// established 投递映射地址，返回本次调用是否生效
func (n *notifier) established(ep *types.MappedEndpoint) bool {
	fired := false
	n.once.Do(func() {
		fired = true
		log.Info("获取到映射地址",
			"seq", n.seqID,
			"addr", ep.String(),
			"localPort", ep.LocalPort)
		n.deliver(0, func(l interfaces.Listener) {
			l.Established(ep.Address(), ep.Port, ep.LocalPort)
		})
	})
	return fired
}

// failed 投递错误，返回本次调用是否生效
func (n *notifier) failed(err error) bool {
	fired := false
	n.once.Do(func() {
		fired = true
		log.Warn("地址探测失败", "seq", n.seqID, "err", err)
		n.deliver(n.errorDelay, func(l interfaces.Listener) {
			l.OnError(err)
		})
	})
	return fired
}

func (n *notifier) deliver(delay time.Duration, call func(interfaces.Listener)) {
	n.call = call
	n.fired.Store(true)

	// 工作池任务只负责转交，回调不计入工作池的等待组，
	// 因此监听器可以在回调中关闭探测器
	handoff := func() { go n.run() }

	var err error
	if delay > 0 {
		err = n.pool.Schedule(delay, handoff)
	} else {
		err = n.pool.Go(handoff)
	}
	if err != nil {
		log.Debug("工作池不可用，改用独立协程投递", "seq", n.seqID, "err", err)
		go n.run()
	}
}

func (n *notifier) run() {
	n.runOnce.Do(func() {
		defer func() {
			close(n.done)
			if n.onDone != nil {
				n.onDone()
			}
		}()
		if n.listener != nil {
			n.call(n.listener)
		}
	})
}

// flush 已触发但尚未投递的通知立即在独立协程上投递
func (n *notifier) flush() {
	if n.fired.Load() {
		go n.run()
	}
}

package probe

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/semaphore"
)

// Pool 共享的延迟任务工作池
//
// 每个任务在独立协程上执行，并发数由信号量限制。
// 到期时间由 clock 驱动，测试中可使用 mock 时钟推进。
type Pool struct {
	clock clock.Clock
	sem   *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timers map[*clock.Timer]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewPool 创建工作池
func NewPool(clk clock.Clock, maxWorkers int64) *Pool {
	if clk == nil {
		clk = clock.New()
	}
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		clock:  clk,
		sem:    semaphore.NewWeighted(maxWorkers),
		ctx:    ctx,
		cancel: cancel,
		timers: make(map[*clock.Timer]struct{}),
	}
}

// Schedule 在 delay 之后执行 fn
func (p *Pool) Schedule(delay time.Duration, fn func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	p.wg.Add(1)
	var t *clock.Timer
	t = p.clock.AfterFunc(delay, func() {
		p.mu.Lock()
		delete(p.timers, t)
		p.mu.Unlock()
		p.dispatch(fn)
	})
	p.timers[t] = struct{}{}
	return nil
}

// Go 立即在工作协程上执行 fn
func (p *Pool) Go(fn func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	p.wg.Add(1)
	p.dispatch(fn)
	return nil
}

// dispatch 获取信号量后执行，调用前已计入 wg
func (p *Pool) dispatch(fn func()) {
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			return
		}
		defer p.sem.Release(1)
		fn()
	}()
}

// Close 停止接收任务，取消未到期的任务并等待运行中的任务结束
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for t := range p.timers {
		if t.Stop() {
			p.wg.Done()
		}
		delete(p.timers, t)
	}
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	return nil
}

// Pending 返回尚未到期的任务数
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.timers)
}

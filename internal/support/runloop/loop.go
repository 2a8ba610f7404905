// Package runloop 提供单线程协作式运行循环。
//
// 设计：
//   - 一个 Loop 拥有一个 goroutine，并通过 LockOSThread 独占一个 OS 线程
//   - Submit 可由任意 goroutine 调用：追加到 job 队列 + 唤醒（cap=1 信号 channel，自动去重）
//   - 仅 loop 线程执行 job，同一 Loop 内严格 FIFO
//   - Stop 丢弃未执行的 job 并等待 loop goroutine 退出（errgroup 托管）
//
// loop 线程独占的状态无需加锁；跨线程入口只有 Submit / Call。
package runloop

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrWrongThread 在非预期线程上调用线程受限的函数（编程错误，直接 panic）
	ErrWrongThread = errors.New("runloop: called from wrong thread")

	// ErrAlreadyStarted 重复调用 Start
	ErrAlreadyStarted = errors.New("runloop: loop already started")

	// ErrStopped Loop 已停止
	ErrStopped = errors.New("runloop: loop stopped")
)

// Config Loop 配置
type Config struct {
	Name      string    // 线程名（诊断用）
	QueueHint int       // job 队列初始容量（0=64）
	OnPanic   func(any) // job panic 回调（可选）
}

// Loop 单线程运行循环
type Loop struct {
	name string

	// job 队列（双缓冲交换，跨线程）
	mu    sync.Mutex
	jobs  []func()
	spare []func()

	wake   chan struct{} // cap=1，唤醒信号
	done   chan struct{} // Stop 关闭
	exited chan struct{} // loop goroutine 退出后关闭

	closed  atomic.Bool
	started atomic.Bool
	owner   atomic.Int64 // loop 线程标识（0=未启动）

	g       errgroup.Group
	panics  atomic.Int64
	onPanic func(any)
}

// New 创建 Loop（未启动）
func New(cfg Config) *Loop {
	if cfg.QueueHint <= 0 {
		cfg.QueueHint = 64
	}
	if cfg.Name == "" {
		cfg.Name = "runloop"
	}
	return &Loop{
		name:    cfg.Name,
		jobs:    make([]func(), 0, cfg.QueueHint),
		spare:   make([]func(), 0, cfg.QueueHint),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
		onPanic: cfg.OnPanic,
	}
}

// Name 线程名
func (l *Loop) Name() string { return l.name }

// Start 启动 loop goroutine，在 loop 线程上执行 setup，setup 完成后才返回
func (l *Loop) Start(setup func()) error {
	if l.closed.Load() {
		return ErrStopped
	}
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ready := make(chan struct{})
	l.g.Go(func() error {
		defer close(l.exited)

		// 绑定 OS 线程：线程标识在 loop 生命周期内稳定
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		// 线程解锁后可能被其它 goroutine 复用
		defer l.owner.Store(0)
		l.owner.Store(threadID())
		if setup != nil {
			l.safeRun(setup)
		}
		close(ready)

		l.run()
		return nil
	})
	<-ready
	return nil
}

func (l *Loop) run() {
	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
		}
		l.runPending()
	}
}

// runPending 交换出当前批次并按序执行；执行期间新提交的 job 进入下一批
func (l *Loop) runPending() {
	l.mu.Lock()
	batch := l.jobs
	l.jobs = l.spare[:0]
	l.spare = nil
	l.mu.Unlock()

	for i, job := range batch {
		// Stop 之后剩余 job 直接丢弃
		if l.closed.Load() {
			break
		}
		l.safeRun(job)
		batch[i] = nil
	}

	l.mu.Lock()
	if l.spare == nil {
		l.spare = batch[:0]
	}
	l.mu.Unlock()
}

func (l *Loop) safeRun(job func()) {
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			if l.onPanic != nil {
				l.onPanic(r)
			}
		}
	}()
	job()
}

// Submit 任意线程提交 job（不阻塞，不失败）。Loop 停止后 job 被静默丢弃。
func (l *Loop) Submit(job func()) {
	l.submit(job)
}

func (l *Loop) submit(job func()) bool {
	if job == nil || l.closed.Load() {
		return false
	}
	l.mu.Lock()
	if l.closed.Load() {
		l.mu.Unlock()
		return false
	}
	l.jobs = append(l.jobs, job)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call 在 loop 线程上执行 fn 并等待完成。
// 已在 loop 线程上时直接执行；Loop 未启动或已停止时返回 false。
func (l *Loop) Call(fn func()) bool {
	if l.OnLoop() {
		fn()
		return true
	}
	if !l.started.Load() {
		return false
	}
	finished := make(chan struct{})
	if !l.submit(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-l.exited:
		select {
		case <-finished:
			return true
		default:
			return false
		}
	}
}

// Pending 队列中待执行的 job 数量
func (l *Loop) Pending() int {
	l.mu.Lock()
	n := len(l.jobs)
	l.mu.Unlock()
	return n
}

// Panics job panic 累计次数
func (l *Loop) Panics() int64 { return l.panics.Load() }

// Stopped 是否已停止
func (l *Loop) Stopped() bool { return l.closed.Load() }

// Done loop goroutine 退出后关闭
func (l *Loop) Done() <-chan struct{} { return l.exited }

// OnLoop 当前调用方是否运行在 loop 线程上
func (l *Loop) OnLoop() bool {
	owner := l.owner.Load()
	return owner != 0 && owner == threadID()
}

// MustBeOnLoop 线程前置条件断言；违反时 panic（编程错误，不可恢复）
func (l *Loop) MustBeOnLoop(op string) {
	if !l.OnLoop() {
		panic(fmt.Errorf("%w: %s must run on %s", ErrWrongThread, op, l.name))
	}
}

// Stop 停止 Loop：丢弃未执行的 job，等待 loop goroutine 退出。幂等。
// 在 loop 线程内调用时不等待（当前 job 返回后 loop 自行退出）。
func (l *Loop) Stop() {
	if l.closed.CompareAndSwap(false, true) {
		l.mu.Lock()
		for i := range l.jobs {
			l.jobs[i] = nil
		}
		l.jobs = l.jobs[:0]
		l.mu.Unlock()
		close(l.done)
	}
	if l.OnLoop() {
		return
	}
	_ = l.g.Wait()
}

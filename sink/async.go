// Package sink 提供 Delivery Sink 适配器。
//
// Async 将事件可用通知转移到 ants 协程池执行，worker 线程只做一次 CAS 即返回：
// 慢消费者不会拖住事件泵的 run loop。同一时刻最多一个通知在执行，
// 执行期间到达的通知合并为一次补发。
//
//	s, _ := sink.NewAsync(core.SinkFunc(func(d core.Drainer) { d.Drain(env) }), nil)
//	defer s.Release(time.Second)
//	p.SetSink(s)
package sink

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/uniyakcom/pump/core"
)

// Async 异步通知适配器
type Async struct {
	target  core.Sink
	pool    *ants.Pool
	logger  *slog.Logger
	drainer atomic.Pointer[core.Drainer]

	running atomic.Bool // 已提交/执行中
	dirty   atomic.Bool // 执行期间有新通知

	delivered atomic.Int64
	coalesced atomic.Int64
	panics    atomic.Int64
}

// NewAsync 创建异步适配器；logger 为 nil 时使用 slog.Default()
func NewAsync(target core.Sink, logger *slog.Logger) (*Async, error) {
	if target == nil {
		return nil, fmt.Errorf("sink: target must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Async{target: target, logger: logger}
	pool, err := ants.NewPool(1,
		ants.WithPreAlloc(true),
		ants.WithPanicHandler(func(r any) {
			// deliver 已自行恢复目标 panic，这里只兜底 run 本身
			a.running.Store(false)
			a.panics.Add(1)
			a.logger.Warn("sink worker panic recovered", "panic", r)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("sink: create pool: %w", err)
	}
	a.pool = pool
	return a, nil
}

// EventsAvailable 实现 core.Sink（在事件泵 worker 线程上调用，不阻塞）
func (a *Async) EventsAvailable(d core.Drainer) {
	a.drainer.Store(&d)
	a.dirty.Store(true)
	if !a.running.CompareAndSwap(false, true) {
		a.coalesced.Add(1)
		return
	}
	if err := a.pool.Submit(a.run); err != nil {
		a.running.Store(false)
		a.logger.Warn("sink notification dropped", "error", err)
	}
}

func (a *Async) run() {
	for {
		a.dirty.Store(false)
		if d := a.drainer.Load(); d != nil {
			a.deliver(*d)
		}
		if a.dirty.Load() {
			continue
		}
		a.running.Store(false)
		// 清零 running 与新通知之间的竞争：重新抢占后补发
		if !a.dirty.Load() || !a.running.CompareAndSwap(false, true) {
			return
		}
	}
}

// deliver 调用目标 sink；panic 后 run 继续检查 dirty，合并进来的通知不会丢
func (a *Async) deliver(d core.Drainer) {
	defer func() {
		if r := recover(); r != nil {
			a.panics.Add(1)
			a.logger.Warn("sink panic recovered", "panic", r)
		}
	}()
	a.target.EventsAvailable(d)
	a.delivered.Add(1)
}

// Delivered 已送达目标 sink 的通知次数
func (a *Async) Delivered() int64 { return a.delivered.Load() }

// Coalesced 被合并的通知次数
func (a *Async) Coalesced() int64 { return a.coalesced.Load() }

// Panics 目标 sink panic 次数
func (a *Async) Panics() int64 { return a.panics.Load() }

// Release 关闭协程池，等待执行中的通知结束（最多 timeout）
func (a *Async) Release(timeout time.Duration) error {
	if timeout <= 0 {
		a.pool.Release()
		return nil
	}
	if err := a.pool.ReleaseTimeout(timeout); err != nil {
		return fmt.Errorf("sink: release: %w", err)
	}
	return nil
}

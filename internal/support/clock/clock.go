// Package clock 提供绑定到运行循环的帧时钟。
//
// 平台 vsync 被抽象为可插拔 Backend（Start/Pause/Resume/Stop）：
//   - Backend 在自己的 goroutine 上触发 fire
//   - FrameClock 将 fire 投递到 loop 线程执行 onTick（tick 未执行前的重复 fire 合并为一次）
//   - paused 状态只在 loop 线程上修改，暂停后投递中的 tick 被丢弃
//   - Hold/Release 只在 loop 内屏蔽 tick，不触碰 backend，帧相位保持不变
package clock

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/uniyakcom/pump/core"
)

// DefaultCadence 默认帧间隔（60Hz）
const DefaultCadence = time.Second / 60

// Backend 周期信号源
type Backend = core.ClockBackend

// Executor FrameClock 依赖的运行循环能力（runloop.Loop 实现）
type Executor interface {
	Submit(job func())
	MustBeOnLoop(op string)
}

// FrameClock 帧时钟
type FrameClock struct {
	exec    Executor
	backend Backend
	cadence time.Duration
	onTick  func()

	paused   atomic.Bool // 仅 loop 线程写
	held     atomic.Bool // 仅 loop 线程写
	stopped  atomic.Bool
	pending  atomic.Bool // tick job 已投递未执行
	ticks    atomic.Int64
	stopOnce sync.Once
}

// New 在 loop 线程上创建并启动帧时钟（创建后处于活动状态）
func New(exec Executor, backend Backend, cadence time.Duration, onTick func()) *FrameClock {
	exec.MustBeOnLoop("clock.New")
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	if backend == nil {
		backend = NewTicker()
	}
	c := &FrameClock{
		exec:    exec,
		backend: backend,
		cadence: cadence,
		onTick:  onTick,
	}
	backend.Start(cadence, c.fire)
	return c
}

// fire backend 回调（任意 goroutine）
func (c *FrameClock) fire() {
	if c.stopped.Load() || c.paused.Load() {
		return
	}
	if c.pending.CompareAndSwap(false, true) {
		c.exec.Submit(c.tick)
	}
}

func (c *FrameClock) tick() {
	c.pending.Store(false)
	if c.stopped.Load() || c.paused.Load() || c.held.Load() {
		return
	}
	c.ticks.Add(1)
	if c.onTick != nil {
		c.onTick()
	}
}

// Pause 暂停（loop 线程）。已暂停时为 no-op。
func (c *FrameClock) Pause() {
	c.exec.MustBeOnLoop("clock.Pause")
	if c.stopped.Load() || !c.paused.CompareAndSwap(false, true) {
		return
	}
	c.backend.Pause()
}

// Resume 恢复（loop 线程）。未暂停时为 no-op。
func (c *FrameClock) Resume() {
	c.exec.MustBeOnLoop("clock.Resume")
	if c.stopped.Load() || !c.paused.CompareAndSwap(true, false) {
		return
	}
	c.backend.Resume()
}

// Hold 屏蔽 tick（loop 线程），backend 继续按原相位出帧
// 与 Release 成对使用；已暂停或已屏蔽时返回 false。
func (c *FrameClock) Hold() bool {
	c.exec.MustBeOnLoop("clock.Hold")
	if c.stopped.Load() || c.paused.Load() {
		return false
	}
	return c.held.CompareAndSwap(false, true)
}

// Release 解除 Hold（loop 线程）
func (c *FrameClock) Release() {
	c.exec.MustBeOnLoop("clock.Release")
	c.held.Store(false)
}

// Paused 是否暂停（任意线程可读）
func (c *FrameClock) Paused() bool { return c.paused.Load() }

// Held 是否处于 Hold
func (c *FrameClock) Held() bool { return c.held.Load() }

// Active 时钟存在且未暂停、未屏蔽、未停止
func (c *FrameClock) Active() bool {
	return c != nil && !c.paused.Load() && !c.held.Load() && !c.stopped.Load()
}

// Cadence 帧间隔
func (c *FrameClock) Cadence() time.Duration { return c.cadence }

// Ticks 已执行的 tick 次数
func (c *FrameClock) Ticks() int64 { return c.ticks.Load() }

// Stop 停止 backend（幂等，任意线程；通常在 loop 退出后调用）
func (c *FrameClock) Stop() {
	c.stopOnce.Do(func() {
		c.stopped.Store(true)
		c.backend.Stop()
	})
}

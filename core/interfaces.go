// Package core 提供事件泵核心类型与接口定义
package core

import (
	"time"
)

// Reason 通知原因（位值与诊断日志对齐）
type Reason uint8

const (
	ReasonNone        Reason = 0
	ReasonSinkChanged Reason = 1 << 0 // sink 注册/替换
	ReasonTick        Reason = 1 << 1 // 帧时钟触发
	ReasonFilterRan   Reason = 1 << 2 // 过滤链完成一轮 hand-off
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonSinkChanged:
		return "sink-changed"
	case ReasonTick:
		return "tick"
	case ReasonFilterRan:
		return "filter-ran"
	default:
		return "unknown"
	}
}

// Handle sink 注册句柄（0 = 无效）
type Handle uint64

// Drainer 消费侧拉取接口，由事件泵实现
type Drainer interface {
	// Drain 将已过滤事件按序移入 env，返回移入数量
	Drain(env Environment) int
}

// Sink 事件可用通知的观察者（单方法）
// 回调只收到事件泵引用，事件本身需要通过 Drain 拉取。
type Sink interface {
	EventsAvailable(d Drainer)
}

// SinkFunc 函数适配器
type SinkFunc func(d Drainer)

// EventsAvailable 调用底层函数
func (f SinkFunc) EventsAvailable(d Drainer) { f(d) }

// Environment 消费者（UI 环境）的事件目的地
type Environment interface {
	// EnqueueHIDEvent 每个被排出的事件调用一次，保持顺序
	EnqueueHIDEvent(evt RawEvent)
	// SetCommitTimeForTouchEvents 由 Drain 在排出后设置
	SetCommitTimeForTouchEvents(t time.Duration)
}

// SignalHook 诊断钩子（替代进程级日志）
type SignalHook func(reason Reason, filteredCount int)

// Stats 事件泵运行时统计
type Stats struct {
	Received  int64 // ReceiveHIDEvent 调用次数（任意线程）
	Ingested  int64 // worker 上写入 raw 队列的事件数
	Filtered  int64 // 通过过滤链进入 filtered 队列的事件数
	Dropped   int64 // 被过滤链丢弃的事件数
	Drained   int64 // 被消费者取走的事件数
	Signals   int64 // sink 通知次数
	Ticks     int64 // 帧时钟回调次数
	Panics    int64 // loop 上 job panic 次数
	RawDepth  int64 // 当前 raw 队列积压
	Backlog   int64 // 当前 filtered 队列积压
	LastInput time.Duration
}

// ClockBackend 帧时钟的周期信号源（平台 vsync 的可插拔替身）
type ClockBackend interface {
	// Start 以 cadence 为周期调用 fire（fire 可能运行在任意 goroutine）
	Start(cadence time.Duration, fire func())
	Pause()
	Resume()
	Stop()
}

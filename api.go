// Package pump 统一API入口
//
// 后台输入事件泵：任意线程投递原始输入事件，专用 worker 线程过滤、批量化，
// 帧时钟到来时通知消费者拉取；无积压时自动暂停帧时钟。
package pump

import (
	"log/slog"
	"time"

	"github.com/uniyakcom/pump/core"
	"github.com/uniyakcom/pump/internal/impl/fetcher"
	"github.com/uniyakcom/pump/internal/support/clock"
	"github.com/uniyakcom/pump/optimize"
)

// Fetcher 导出事件泵类型
type Fetcher = fetcher.Fetcher

// Options 导出底层配置
type Options = fetcher.Options

// State 导出 loop 状态快照
type State = fetcher.State

// RawEvent 导出原始事件
type RawEvent = core.RawEvent

// Kind 导出事件类别
type Kind = core.Kind

// Sink 导出 Delivery Sink 接口
type Sink = core.Sink

// SinkFunc 导出函数适配器
type SinkFunc = core.SinkFunc

// Drainer 导出消费侧拉取接口
type Drainer = core.Drainer

// Environment 导出消费者环境接口
type Environment = core.Environment

// Filter 导出过滤器类型
type Filter = core.Filter

// Handle 导出 sink 注册句柄
type Handle = core.Handle

// Reason 导出通知原因
type Reason = core.Reason

// Stats 导出运行时统计
type Stats = core.Stats

// ClockBackend 导出帧时钟后端接口
type ClockBackend = core.ClockBackend

// ManualClock 手动出帧的帧时钟后端
type ManualClock = clock.Manual

// Profile 导出Profile
type Profile = optimize.Profile

// Auto 导出Auto配置
type Auto = optimize.Auto

const (
	KindPointerDown = core.KindPointerDown
	KindPointerUp   = core.KindPointerUp
	KindPointerMove = core.KindPointerMove
	KindKeyDown     = core.KindKeyDown
	KindKeyUp       = core.KindKeyUp
	KindText        = core.KindText
	KindScroll      = core.KindScroll
	KindWindow      = core.KindWindow
	KindQuit        = core.KindQuit

	ReasonSinkChanged = core.ReasonSinkChanged
	ReasonTick        = core.ReasonTick
	ReasonFilterRan   = core.ReasonFilterRan
)

var (
	// ErrClosed 事件泵已关闭
	ErrClosed = fetcher.ErrClosed

	// ErrUnknownClock 未知的帧时钟类型
	ErrUnknownClock = optimize.ErrUnknownClock
)

// NewManualClock 创建手动帧时钟（测试、回放）
func NewManualClock() *ManualClock { return clock.NewManual() }

// Opt 调用方配置项（覆盖 Profile 推荐值）
type Opt func(*Options)

// WithSink 初始 sink
func WithSink(s Sink) Opt { return func(o *Options) { o.Sink = s } }

// WithFilters 追加过滤器（构造期注册，按顺序执行）
func WithFilters(fs ...Filter) Opt {
	return func(o *Options) { o.Filters = append(o.Filters, fs...) }
}

// WithClock 指定帧时钟后端
func WithClock(b ClockBackend) Opt { return func(o *Options) { o.Clock = b } }

// WithCadence 指定帧间隔
func WithCadence(d time.Duration) Opt { return func(o *Options) { o.Cadence = d } }

// WithLogger 指定日志
func WithLogger(l *slog.Logger) Opt { return func(o *Options) { o.Logger = l } }

// WithSignalHook 诊断钩子（每次通知 sink 前调用）
func WithSignalHook(h core.SignalHook) Opt { return func(o *Options) { o.OnSignal = h } }

// WithPanicHandler loop 上 job panic 回调
func WithPanicHandler(fn func(any)) Opt { return func(o *Options) { o.OnPanic = fn } }

// WithName worker 线程名
func WithName(name string) Opt { return func(o *Options) { o.Name = name } }

// ═══════════════════════════════════════════════════════════════════
// 第零层：New() 零配置入口
// ═══════════════════════════════════════════════════════════════════

// New 零配置创建事件泵（自动检测运行时环境）
//
// 用法:
//
//	p, _ := pump.New(pump.WithSink(sink))
//	defer p.Close()
func New(opts ...Opt) (*Fetcher, error) {
	return Option(optimize.AutoDetect(), opts...)
}

// ═══════════════════════════════════════════════════════════════════
// 第一层：ForXxx() 三大核心（推荐使用）
// ═══════════════════════════════════════════════════════════════════

// ForDisplay 60Hz 显示器：合并连续 move，空闲暂停
func ForDisplay(opts ...Opt) (*Fetcher, error) {
	return Option(optimize.Display(), opts...)
}

// ForHighRefresh 120Hz：保留完整 move 轨迹，指针事件后每帧通知
func ForHighRefresh(opts ...Opt) (*Fetcher, error) {
	return Option(optimize.HighRefresh(), opts...)
}

// ForHeadless 无头：手动帧时钟（通过 ClockBackend().(*ManualClock).Fire() 出帧）
func ForHeadless(opts ...Opt) (*Fetcher, error) {
	return Option(optimize.Headless(), opts...)
}

// ═══════════════════════════════════════════════════════════════════
// 第二层：Scenario() 字符串配置
// ═══════════════════════════════════════════════════════════════════

// Scenario 预设场景快速创建
// name: "display", "high-refresh", "headless"
func Scenario(name string, opts ...Opt) (*Fetcher, error) {
	return Option(optimize.Preset(name), opts...)
}

// ═══════════════════════════════════════════════════════════════════
// 第三层：Option() 完全控制
// ═══════════════════════════════════════════════════════════════════

// Option 按 Profile 创建事件泵（完全控制）
func Option(p *Profile, opts ...Opt) (*Fetcher, error) {
	if p == nil {
		p = optimize.Display()
	}
	advised, err := optimize.NewAdvisor().Advise(p)
	if err != nil {
		return nil, err
	}
	var base Options
	for _, o := range opts {
		if o != nil {
			o(&base)
		}
	}
	return optimize.Build(advised, base)
}

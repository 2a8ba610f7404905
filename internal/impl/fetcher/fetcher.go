// Package fetcher 提供后台输入事件泵实现
//
// 数据流:
//
//	ReceiveHIDEvent(任意线程) → runloop.Submit → ingest(loop) → raw 队列
//	  → handOff(loop): 屏蔽 tick → 过滤链 → filtered 队列 → 通知 sink → 解除屏蔽（空闲暂停时恢复帧时钟）
//	  → onTick(loop): 按积压/指针事件决定是否再次通知，空闲时暂停帧时钟
//	  → Drain(消费线程): filtered 队列 → Environment
//
// raw / filtered 队列是唯一跨线程共享的数据（加锁）；其余泵状态只在 loop 线程上读写。
package fetcher

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/uniyakcom/pump/core"
	"github.com/uniyakcom/pump/internal/support/clock"
	"github.com/uniyakcom/pump/internal/support/queue"
	"github.com/uniyakcom/pump/internal/support/runloop"
	"github.com/uniyakcom/pump/util"
)

// DefaultName 事件泵线程名
const DefaultName = "pump.eventfetch-thread"

var (
	// ErrClosed 事件泵已关闭
	ErrClosed = errors.New("fetcher: closed")

	// ErrInvalidCadence 帧间隔为负
	ErrInvalidCadence = errors.New("fetcher: cadence must not be negative")
)

// Options 事件泵配置
type Options struct {
	Name               string
	Cadence            time.Duration     // 帧间隔（0=60Hz）
	Clock              core.ClockBackend // 帧时钟后端（nil=time.Ticker）
	Filters            []core.Filter     // 过滤链（仅构造期注册）
	Sink               core.Sink         // 初始 sink（可选）
	ShouldSignalOnTick bool
	QueueHint          int              // 队列初始容量
	RequireMainThread  bool             // 构造前置条件：调用方位于进程主线程
	OnSignal           core.SignalHook  // 诊断钩子
	OnPanic            func(any)        // loop 上 job panic 回调
	Logger             *slog.Logger     // nil=slog.Default()
}

// State loop 线程上的泵状态快照
type State struct {
	DigitizerCount     uint
	DidDispatchMove    bool
	ShouldSignalOnTick bool
	ClockPaused        bool
	RawDepth           int
	Backlog            int
	Sink               core.Handle
}

type sinkEntry struct {
	handle core.Handle
	sink   core.Sink
}

// Fetcher 后台事件泵
type Fetcher struct {
	loop    *runloop.Loop
	clock   *clock.FrameClock
	backend core.ClockBackend
	chain   *core.Chain

	raw      *queue.Queue[core.RawEvent]
	filtered *queue.Queue[core.RawEvent]

	// === loop 线程独占 ===
	digitizerCount  uint
	didDispatchMove bool
	handOffPending  bool

	// === 所有者可读写 ===
	shouldSignalOnTick atomic.Bool
	commitTime         atomic.Int64 // time.Duration
	lastImportant      atomic.Int64 // time.Duration

	sink       atomic.Pointer[sinkEntry]
	nextHandle atomic.Uint64

	onSignal core.SignalHook
	onPanic  func(any)
	logger   *slog.Logger
	closed   atomic.Bool

	// 统计
	received  *util.Counter
	ingested  atomic.Int64
	passed    atomic.Int64
	dropped   atomic.Int64
	drained   atomic.Int64
	signals   atomic.Int64
	tickCount atomic.Int64
	panics    atomic.Int64
}

// New 创建事件泵并同步启动 worker 线程（setup 完成后返回）
func New(opts Options) (*Fetcher, error) {
	if opts.RequireMainThread && !runloop.IsMainThread() {
		panic(fmt.Errorf("%w: fetcher must be created on the main thread", runloop.ErrWrongThread))
	}
	if opts.Cadence < 0 {
		return nil, ErrInvalidCadence
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	backend := opts.Clock
	if backend == nil {
		backend = clock.NewTicker()
	}

	f := &Fetcher{
		backend:  backend,
		chain:    core.NewChain(opts.Filters...),
		raw:      queue.New[core.RawEvent](opts.QueueHint),
		filtered: queue.New[core.RawEvent](opts.QueueHint),
		onSignal: opts.OnSignal,
		onPanic:  opts.OnPanic,
		logger:   opts.Logger.With("thread", opts.Name),
		received: util.NewCounter(),
	}
	f.loop = runloop.New(runloop.Config{
		Name:      opts.Name,
		QueueHint: opts.QueueHint,
		OnPanic:   f.recovered,
	})

	if err := f.loop.Start(func() { f.setup(backend, opts.Cadence) }); err != nil {
		return nil, fmt.Errorf("fetcher: start worker: %w", err)
	}

	f.shouldSignalOnTick.Store(opts.ShouldSignalOnTick)
	if opts.Sink != nil {
		f.SetSink(opts.Sink)
	}
	return f, nil
}

// setup 在 loop 线程上执行：首轮 hand-off，然后创建帧时钟
func (f *Fetcher) setup(backend core.ClockBackend, cadence time.Duration) {
	f.handOff()
	f.clock = clock.New(f.loop, backend, cadence, f.onTick)
}

func (f *Fetcher) recovered(r any) {
	f.panics.Add(1)
	f.logger.Warn("job panic recovered", "panic", r)
	if f.onPanic != nil {
		f.onPanic(r)
	}
}

// ─── 输入侧 ─────────────────────────────────────────────────────────

// ReceiveHIDEvent 任意线程投递原始事件（不阻塞，无返回值）
// 关闭后的事件被静默丢弃。
func (f *Fetcher) ReceiveHIDEvent(evt core.RawEvent) {
	f.received.Inc()
	f.loop.Submit(func() { f.ingest(evt) })
}

// ingest 追加到 raw 队列、触发 hand-off、分类计数（仅 loop 线程）
func (f *Fetcher) ingest(evt core.RawEvent) {
	f.loop.MustBeOnLoop("ingest")

	f.raw.Append(evt)
	f.ingested.Add(1)
	f.signalHandOff()

	if evt.Kind.IsDigitizer() && f.clock.Active() {
		f.digitizerCount++
	}
	if evt.Important() {
		f.lastImportant.Store(int64(evt.Timestamp))
	}
}

// signalHandOff 同一批次只挂一个 hand-off；它排在已提交的 ingest 之后，一次处理整段突发
func (f *Fetcher) signalHandOff() {
	if f.handOffPending {
		return
	}
	f.handOffPending = true
	f.loop.Submit(f.handOff)
}

// handOff raw → 过滤链 → filtered
func (f *Fetcher) handOff() {
	f.loop.MustBeOnLoop("handOff")
	f.handOffPending = false

	// 过滤突发期间屏蔽 tick；只在 loop 内屏蔽，backend 保持原帧相位
	if f.clock.Active() && !f.raw.Empty() && f.clock.Hold() {
		defer f.clock.Release()
	}

	batch := f.raw.DrainAll()
	n := len(batch)
	if n > 0 {
		out := f.chain.Apply(batch)
		for _, evt := range out {
			if evt.Kind == core.KindPointerMove {
				f.didDispatchMove = true
				break
			}
		}
		f.filtered.AppendBatch(out)
		f.passed.Add(int64(len(out)))
		if n > len(out) {
			f.dropped.Add(int64(n - len(out)))
		}
		f.raw.Recycle(batch)
	}

	f.signal(core.ReasonFilterRan, f.filtered.Len())

	// 空闲暂停后的首个突发：恢复帧时钟，由 tick 继续通知积压或在空闲时重新暂停
	if n > 0 && f.clock != nil && f.clock.Paused() {
		f.clock.Resume()
	}
}

// onTick 帧时钟回调（仅 loop 线程）
func (f *Fetcher) onTick() {
	f.tickCount.Add(1)
	filteredCount := f.filtered.Len()

	if f.digitizerCount > 0 {
		if f.shouldSignalOnTick.Load() {
			f.signal(core.ReasonTick, filteredCount)
		}
	} else if filteredCount > 0 {
		f.signal(core.ReasonTick, filteredCount)
	} else if !f.clock.Paused() {
		// 空闲：直到下一个输入事件之前不再出帧
		f.clock.Pause()
	}

	f.didDispatchMove = false
	f.digitizerCount = 0
}

// signal 通知 sink 有事件可取
func (f *Fetcher) signal(reason core.Reason, filteredCount int) {
	f.shouldSignalOnTick.Store(false)
	f.signals.Add(1)

	if f.onSignal != nil {
		f.onSignal(reason, filteredCount)
	}
	f.logger.Debug("signal events available", "reason", reason.String(), "filtered", filteredCount)

	if e := f.sink.Load(); e != nil {
		e.sink.EventsAvailable(f)
	}
}

// ─── sink 注册 ───────────────────────────────────────────────────────

// SetSink 替换 sink 并立即以 ReasonSinkChanged 通知新 sink，返回注册句柄
// 旧 sink 不再收到任何通知。事件泵已关闭时返回 0。
func (f *Fetcher) SetSink(s core.Sink) core.Handle {
	if s == nil {
		return 0
	}
	entry := &sinkEntry{handle: core.Handle(f.nextHandle.Add(1)), sink: s}
	ok := f.loop.Call(func() {
		f.sink.Store(entry)
		f.signal(core.ReasonSinkChanged, 0)
	})
	if !ok {
		return 0
	}
	return entry.handle
}

// RemoveSink 注销句柄；句柄已失效（被替换或重复注销）时为 no-op
func (f *Fetcher) RemoveSink(h core.Handle) {
	if h == 0 {
		return
	}
	remove := func() {
		if e := f.sink.Load(); e != nil && e.handle == h {
			f.sink.CompareAndSwap(e, nil)
		}
	}
	if !f.loop.Call(remove) {
		remove()
	}
}

// SinkHandle 当前 sink 句柄（0=未注册）
func (f *Fetcher) SinkHandle() core.Handle {
	if e := f.sink.Load(); e != nil {
		return e.handle
	}
	return 0
}

// ─── 消费侧 ─────────────────────────────────────────────────────────

// Drain 将 filtered 队列按序移入 env，并同步 commit time；返回移入数量
func (f *Fetcher) Drain(env core.Environment) int {
	if env == nil {
		return 0
	}
	batch := f.filtered.DrainAll()
	for _, evt := range batch {
		env.EnqueueHIDEvent(evt)
	}
	n := len(batch)
	f.filtered.Recycle(batch)

	env.SetCommitTimeForTouchEvents(time.Duration(f.commitTime.Load()))
	f.drained.Add(int64(n))
	return n
}

// ShouldSignalOnTick 指针事件到达后是否在下一帧通知
func (f *Fetcher) ShouldSignalOnTick() bool { return f.shouldSignalOnTick.Load() }

// SetShouldSignalOnTick 设置帧通知开关（每次通知后自动清零）
func (f *Fetcher) SetShouldSignalOnTick(v bool) { f.shouldSignalOnTick.Store(v) }

// CommitTimeForTouchEvents 当前 commit time
func (f *Fetcher) CommitTimeForTouchEvents() time.Duration {
	return time.Duration(f.commitTime.Load())
}

// SetCommitTimeForTouchEvents 设置 commit time（下次 Drain 时拷贝给消费者）
func (f *Fetcher) SetCommitTimeForTouchEvents(t time.Duration) {
	f.commitTime.Store(int64(t))
}

// LastImportantEventTimestamp 最近一个重要（非 move）事件的时间戳
func (f *Fetcher) LastImportantEventTimestamp() time.Duration {
	return time.Duration(f.lastImportant.Load())
}

// ─── 观测 ───────────────────────────────────────────────────────────

// Flush 等待此前提交的全部 job（含 ingest / hand-off）在 loop 上执行完毕
func (f *Fetcher) Flush(timeout time.Duration) error {
	_, err := f.Inspect(timeout)
	return err
}

// Inspect 在 loop 线程上读取泵状态快照
func (f *Fetcher) Inspect(timeout time.Duration) (State, error) {
	if f.closed.Load() || f.loop.Stopped() {
		return State{}, ErrClosed
	}
	if f.loop.OnLoop() {
		return f.snapshot(), nil
	}
	ch := make(chan State, 1)
	f.loop.Submit(func() { ch <- f.snapshot() })

	var expire <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expire = t.C
	}
	select {
	case st := <-ch:
		return st, nil
	case <-f.loop.Done():
		return State{}, ErrClosed
	case <-expire:
		return State{}, fmt.Errorf("fetcher: inspect timed out after %v", timeout)
	}
}

func (f *Fetcher) snapshot() State {
	return State{
		DigitizerCount:     f.digitizerCount,
		DidDispatchMove:    f.didDispatchMove,
		ShouldSignalOnTick: f.shouldSignalOnTick.Load(),
		ClockPaused:        f.clock != nil && f.clock.Paused(),
		RawDepth:           f.raw.Len(),
		Backlog:            f.filtered.Len(),
		Sink:               f.SinkHandle(),
	}
}

// Stats 运行时统计
func (f *Fetcher) Stats() core.Stats {
	return core.Stats{
		Received:  f.received.Load(),
		Ingested:  f.ingested.Load(),
		Filtered:  f.passed.Load(),
		Dropped:   f.dropped.Load(),
		Drained:   f.drained.Load(),
		Signals:   f.signals.Load(),
		Ticks:     f.tickCount.Load(),
		Panics:    f.panics.Load(),
		RawDepth:  int64(f.raw.Len()),
		Backlog:   int64(f.filtered.Len()),
		LastInput: f.LastImportantEventTimestamp(),
	}
}

// ClockBackend 帧时钟后端（无头场景下可断言为 *clock.Manual 手动出帧）
func (f *Fetcher) ClockBackend() core.ClockBackend { return f.backend }

// ClockPaused 帧时钟是否暂停（任意线程近似读取）
func (f *Fetcher) ClockPaused() bool {
	c := f.clock
	return c != nil && c.Paused()
}

// ─── 生命周期 ───────────────────────────────────────────────────────

// Close 停止帧时钟、丢弃未执行的 job、等待 worker 线程退出。幂等。
func (f *Fetcher) Close() {
	if !f.closed.CompareAndSwap(false, true) {
		return
	}
	if f.clock != nil {
		f.clock.Stop()
	}
	f.loop.Stop()
}

// Shutdown 带超时的 Close
func (f *Fetcher) Shutdown(timeout time.Duration) error {
	if timeout <= 0 {
		f.Close()
		return nil
	}
	done := make(chan struct{})
	go func() {
		f.Close()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("fetcher: shutdown timed out after %v", timeout)
	}
}

package fetcher

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/uniyakcom/pump/core"
	"github.com/uniyakcom/pump/internal/support/clock"
	"github.com/uniyakcom/pump/internal/support/runloop"
)

const waitTimeout = 2 * time.Second

// recordingSink 记录通知次数
type recordingSink struct {
	calls atomic.Int32
}

func (s *recordingSink) EventsAvailable(core.Drainer) { s.calls.Add(1) }

// testEnv 消费者环境
type testEnv struct {
	mu         sync.Mutex
	events     []core.RawEvent
	commitTime time.Duration
}

func (e *testEnv) EnqueueHIDEvent(evt core.RawEvent) {
	e.mu.Lock()
	e.events = append(e.events, evt)
	e.mu.Unlock()
}

func (e *testEnv) SetCommitTimeForTouchEvents(t time.Duration) {
	e.mu.Lock()
	e.commitTime = t
	e.mu.Unlock()
}

// signalLog 记录诊断钩子
type signalLog struct {
	mu      sync.Mutex
	reasons []core.Reason
	counts  []int
}

func (l *signalLog) hook(reason core.Reason, n int) {
	l.mu.Lock()
	l.reasons = append(l.reasons, reason)
	l.counts = append(l.counts, n)
	l.mu.Unlock()
}

func (l *signalLog) count(r core.Reason) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, x := range l.reasons {
		if x == r {
			n++
		}
	}
	return n
}

func newManual(t *testing.T, opts Options) (*Fetcher, *clock.Manual) {
	t.Helper()
	m := clock.NewManual()
	opts.Clock = m
	f, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(f.Close)
	return f, m
}

func mustFlush(t *testing.T, f *Fetcher) {
	t.Helper()
	if err := f.Flush(waitTimeout); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
}

func mustInspect(t *testing.T, f *Fetcher) State {
	t.Helper()
	st, err := f.Inspect(waitTimeout)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	return st
}

// tick 触发一帧并等待 loop 执行完
func tick(t *testing.T, f *Fetcher, m *clock.Manual) bool {
	t.Helper()
	fired := m.Fire()
	mustFlush(t, f)
	return fired
}

// idle 通过一次空闲 tick 让帧时钟进入暂停
func idle(t *testing.T, f *Fetcher, m *clock.Manual) {
	t.Helper()
	if !tick(t, f, m) {
		t.Fatal("idle tick did not fire")
	}
	if !f.ClockPaused() {
		t.Fatal("clock should be paused after idle tick")
	}
}

func pointer(kind core.Kind, ts time.Duration) core.RawEvent {
	return core.RawEvent{Kind: kind, Timestamp: ts}
}

// TestFetcherDeliverOrder 投递 → 过滤 → 排出，顺序与 commit time 保持
func TestFetcherDeliverOrder(t *testing.T) {
	sink := &recordingSink{}
	f, _ := newManual(t, Options{Sink: sink})

	f.SetCommitTimeForTouchEvents(42 * time.Millisecond)
	for i := 1; i <= 3; i++ {
		f.ReceiveHIDEvent(pointer(core.KindPointerMove, time.Duration(i)))
	}
	mustFlush(t, f)

	env := &testEnv{}
	if n := f.Drain(env); n != 3 {
		t.Fatalf("Drain = %d, want 3", n)
	}
	for i, evt := range env.events {
		if evt.Timestamp != time.Duration(i+1) {
			t.Fatalf("events[%d].Timestamp = %v, want %v", i, evt.Timestamp, i+1)
		}
	}
	if env.commitTime != 42*time.Millisecond {
		t.Errorf("commitTime = %v, want 42ms", env.commitTime)
	}
	// sink-changed + 至少一次 filter-ran
	if sink.calls.Load() < 2 {
		t.Errorf("sink calls = %d, want >= 2", sink.calls.Load())
	}
	if f.Drain(env) != 0 {
		t.Error("second Drain should be empty")
	}

	st := f.Stats()
	if st.Received != 3 || st.Ingested != 3 || st.Filtered != 3 || st.Drained != 3 {
		t.Errorf("stats = %+v", st)
	}
}

// TestFetcherClassification 指针事件仅在帧时钟活动时计数，其他类别从不计数
func TestFetcherClassification(t *testing.T) {
	f, m := newManual(t, Options{})

	// 时钟活动：两个指针事件计数，键盘事件不计数
	f.ReceiveHIDEvent(pointer(core.KindPointerDown, 1))
	f.ReceiveHIDEvent(pointer(core.KindKeyDown, 2))
	f.ReceiveHIDEvent(pointer(core.KindPointerUp, 3))
	st := mustInspect(t, f)
	if st.DigitizerCount != 2 {
		t.Fatalf("DigitizerCount = %d, want 2", st.DigitizerCount)
	}
	if st.ClockPaused {
		t.Fatal("clock should be resumed after hand-off")
	}

	// tick 清零计数；drain 后空闲 tick 让时钟暂停
	f.Drain(&testEnv{})
	tick(t, f, m)
	if st := mustInspect(t, f); st.DigitizerCount != 0 {
		t.Fatalf("DigitizerCount after tick = %d, want 0", st.DigitizerCount)
	}
	idle(t, f, m)

	// 时钟暂停：指针事件不计数
	f.ReceiveHIDEvent(pointer(core.KindPointerMove, 4))
	st = mustInspect(t, f)
	if st.DigitizerCount != 0 {
		t.Fatalf("DigitizerCount while paused = %d, want 0", st.DigitizerCount)
	}
	if !st.DidDispatchMove {
		t.Error("DidDispatchMove should be set after a move passed the filter")
	}
}

// TestFetcherTickTable 帧回调决策表
func TestFetcherTickTable(t *testing.T) {
	t.Run("digitizer+flag", func(t *testing.T) {
		log := &signalLog{}
		f, m := newManual(t, Options{OnSignal: log.hook})
		f.ReceiveHIDEvent(pointer(core.KindPointerMove, 1))
		mustFlush(t, f)
		f.SetShouldSignalOnTick(true)

		tick(t, f, m)
		if log.count(core.ReasonTick) != 1 {
			t.Fatalf("tick signals = %d, want 1", log.count(core.ReasonTick))
		}
		if f.ShouldSignalOnTick() {
			t.Error("signal should clear ShouldSignalOnTick")
		}
	})

	t.Run("digitizer-no-flag", func(t *testing.T) {
		log := &signalLog{}
		f, m := newManual(t, Options{OnSignal: log.hook})
		f.ReceiveHIDEvent(pointer(core.KindPointerMove, 1))
		mustFlush(t, f)

		tick(t, f, m)
		if log.count(core.ReasonTick) != 0 {
			t.Fatalf("tick signals = %d, want 0", log.count(core.ReasonTick))
		}
		if f.ClockPaused() {
			t.Error("clock must not pause while digitizer events arrived")
		}
	})

	t.Run("backlog", func(t *testing.T) {
		log := &signalLog{}
		f, m := newManual(t, Options{OnSignal: log.hook})
		// 非指针事件：计数为 0，但 filtered 有积压
		f.ReceiveHIDEvent(pointer(core.KindKeyDown, 1))
		f.ReceiveHIDEvent(pointer(core.KindKeyUp, 2))
		mustFlush(t, f)

		tick(t, f, m)
		if log.count(core.ReasonTick) != 1 {
			t.Fatalf("tick signals = %d, want 1", log.count(core.ReasonTick))
		}
		log.mu.Lock()
		last := log.counts[len(log.counts)-1]
		log.mu.Unlock()
		if last != 2 {
			t.Errorf("filtered count = %d, want 2", last)
		}
	})

	t.Run("idle", func(t *testing.T) {
		log := &signalLog{}
		sink := &recordingSink{}
		f, m := newManual(t, Options{OnSignal: log.hook, Sink: sink})
		before := sink.calls.Load()

		idle(t, f, m)
		if sink.calls.Load() != before {
			t.Errorf("idle tick notified sink")
		}
		// 暂停后不再出帧，直到新输入
		if m.Fire() {
			t.Error("paused clock fired")
		}
		f.ReceiveHIDEvent(pointer(core.KindText, 1))
		mustFlush(t, f)
		if f.ClockPaused() {
			t.Error("new input should resume the clock")
		}
	})
}

// TestFetcherCounterReset 任一分支执行后计数都归零
func TestFetcherCounterReset(t *testing.T) {
	for _, flag := range []bool{false, true} {
		f, m := newManual(t, Options{})
		for i := 0; i < 5; i++ {
			f.ReceiveHIDEvent(pointer(core.KindPointerMove, time.Duration(i)))
		}
		mustFlush(t, f)
		f.SetShouldSignalOnTick(flag)
		tick(t, f, m)

		st := mustInspect(t, f)
		if st.DigitizerCount != 0 || st.DidDispatchMove {
			t.Fatalf("flag=%v: state after tick = %+v", flag, st)
		}
	}
}

// TestFetcherSinkReplace 替换 sink：旧 sink 不再收到通知，新 sink 立即收到 sink-changed
func TestFetcherSinkReplace(t *testing.T) {
	log := &signalLog{}
	f, _ := newManual(t, Options{OnSignal: log.hook})

	a := &recordingSink{}
	ha := f.SetSink(a)
	if ha == 0 || a.calls.Load() != 1 {
		t.Fatalf("sink A: handle=%d calls=%d", ha, a.calls.Load())
	}

	b := &recordingSink{}
	hb := f.SetSink(b)
	if hb == ha {
		t.Fatal("handles must differ")
	}
	if b.calls.Load() != 1 {
		t.Fatalf("sink B calls = %d, want 1", b.calls.Load())
	}
	if log.count(core.ReasonSinkChanged) != 2 {
		t.Errorf("sink-changed signals = %d, want 2", log.count(core.ReasonSinkChanged))
	}

	f.ReceiveHIDEvent(pointer(core.KindKeyDown, 1))
	mustFlush(t, f)
	if a.calls.Load() != 1 {
		t.Errorf("sink A notified after replacement: %d", a.calls.Load())
	}
	if b.calls.Load() < 2 {
		t.Errorf("sink B calls = %d, want >= 2", b.calls.Load())
	}

	// 过期句柄注销为 no-op
	f.RemoveSink(ha)
	if f.SinkHandle() != hb {
		t.Fatal("stale handle removed live sink")
	}
	f.RemoveSink(hb)
	if f.SinkHandle() != 0 {
		t.Fatal("RemoveSink did not unregister")
	}
	calls := b.calls.Load()
	f.ReceiveHIDEvent(pointer(core.KindKeyDown, 2))
	mustFlush(t, f)
	if b.calls.Load() != calls {
		t.Error("removed sink still notified")
	}
}

// TestFetcherFilterChain 过滤链按注册顺序执行，可丢弃与改写
func TestFetcherFilterChain(t *testing.T) {
	var order []string
	dropKeys := core.Each(func(evt core.RawEvent) (core.RawEvent, bool) {
		order = append(order, "drop")
		return evt, evt.Kind != core.KindKeyDown
	})
	tag := core.Each(func(evt core.RawEvent) (core.RawEvent, bool) {
		order = append(order, "tag")
		evt.Source = "tagged"
		return evt, true
	})
	f, _ := newManual(t, Options{Filters: []core.Filter{dropKeys, tag}})

	f.ReceiveHIDEvent(pointer(core.KindKeyDown, 1))
	f.ReceiveHIDEvent(pointer(core.KindPointerDown, 2))
	mustFlush(t, f)

	env := &testEnv{}
	f.Drain(env)
	if len(env.events) != 1 || env.events[0].Kind != core.KindPointerDown || env.events[0].Source != "tagged" {
		t.Fatalf("events = %+v", env.events)
	}
	if len(order) == 0 || order[0] != "drop" {
		t.Errorf("filter order = %v", order)
	}
	if st := f.Stats(); st.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", st.Dropped)
	}
}

// TestFetcherWorkerOnlyPanics 非 loop 线程调用 ingest 触发前置条件 panic
func TestFetcherWorkerOnlyPanics(t *testing.T) {
	f, _ := newManual(t, Options{})
	defer func() {
		if recover() == nil {
			t.Fatal("ingest off loop should panic")
		}
	}()
	f.ingest(pointer(core.KindPointerDown, 1))
}

// TestFetcherRequireMainThread 非主线程构造触发前置条件 panic
func TestFetcherRequireMainThread(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if runloop.IsMainThread() {
		t.Skip("test goroutine is on the main thread")
	}
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, runloop.ErrWrongThread) {
			t.Fatalf("recovered %v, want ErrWrongThread", r)
		}
	}()
	_, _ = New(Options{RequireMainThread: true, Clock: clock.NewManual()})
}

// TestFetcherClose 关闭后投递被丢弃，Inspect 返回 ErrClosed
func TestFetcherClose(t *testing.T) {
	f, err := New(Options{Cadence: time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := f.Shutdown(waitTimeout); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	f.ReceiveHIDEvent(pointer(core.KindPointerDown, 1))
	if _, err := f.Inspect(waitTimeout); err != ErrClosed {
		t.Errorf("Inspect err = %v, want ErrClosed", err)
	}
	if h := f.SetSink(&recordingSink{}); h != 0 {
		t.Errorf("SetSink after Close = %d, want 0", h)
	}
	f.Close()
}

// TestFetcherInvalidCadence 负帧间隔
func TestFetcherInvalidCadence(t *testing.T) {
	if _, err := New(Options{Cadence: -1}); err != ErrInvalidCadence {
		t.Fatalf("err = %v, want ErrInvalidCadence", err)
	}
}

// TestFetcherRealClockIdles 真实 ticker：无输入时帧时钟最终暂停
func TestFetcherRealClockIdles(t *testing.T) {
	f, err := New(Options{Cadence: time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer f.Close()

	deadline := time.Now().Add(waitTimeout)
	for !f.ClockPaused() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !f.ClockPaused() {
		t.Fatal("clock did not idle")
	}

	// 积压存在时 tick 持续通知，直到被排出
	sink := &recordingSink{}
	f.SetSink(sink)
	f.ReceiveHIDEvent(pointer(core.KindKeyDown, 1))
	deadline = time.Now().Add(waitTimeout)
	for sink.calls.Load() < 4 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if sink.calls.Load() < 4 {
		t.Fatalf("sink calls = %d, want >= 4 (changed + filter + ticks)", sink.calls.Load())
	}
	f.Drain(&testEnv{})
	deadline = time.Now().Add(waitTimeout)
	for !f.ClockPaused() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !f.ClockPaused() {
		t.Fatal("clock did not idle after drain")
	}
}

// TestFetcherRealClockTicksDuringInput 真实 ticker：输入频率高于帧率时 tick 照常执行并清零计数
func TestFetcherRealClockTicksDuringInput(t *testing.T) {
	f, err := New(Options{Cadence: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer f.Close()

	start := f.Stats().Ticks
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ts := time.Duration(0)
		for {
			select {
			case <-stop:
				return
			default:
			}
			ts++
			f.ReceiveHIDEvent(pointer(core.KindPointerMove, ts))
			time.Sleep(2 * time.Millisecond)
		}
	}()

	time.Sleep(300 * time.Millisecond)
	during := f.Stats().Ticks - start
	close(stop)
	<-done
	mustFlush(t, f)

	if during < 5 {
		t.Fatalf("ticks during 300ms of 2ms input at 20ms cadence = %d, want >= 5", during)
	}

	// 输入停止后的下一帧清零计数（filtered 积压让时钟保持运行）
	after := f.Stats().Ticks
	deadline := time.Now().Add(waitTimeout)
	for f.Stats().Ticks <= after && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if st := mustInspect(t, f); st.DigitizerCount != 0 {
		t.Errorf("DigitizerCount after tick = %d, want 0", st.DigitizerCount)
	}
}

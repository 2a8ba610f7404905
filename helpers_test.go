package pump

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const waitTimeout = 2 * time.Second

// countingSink 记录通知次数
type countingSink struct {
	calls atomic.Int32
}

func (s *countingSink) EventsAvailable(Drainer) { s.calls.Add(1) }

// env 消费者环境
type env struct {
	mu         sync.Mutex
	events     []RawEvent
	commitTime time.Duration
}

func (e *env) EnqueueHIDEvent(evt RawEvent) {
	e.mu.Lock()
	e.events = append(e.events, evt)
	e.mu.Unlock()
}

func (e *env) SetCommitTimeForTouchEvents(t time.Duration) {
	e.mu.Lock()
	e.commitTime = t
	e.mu.Unlock()
}

func (e *env) snapshot() []RawEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]RawEvent(nil), e.events...)
}

func headless(t *testing.T, opts ...Opt) (*Fetcher, *ManualClock) {
	t.Helper()
	p, err := ForHeadless(opts...)
	if err != nil {
		t.Fatalf("ForHeadless failed: %v", err)
	}
	t.Cleanup(p.Close)
	m, ok := p.ClockBackend().(*ManualClock)
	if !ok {
		t.Fatalf("headless backend = %T, want *ManualClock", p.ClockBackend())
	}
	return p, m
}

func flush(t *testing.T, p *Fetcher) {
	t.Helper()
	if err := p.Flush(waitTimeout); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
}

package clock

import (
	"sync"
	"time"
)

// Ticker 基于 time.Ticker 的默认 backend
type Ticker struct {
	mu      sync.Mutex
	ticker  *time.Ticker
	cadence time.Duration
	quit    chan struct{}
	wg      sync.WaitGroup
	paused  bool
	stopped bool
}

// NewTicker 创建 time.Ticker backend
func NewTicker() *Ticker {
	return &Ticker{quit: make(chan struct{})}
}

// Start 启动后台 goroutine（重复调用为 no-op）
func (t *Ticker) Start(cadence time.Duration, fire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ticker != nil || t.stopped {
		return
	}
	t.cadence = cadence
	t.ticker = time.NewTicker(cadence)
	tk := t.ticker

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-t.quit:
				return
			case <-tk.C:
				fire()
			}
		}
	}()
}

// Pause 停止 ticker（Go 1.23+ Stop 后不会再投递旧值）
func (t *Ticker) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ticker == nil || t.paused || t.stopped {
		return
	}
	t.ticker.Stop()
	t.paused = true
}

// Resume 以原 cadence 重置 ticker
func (t *Ticker) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ticker == nil || !t.paused || t.stopped {
		return
	}
	t.ticker.Reset(t.cadence)
	t.paused = false
}

// Stop 停止并等待后台 goroutine 退出（幂等）
func (t *Ticker) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	if t.ticker != nil {
		t.ticker.Stop()
	}
	close(t.quit)
	t.mu.Unlock()
	t.wg.Wait()
}

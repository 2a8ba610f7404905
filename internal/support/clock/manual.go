package clock

import (
	"sync"
	"time"
)

// Manual 手动触发的 backend（测试与无头场景：由调用方决定何时出帧）
type Manual struct {
	mu      sync.Mutex
	fire    func()
	cadence time.Duration
	started bool
	paused  bool
	stopped bool
}

// NewManual 创建手动 backend
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Start(cadence time.Duration, fire func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	m.cadence = cadence
	m.fire = fire
}

func (m *Manual) Pause() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
}

func (m *Manual) Resume() {
	m.mu.Lock()
	m.paused = false
	m.mu.Unlock()
}

func (m *Manual) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

// Fire 触发一帧；未启动、已暂停或已停止时返回 false
func (m *Manual) Fire() bool {
	m.mu.Lock()
	if !m.started || m.paused || m.stopped {
		m.mu.Unlock()
		return false
	}
	fire := m.fire
	m.mu.Unlock()
	fire()
	return true
}

// Paused backend 是否处于暂停
func (m *Manual) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

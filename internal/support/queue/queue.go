// Package queue 提供线程安全的 append / drain-all 有序队列。
//
// 设计：
//   - 生产者 Append/AppendBatch 追加到尾部，保持插入顺序
//   - 消费者 DrainAll 原子交换整段缓冲区（双缓冲，热路径零分配）
//   - Len 通过 atomic 读取，不持锁
//
// 追加与排空互斥，任何一方都不会观察到中间状态。
package queue

import (
	"sync"
	"sync/atomic"
)

// Queue 有序 append / drain-all 队列
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	spare []T // DrainAll 交换出去的旧缓冲区，Recycle 后复用
	size  atomic.Int64
}

// New 创建队列，capHint 为初始容量提示（<=0 时为 64）
func New[T any](capHint int) *Queue[T] {
	if capHint <= 0 {
		capHint = 64
	}
	return &Queue[T]{items: make([]T, 0, capHint)}
}

// Append 追加单个元素
func (q *Queue[T]) Append(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.size.Store(int64(len(q.items)))
	q.mu.Unlock()
}

// AppendBatch 按顺序追加一批元素（整批原子可见）
func (q *Queue[T]) AppendBatch(vs []T) {
	if len(vs) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, vs...)
	q.size.Store(int64(len(q.items)))
	q.mu.Unlock()
}

// DrainAll 取走全部元素，返回切片归调用方所有
// 调用方用完后可通过 Recycle 归还底层数组。
func (q *Queue[T]) DrainAll() []T {
	q.mu.Lock()
	out := q.items
	if len(out) == 0 {
		q.mu.Unlock()
		return nil
	}
	q.items = q.spare[:0]
	q.spare = nil
	q.size.Store(0)
	q.mu.Unlock()
	return out
}

// Recycle 归还 DrainAll 返回的切片（清零帮助 GC）
func (q *Queue[T]) Recycle(buf []T) {
	if cap(buf) == 0 {
		return
	}
	var zero T
	for i := range buf {
		buf[i] = zero
	}
	q.mu.Lock()
	if q.spare == nil {
		q.spare = buf[:0]
	}
	q.mu.Unlock()
}

// Len 当前元素数量
func (q *Queue[T]) Len() int {
	return int(q.size.Load())
}

// Empty 是否为空
func (q *Queue[T]) Empty() bool {
	return q.size.Load() == 0
}

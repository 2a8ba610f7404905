// Package util 事件泵内部的小工具
package util

import (
	"math/bits"
	"runtime"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"
)

const (
	minShards = 8
	maxShards = 256
)

// Counter 写多读少的分片计数器
// 每个输入线程按自身栈地址落到一个分片，Load 时汇总；读到的是近似快照。
type Counter struct {
	shards []shard
	mask   uintptr
}

type shard struct {
	n atomic.Int64
	_ cpu.CacheLinePad
}

// NewCounter 分片数取 2*GOMAXPROCS 向上到 2 的幂，限制在 [8, 256]
func NewCounter() *Counter {
	n := CeilPow2(2 * runtime.GOMAXPROCS(0))
	n = max(minShards, min(n, maxShards))
	return &Counter{shards: make([]shard, n), mask: uintptr(n - 1)}
}

// Add 累加到调用方所在分片
func (c *Counter) Add(delta int64) {
	var anchor byte
	// goroutine 栈至少 8KB，右移 13 位后不同 goroutine 大概率分到不同分片
	i := (uintptr(unsafe.Pointer(&anchor)) >> 13) & c.mask
	c.shards[i].n.Add(delta)
}

// Inc 加一
func (c *Counter) Inc() { c.Add(1) }

// Load 汇总所有分片
func (c *Counter) Load() int64 {
	var total int64
	for i := range c.shards {
		total += c.shards[i].n.Load()
	}
	return total
}

// CeilPow2 不小于 n 的最小 2 的幂；n <= 1 时返回 1
func CeilPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

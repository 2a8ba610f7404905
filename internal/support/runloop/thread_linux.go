//go:build linux

package runloop

import "golang.org/x/sys/unix"

// threadID 当前 OS 线程 ID（loop goroutine 已 LockOSThread，线程内唯一）
func threadID() int64 {
	return int64(unix.Gettid())
}

// IsMainThread 当前调用方是否运行在进程主线程上（tid == pid）
func IsMainThread() bool {
	return unix.Gettid() == unix.Getpid()
}

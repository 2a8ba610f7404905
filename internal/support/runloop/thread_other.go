//go:build !linux

package runloop

import (
	"bytes"
	"runtime"
	"strconv"
)

// threadID 非 Linux 平台退化为 goroutine ID（loop 身份判定等价）
func threadID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// "goroutine 123 [running]:..."
	b := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return -1
	}
	return id
}

// IsMainThread 无可移植的主线程判定，始终返回 true（前置条件不做检查）
func IsMainThread() bool {
	return true
}

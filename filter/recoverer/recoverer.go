// Package recoverer 提供 panic 恢复过滤器。
//
// 捕获过滤器内的 panic，本批事件原样放行，防止单个过滤器的缺陷丢掉整批输入。
//
//	pump.Option(p, pump.WithFilters(recoverer.New(myFilter, nil)))
package recoverer

import (
	"fmt"

	"github.com/uniyakcom/pump/core"
)

// PanicError 包装 panic 恢复值
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("filter panic: %v", e.Value)
}

// New 包装过滤器；onPanic 可选，收到 *PanicError
func New(f core.Filter, onPanic func(err error)) core.Filter {
	return func(events []core.RawEvent) (out []core.RawEvent) {
		// 过滤器可能原地改写入参，先保留一份
		saved := append([]core.RawEvent(nil), events...)
		defer func() {
			if r := recover(); r != nil {
				out = saved
				if onPanic != nil {
					onPanic(&PanicError{Value: r})
				}
			}
		}()
		return f(events)
	}
}

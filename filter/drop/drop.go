// Package drop 按事件类别丢弃
package drop

import (
	"time"

	"github.com/uniyakcom/pump/core"
)

// Kinds 丢弃指定类别的事件
func Kinds(kinds ...core.Kind) core.Filter {
	var set [256]bool
	for _, k := range kinds {
		set[k] = true
	}
	return core.Each(func(evt core.RawEvent) (core.RawEvent, bool) {
		return evt, !set[evt.Kind]
	})
}

// Before 丢弃时间戳早于 cutoff() 的事件（例如窗口失焦前残留的输入）
func Before(cutoff func() time.Duration) core.Filter {
	return core.Each(func(evt core.RawEvent) (core.RawEvent, bool) {
		return evt, evt.Timestamp >= cutoff()
	})
}

// Package coalesce 合并连续的 pointer-move 事件。
//
// 同一来源的连续 move 只保留最后一个（时间戳与负载取最新），
// down/up 等重要事件作为边界，永不被合并或重排。
package coalesce

import "github.com/uniyakcom/pump/core"

// New 创建 move 合并过滤器
func New() core.Filter {
	return func(events []core.RawEvent) []core.RawEvent {
		out := events[:0]
		for _, evt := range events {
			if evt.Kind == core.KindPointerMove && len(out) > 0 {
				last := &out[len(out)-1]
				if last.Kind == core.KindPointerMove && last.Source == evt.Source {
					*last = evt
					continue
				}
			}
			out = append(out, evt)
		}
		return out
	}
}

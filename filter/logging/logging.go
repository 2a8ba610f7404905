// Package logging 提供过滤链日志过滤器。
//
// 记录每轮 hand-off 的输入/输出数量与耗时，事件本身原样放行。
//
//	logging.New(slog.Default())
package logging

import (
	"log/slog"
	"time"

	"github.com/uniyakcom/pump/core"
)

// New 创建透传日志过滤器（Debug 级别）。
func New(logger *slog.Logger) core.Filter {
	if logger == nil {
		logger = slog.Default()
	}
	return func(events []core.RawEvent) []core.RawEvent {
		if len(events) > 0 {
			logger.Debug("filter pass",
				"events", len(events),
				"first", events[0].Timestamp,
				"last", events[len(events)-1].Timestamp,
			)
		}
		return events
	}
}

// Wrap 包装过滤器，记录丢弃数量与耗时
func Wrap(name string, f core.Filter, logger *slog.Logger) core.Filter {
	if logger == nil {
		logger = slog.Default()
	}
	return func(events []core.RawEvent) []core.RawEvent {
		in := len(events)
		start := time.Now()
		out := f(events)
		logger.Debug("filter applied",
			"filter", name,
			"in", in,
			"out", len(out),
			"duration", time.Since(start),
		)
		return out
	}
}

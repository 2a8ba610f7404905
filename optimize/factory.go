// Package optimize factory工厂
package optimize

import (
	"log/slog"
	"time"

	"github.com/uniyakcom/pump/core"
	"github.com/uniyakcom/pump/filter/coalesce"
	"github.com/uniyakcom/pump/filter/recoverer"
	"github.com/uniyakcom/pump/internal/impl/fetcher"
	"github.com/uniyakcom/pump/internal/support/clock"
)

// Build 根据推荐配置构建事件泵；base 中调用方显式设置的字段优先
func Build(advised *Advised, base fetcher.Options) (*fetcher.Fetcher, error) {
	opts := base

	if opts.Name == "" {
		opts.Name = fetcher.DefaultName
	}
	if v, ok := advised.Params["cadence"]; ok && opts.Cadence == 0 {
		opts.Cadence = v.(time.Duration)
	}
	if v, ok := advised.Params["queueHint"]; ok && opts.QueueHint == 0 {
		opts.QueueHint = v.(int)
	}
	if v, ok := advised.Params["signalOnTick"]; ok && v.(bool) {
		opts.ShouldSignalOnTick = true
	}
	if v, ok := advised.Params["mainThread"]; ok && v.(bool) {
		opts.RequireMainThread = true
	}

	if opts.Clock == nil && advised.Clock == "manual" {
		opts.Clock = clock.NewManual()
	}

	opts.Filters = buildChain(advised, base)
	return fetcher.New(opts)
}

// buildChain 自动过滤器在前，用户过滤器在后；recover 时逐个包装用户过滤器
func buildChain(advised *Advised, base fetcher.Options) []core.Filter {
	filters := make([]core.Filter, 0, len(base.Filters)+1)
	if v, ok := advised.Params["coalesce"]; ok && v.(bool) {
		filters = append(filters, coalesce.New())
	}

	guard := false
	if v, ok := advised.Params["recover"]; ok && v.(bool) {
		guard = true
	}
	logger := base.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, f := range base.Filters {
		if f == nil {
			continue
		}
		if guard {
			f = recoverer.New(f, func(err error) {
				logger.Warn("filter panic recovered", "error", err)
			})
		}
		filters = append(filters, f)
	}
	return filters
}

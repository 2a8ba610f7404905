package core

// Filter 过滤变换：接收一批事件，返回保留/改写后的事件（保持相对顺序）
// 返回切片可以复用入参底层数组。
type Filter func(events []RawEvent) []RawEvent

// Each 将逐事件变换适配为 Filter；keep=false 时丢弃该事件
func Each(fn func(evt RawEvent) (RawEvent, bool)) Filter {
	return func(events []RawEvent) []RawEvent {
		out := events[:0]
		for _, evt := range events {
			if e, keep := fn(evt); keep {
				out = append(out, e)
			}
		}
		return out
	}
}

// Chain 有序过滤链（构造期注册，之后只读）
type Chain struct {
	filters []Filter
}

// NewChain 创建过滤链，nil 过滤器被忽略
func NewChain(filters ...Filter) *Chain {
	c := &Chain{filters: make([]Filter, 0, len(filters))}
	for _, f := range filters {
		if f != nil {
			c.filters = append(c.filters, f)
		}
	}
	return c
}

// Len 过滤器数量
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.filters)
}

// Apply 按注册顺序执行全部过滤器；空链为恒等变换
func (c *Chain) Apply(events []RawEvent) []RawEvent {
	if c == nil {
		return events
	}
	current := events
	for _, f := range c.filters {
		if len(current) == 0 {
			break
		}
		current = f(current)
	}
	return current
}

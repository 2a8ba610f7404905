package marshal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/uniyakcom/pump/core"
)

// maxLine 单行事件最大长度
const maxLine = 1 << 20

// Recorder 将通过过滤链的事件逐行写出（JSON Lines），事件原样放行
//
//	rec := marshal.NewRecorder(f, nil)
//	p, _ := pump.ForDisplay(pump.WithFilters(rec.Filter()))
//	defer rec.Flush()
type Recorder struct {
	mu    sync.Mutex
	w     *bufio.Writer
	codec Codec
	n     int64
	err   error
}

// NewRecorder 创建录制器；codec 为 nil 时使用 JSONCodec
func NewRecorder(w io.Writer, codec Codec) *Recorder {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &Recorder{w: bufio.NewWriter(w), codec: codec}
}

// Filter 作为过滤器接入过滤链（位置决定录制的是过滤前还是过滤后的事件）
func (r *Recorder) Filter() core.Filter {
	return func(events []core.RawEvent) []core.RawEvent {
		r.mu.Lock()
		defer r.mu.Unlock()
		for _, evt := range events {
			r.write(evt)
		}
		return events
	}
}

// Record 写出单个事件
func (r *Recorder) Record(evt core.RawEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.write(evt)
	return r.err
}

func (r *Recorder) write(evt core.RawEvent) {
	if r.err != nil {
		return
	}
	data, err := r.codec.Marshal(evt)
	if err != nil {
		r.err = fmt.Errorf("marshal: encode event: %w", err)
		return
	}
	if _, err := r.w.Write(data); err != nil {
		r.err = err
		return
	}
	if err := r.w.WriteByte('\n'); err != nil {
		r.err = err
		return
	}
	r.n++
}

// Count 已写出的事件数
func (r *Recorder) Count() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Flush 刷新缓冲，返回录制过程中的第一个错误
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	return r.w.Flush()
}

// Replay 逐行读取事件并交给 receive（通常是 Fetcher.ReceiveHIDEvent），返回回放数量
// 空行被跳过；ctx 取消时提前返回。
func Replay(ctx context.Context, r io.Reader, codec Codec, receive func(core.RawEvent)) (int, error) {
	if codec == nil {
		codec = JSONCodec{}
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLine)

	n, line := 0, 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return n, err
		}
		data := sc.Bytes()
		if len(data) == 0 {
			continue
		}
		evt, err := codec.Unmarshal(data)
		if err != nil {
			return n, fmt.Errorf("marshal: line %d: %w", line, err)
		}
		receive(evt)
		n++
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("marshal: read: %w", err)
	}
	return n, nil
}

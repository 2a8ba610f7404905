// Command pumpdemo 合成输入源驱动事件泵，打印投递统计。
//
//	pumpdemo -scenario display -producers 4 -rate 2000 -duration 3s -log-level debug
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/uniyakcom/pump"
	"github.com/uniyakcom/pump/filter/drop"
	"github.com/uniyakcom/pump/filter/logging"
	"github.com/uniyakcom/pump/marshal"
	"github.com/uniyakcom/pump/sink"
)

type config struct {
	scenario  string
	producers int
	rate      int
	duration  time.Duration
	logLevel  string
	logFormat string
	record    string
	replay    string
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "pumpdemo:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var cfg config
	fs := flag.NewFlagSet("pumpdemo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.scenario, "scenario", "display", "Preset scenario (display, high-refresh, headless)")
	fs.IntVar(&cfg.producers, "producers", 4, "Number of concurrent input producers")
	fs.IntVar(&cfg.rate, "rate", 1000, "Events per second per producer")
	fs.DurationVar(&cfg.duration, "duration", 3*time.Second, "How long to generate input")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.logFormat, "log-format", "console", "Log output format (json, console)")
	fs.StringVar(&cfg.record, "record", "", "Write filtered events to this file (JSON Lines)")
	fs.StringVar(&cfg.replay, "replay", "", "Replay events from this file instead of synthetic producers")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if cfg.producers <= 0 || cfg.rate <= 0 {
		return fmt.Errorf("producers and rate must be positive")
	}

	logger, err := newLogger(cfg.logLevel, cfg.logFormat, stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.duration)
	defer cancel()

	consumer := &consumer{}
	async, err := sink.NewAsync(pump.SinkFunc(func(d pump.Drainer) { d.Drain(consumer) }), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := async.Release(time.Second); err != nil {
			logger.Warn("release async sink", "error", err)
		}
	}()

	filters := []pump.Filter{logging.Wrap("drop-window", drop.Kinds(pump.KindWindow), logger)}
	if cfg.record != "" {
		f, err := os.Create(cfg.record)
		if err != nil {
			return fmt.Errorf("create record file: %w", err)
		}
		defer f.Close()
		rec := marshal.NewRecorder(f, nil)
		defer func() {
			if err := rec.Flush(); err != nil {
				logger.Warn("flush recording", "error", err)
			}
			logger.Info("recording saved", "path", cfg.record, "events", rec.Count())
		}()
		filters = append(filters, rec.Filter())
	}

	p, err := pump.Scenario(cfg.scenario,
		pump.WithLogger(logger),
		pump.WithSink(async),
		pump.WithFilters(filters...),
	)
	if err != nil {
		return fmt.Errorf("create pump: %w", err)
	}
	defer p.Close()

	// 无头场景没有真实帧时钟，按 60Hz 手动出帧
	var manual *pump.ManualClock
	if m, ok := p.ClockBackend().(*pump.ManualClock); ok {
		manual = m
	}

	logger.Info("pump started", "scenario", cfg.scenario, "producers", cfg.producers, "rate", cfg.rate, "duration", cfg.duration)

	g, gctx := errgroup.WithContext(ctx)
	if cfg.replay != "" {
		g.Go(func() error { return replay(gctx, p, cfg.replay, logger) })
	} else {
		for id := 0; id < cfg.producers; id++ {
			g.Go(func() error { return produce(gctx, p, id, cfg.rate) })
		}
	}
	if manual != nil {
		g.Go(func() error {
			t := time.NewTicker(time.Second / 60)
			defer t.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-t.C:
					manual.Fire()
				}
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := p.Flush(time.Second); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	p.Drain(consumer)

	st := p.Stats()
	logger.Info("pump finished", "received", st.Received, "filtered", st.Filtered, "dropped", st.Dropped, "signals", st.Signals, "ticks", st.Ticks)
	fmt.Fprintf(stdout, "received=%d delivered=%d dropped=%d signals=%d ticks=%d sink_calls=%d coalesced=%d\n",
		st.Received, consumer.events.Load(), st.Dropped, st.Signals, st.Ticks, async.Delivered(), async.Coalesced())
	return nil
}

// produce 以固定速率投递随机事件，直到 ctx 结束
func produce(ctx context.Context, p *pump.Fetcher, id, rate int) error {
	t := time.NewTicker(time.Second / time.Duration(rate))
	defer t.Stop()
	start := time.Now()
	source := fmt.Sprintf("producer-%d", id)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			p.ReceiveHIDEvent(pump.RawEvent{
				Kind:      randomKind(),
				Source:    source,
				Timestamp: time.Since(start),
			})
		}
	}
}

// replay 回放录制文件
func replay(ctx context.Context, p *pump.Fetcher, path string, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()
	n, err := marshal.Replay(ctx, f, nil, p.ReceiveHIDEvent)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	logger.Info("replay finished", "path", path, "events", n)
	return nil
}

func randomKind() pump.Kind {
	switch n := rand.IntN(100); {
	case n < 70:
		return pump.KindPointerMove
	case n < 80:
		return pump.KindPointerDown
	case n < 90:
		return pump.KindPointerUp
	case n < 95:
		return pump.KindKeyDown
	case n < 98:
		return pump.KindScroll
	default:
		return pump.KindWindow
	}
}

// consumer 模拟 UI 环境
type consumer struct {
	events     atomic.Int64
	commitTime atomic.Int64
}

func (c *consumer) EnqueueHIDEvent(pump.RawEvent) { c.events.Add(1) }

func (c *consumer) SetCommitTimeForTouchEvents(t time.Duration) { c.commitTime.Store(int64(t)) }

func newLogger(level, format string, out io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("unsupported log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return slog.New(slog.NewJSONHandler(out, opts)), nil
	case "console", "text":
		return slog.New(slog.NewTextHandler(out, opts)), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
}

// Package local 提供基于 goroutine 的运行时.
//
// Spawn 对应 go 语句，Sleep 基于 time.Timer 且可被 ctx 取消，
// Channel 默认创建进程内竞争消费通道.
package local

import (
	"context"
	"sync"
	"time"

	"github.com/Tsukikage7/nebulas/recovery"
	"github.com/Tsukikage7/nebulas/rt"
)

// Runtime goroutine 运行时.
type Runtime struct {
	opts    *options
	factory rt.ChannelFactory
	wg      sync.WaitGroup
}

var _ rt.Runtime = (*Runtime)(nil)

// New 创建运行时.
func New(opts ...Option) *Runtime {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Runtime{
		opts:    o,
		factory: o.channelFactory(),
	}
}

// Spawn 在新 goroutine 中执行 fn.
//
// fn 中的 panic 被捕获并记录，不会传播到调用方.
func (r *Runtime) Spawn(fn func()) {
	r.wg.Add(1)
	r.gauge(1)

	go func() {
		defer func() {
			r.gauge(-1)
			r.wg.Done()
		}()

		_ = recovery.Do(fn,
			recovery.WithLogger(r.opts.logger),
			recovery.WithComponent("Runtime"),
			recovery.WithHandler(func(any, []byte) {
				if r.opts.metrics != nil {
					r.opts.metrics.RecordPanic("runtime", "spawn")
				}
			}),
		)
	}()
}

// Channel 创建控制通道.
func (r *Runtime) Channel() (rt.Sender, rt.Receiver, error) {
	tx, rx, err := r.factory()
	if err != nil {
		r.logErrorf("创建控制通道失败: %v", err)
		return nil, nil, err
	}
	return tx, rx, nil
}

// Sleep 挂起 d 时长，ctx 结束时提前返回 ctx 的错误.
func (r *Runtime) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait 等待所有派生任务结束，ctx 结束时返回 ctx 的错误.
func (r *Runtime) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) gauge(delta float64) {
	if r.opts.metrics != nil {
		r.opts.metrics.AddGauge("runtime_tasks_running", delta, nil)
	}
}

func (r *Runtime) logErrorf(format string, args ...any) {
	if log := r.opts.logger; log != nil {
		log.Errorf("[Runtime] "+format, args...)
	}
}

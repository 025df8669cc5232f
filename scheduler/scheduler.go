// Package scheduler 提供与运行时解耦的异步任务调度.
//
// 调度器持有一对控制通道，每次调度派生一个控制循环，
// 循环在计时器与控制事件之间竞争：
//   - Via: 延迟 d 后执行一次
//   - Every: 每隔 period 执行一次，直到收到 Shutdown
//   - On: 日历时间到达 deadline 后执行一次
//   - Cron: 按 Cron 表达式重复执行，直到收到 Shutdown
//
// 通过 SendEvent 发送 Shutdown 终止任务，或发送 Freeze 让任务在下一次动作前额外等待.
// 已开始执行的任务不会被中断.
//
// 示例:
//
//	s, err := scheduler.New(local.New(), scheduler.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer s.Shutdown(context.Background())
//
//	_ = s.Every("report", time.Minute, func(ctx context.Context) error {
//	    return report.Flush(ctx)
//	})
//	_ = s.SendEvent(ctx, event.Freeze("report", 30*time.Second))
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Tsukikage7/nebulas/calendar"
	"github.com/Tsukikage7/nebulas/event"
	"github.com/Tsukikage7/nebulas/logger"
	"github.com/Tsukikage7/nebulas/rt"
)

// Work 调度执行的任务.
//
// Every 与 Cron 每次触发都重新调用同一个 Work.
type Work func(ctx context.Context) error

// Kind 调度方式.
type Kind string

const (
	KindVia   Kind = "via"
	KindEvery Kind = "every"
	KindOn    Kind = "on"
	KindCron  Kind = "cron"
)

// Scheduler 调度器.
//
// 调度器不登记已派生的控制循环，只能通过控制通道影响它们.
// 所有方法可并发调用.
type Scheduler struct {
	rt      rt.Runtime
	opts    *options
	tx      rt.Sender
	rx      rt.Receiver
	router  *router
	metrics *schedulerMetrics
	tracer  *schedulerTracer

	ctx        context.Context
	cancel     context.CancelFunc
	routerDone chan struct{}

	mu     sync.Mutex
	closed bool
	loops  sync.WaitGroup
}

// New 创建调度器，并通过运行时创建控制通道.
func New(r rt.Runtime, opts ...Option) (*Scheduler, error) {
	if r == nil {
		return nil, ErrNilRuntime
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	tx, rx, err := r.Channel()
	if err != nil {
		return nil, fmt.Errorf("scheduler: create control channel: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		rt:         r,
		opts:       o,
		tx:         tx,
		rx:         rx,
		metrics:    newSchedulerMetrics(o.metrics),
		tracer:     newSchedulerTracer(o.tracer),
		ctx:        ctx,
		cancel:     cancel,
		routerDone: make(chan struct{}),
	}

	if o.delivery == DeliveryFanout {
		s.router = newRouter(rx, r, o.mailboxSize)
		s.router.discard = s.discardEvent
		s.router.full = func(ev event.Event) {
			s.metrics.RecordDiscard()
			s.logWarnf("信箱已满，丢弃事件 [event:%s]", ev)
		}
		s.router.failed = func(err error) {
			s.logWarnf("路由接收控制事件失败 [error:%v]", err)
		}
		r.Spawn(func() {
			defer close(s.routerDone)
			s.router.run(ctx)
		})
	} else {
		close(s.routerDone)
	}

	s.logDebugf("调度器已创建 [delivery:%s]", o.delivery)
	return s, nil
}

// MustNew 创建调度器，失败时 panic.
func MustNew(r rt.Runtime, opts ...Option) *Scheduler {
	s, err := New(r, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Via 延迟 d 后执行一次 work.
//
// 计时结束前收到 Shutdown 则不执行；收到 Freeze 则在计时结束后额外等待.
func (s *Scheduler) Via(id event.TaskID, d time.Duration, work Work) error {
	if work == nil {
		return ErrWorkNil
	}

	return s.spawn(id, KindVia, func(ctx context.Context, l *loop) error {
		if err := l.wait(ctx, d); err != nil {
			return err
		}
		l.execute(ctx, work)
		return nil
	})
}

// Every 每隔 period 执行一次 work，直到收到 Shutdown.
//
// 下一个周期在本次执行完成后开始计时.
func (s *Scheduler) Every(id event.TaskID, period time.Duration, work Work) error {
	if work == nil {
		return ErrWorkNil
	}
	if period <= 0 {
		return ErrInvalidPeriod
	}

	return s.spawn(id, KindEvery, func(ctx context.Context, l *loop) error {
		for {
			if err := l.wait(ctx, period); err != nil {
				return err
			}
			l.execute(ctx, work)
		}
	})
}

// On 日历时间到达 deadline 后执行一次 work，需要通过 WithClock 配置时钟.
//
// deadline 已过时在第一次检查时执行.
func (s *Scheduler) On(id event.TaskID, deadline time.Time, work Work) error {
	if work == nil {
		return ErrWorkNil
	}
	if s.opts.clock == nil {
		return ErrNoCalendar
	}

	return s.spawn(id, KindOn, func(ctx context.Context, l *loop) error {
		if err := l.until(ctx, deadline); err != nil {
			return err
		}
		l.execute(ctx, work)
		return nil
	})
}

// Cron 按 Cron 表达式重复执行 work，直到收到 Shutdown，需要通过 WithClock 配置时钟.
//
// 支持秒级表达式与描述符：
//
//	_ = s.Cron("cleanup", "0 */5 * * * *", cleanup)
//	_ = s.Cron("digest", "@daily", digest)
func (s *Scheduler) Cron(id event.TaskID, expr string, work Work) error {
	if work == nil {
		return ErrWorkNil
	}
	if s.opts.clock == nil {
		return ErrNoCalendar
	}

	sched, err := calendar.ParseCron(expr,
		calendar.WithSeconds(s.opts.withSeconds),
		calendar.WithLocation(s.opts.location),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrScheduleInvalid, err)
	}

	clock := s.opts.clock
	return s.spawn(id, KindCron, func(ctx context.Context, l *loop) error {
		for {
			next := sched.Next(clock.Now())
			if next.IsZero() {
				return nil
			}
			if err := l.until(ctx, next); err != nil {
				return err
			}
			l.execute(ctx, work)
		}
	})
}

// SendEvent 发送控制事件.
//
// 通道错误原样返回.竞争消费模式下，同标识的多个任务中只有一个会收到该事件.
func (s *Scheduler) SendEvent(ctx context.Context, ev event.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSchedulerClosed
	}

	if err := s.tx.Send(ctx, ev); err != nil {
		s.logWarnf("发送控制事件失败 [event:%s] [error:%v]", ev, err)
		return err
	}

	s.metrics.RecordSent(ev.Kind)
	s.logDebugf("控制事件已发送 [event:%s]", ev)
	return nil
}

// Shutdown 关闭调度器.
//
// 等待中的控制循环立即结束，正在执行的任务执行完毕后结束，
// 之后关闭控制通道.ctx 结束时不再等待并返回 ctx 的错误.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	s.rt.Spawn(func() {
		s.loops.Wait()
		<-s.routerDone
		close(done)
	})

	var err error
	select {
	case <-done:
		s.logDebug("调度器优雅关闭完成")
	case <-ctx.Done():
		s.logWarn("等待控制循环结束超时")
		err = ctx.Err()
	}

	_ = s.tx.Close()
	_ = s.rx.Close()
	return err
}

// Closed 检查调度器是否已关闭.
func (s *Scheduler) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// spawn 派生控制循环.
func (s *Scheduler) spawn(id event.TaskID, kind Kind, body func(ctx context.Context, l *loop) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	s.loops.Add(1)
	box := s.newInbox(id)
	s.mu.Unlock()

	l := &loop{s: s, id: id, kind: kind, inbox: box}
	s.metrics.RecordSpawn(kind)
	s.logDebugf("控制循环已启动 [task:%s] [kind:%s]", id, kind)

	s.rt.Spawn(func() {
		defer func() {
			box.Close()
			s.metrics.RecordExit()
			s.loops.Done()
		}()

		ctx := logger.ContextWithTaskID(s.ctx, string(id))
		err := body(ctx, l)

		switch {
		case err == nil:
			s.logDebugf("控制循环结束 [task:%s]", id)
		case errors.Is(err, errStopped):
			s.logDebugf("任务已终止 [task:%s]", id)
			s.opts.hooks.runCancelHooks(ctx, &TaskContext{ID: id, Kind: kind, Run: l.runs})
		default:
			s.logDebugf("调度器关闭，任务取消 [task:%s]", id)
			s.opts.hooks.runCancelHooks(context.WithoutCancel(ctx), &TaskContext{ID: id, Kind: kind, Run: l.runs})
		}
	})
	return nil
}

// newInbox 按投递模式创建控制循环的信箱，调用方持有 s.mu.
func (s *Scheduler) newInbox(id event.TaskID) inbox {
	if s.router != nil {
		return s.router.register(id)
	}
	return &competingInbox{id: id, rx: s.rx.Clone(), discard: s.discardEvent}
}

// discardEvent 记录被丢弃的事件.
func (s *Scheduler) discardEvent(ev event.Event) {
	s.metrics.RecordDiscard()
	s.logDebugf("丢弃非本任务事件 [event:%s]", ev)
}

// 日志辅助方法.

func (s *Scheduler) logger() logger.Logger {
	return s.opts.logger
}

func (s *Scheduler) logDebug(msg string) {
	if log := s.logger(); log != nil {
		log.Debug("[Scheduler] " + msg)
	}
}

func (s *Scheduler) logDebugf(format string, args ...any) {
	if log := s.logger(); log != nil {
		log.Debugf("[Scheduler] "+format, args...)
	}
}

func (s *Scheduler) logWarn(msg string) {
	if log := s.logger(); log != nil {
		log.Warn("[Scheduler] " + msg)
	}
}

func (s *Scheduler) logWarnf(format string, args ...any) {
	if log := s.logger(); log != nil {
		log.Warnf("[Scheduler] "+format, args...)
	}
}

func (s *Scheduler) logErrorCtx(ctx context.Context, format string, args ...any) {
	if log := s.logger(); log != nil {
		log.WithContext(ctx).Errorf("[Scheduler] "+format, args...)
	}
}

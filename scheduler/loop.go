package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/Tsukikage7/nebulas/event"
	"github.com/Tsukikage7/nebulas/rt"
)

// 任务执行结果.
const (
	runOK      = "ok"
	runError   = "error"
	runSkipped = "skipped"
)

// errStopped 控制循环收到 Shutdown 事件.
var errStopped = errors.New("scheduler: task stopped by event")

// loop 单个控制循环的状态，只在所属 goroutine 内访问.
type loop struct {
	s     *Scheduler
	id    event.TaskID
	kind  Kind
	inbox inbox
	deaf  bool
	runs  int
}

// wait 挂起 d 时长，期间响应发往本任务的事件.
//
// 每个 Freeze 在本次等待结束后追加 on 时长的等待，多次 Freeze 累加.
// 收到 Shutdown 返回 errStopped，调度器关闭返回 ctx 的错误.
func (l *loop) wait(ctx context.Context, d time.Duration) error {
	for {
		frozen, err := l.listen(ctx, d)
		if err != nil {
			return err
		}
		if frozen <= 0 {
			return nil
		}
		d = frozen
	}
}

// until 等待日历时间到达 deadline.
//
// 每次最多挂起一个日历刻度后重新读取时钟；Freeze 将 deadline 推后 on.
// deadline 已过时仍先检查一次事件，已到达的 Shutdown 可阻止执行.
func (l *loop) until(ctx context.Context, deadline time.Time) error {
	clock, tick := l.s.opts.clock, l.s.opts.calendarTick

	for {
		remaining := deadline.Sub(clock.Now())
		step := max(min(remaining, tick), 0)

		frozen, err := l.listen(ctx, step)
		if err != nil {
			return err
		}
		if frozen > 0 {
			deadline = deadline.Add(frozen)
			l.s.logDebugf("日历任务推迟 [task:%s] [deadline:%s]", l.id, deadline.Format(time.RFC3339))
			continue
		}
		if remaining <= 0 {
			return nil
		}
	}
}

// listen 先非阻塞取走已到达的事件，再让计时与接收竞争，计时先完成或收到 Shutdown 时返回.
//
// 返回期间累计的冻结时长.
func (l *loop) listen(ctx context.Context, d time.Duration) (time.Duration, error) {
	var frozen time.Duration

	for !l.deaf {
		ev, err := l.inbox.TryRecv(ctx)
		if err != nil {
			l.recvFailed(err)
			break
		}
		if l.handle(ev, &frozen) {
			return frozen, errStopped
		}
	}

	if err := ctx.Err(); err != nil {
		return frozen, err
	}
	if d <= 0 {
		return frozen, nil
	}

	raceCtx, cancel := context.WithCancelCause(ctx)
	timer := make(chan struct{})
	l.s.rt.Spawn(func() {
		defer close(timer)
		_ = l.s.rt.Sleep(raceCtx, d)
		cancel(errTimerFired)
	})
	defer func() {
		cancel(nil)
		<-timer
	}()

	for raceCtx.Err() == nil {
		if l.deaf {
			<-raceCtx.Done()
			break
		}

		ev, err := l.inbox.Recv(raceCtx)
		if err != nil {
			if raceCtx.Err() == nil && l.recvFailed(err) {
				_ = l.s.rt.Sleep(raceCtx, routerBackoff)
			}
			continue
		}
		if l.handle(ev, &frozen) {
			return frozen, errStopped
		}
	}

	if errors.Is(context.Cause(raceCtx), errTimerFired) {
		return frozen, nil
	}
	return frozen, ctx.Err()
}

// handle 处理发往本任务的事件，返回 true 表示终止.
func (l *loop) handle(ev event.Event, frozen *time.Duration) bool {
	l.s.metrics.RecordReceived(ev.Kind)

	switch ev.Kind {
	case event.KindShutdown:
		l.s.logDebugf("收到终止事件 [task:%s]", l.id)
		return true
	case event.KindFreeze:
		*frozen += ev.On
		l.s.logDebugf("收到冻结事件 [task:%s] [on:%v]", l.id, ev.On)
	}
	return false
}

// recvFailed 处理接收错误，返回 true 表示需要退避后重试.
//
// 控制平面关闭后循环不再接收事件，只保留计时.
func (l *loop) recvFailed(err error) bool {
	switch {
	case errors.Is(err, rt.ErrEmpty):
		return false
	case errors.Is(err, rt.ErrClosed):
		l.deaf = true
		l.s.logDebugf("控制通道已关闭，不再接收事件 [task:%s]", l.id)
		return false
	default:
		l.s.logWarnf("接收控制事件失败 [task:%s] [error:%v]", l.id, err)
		return true
	}
}

// execute 执行一次任务.
//
// 任务在脱离取消的 context 中运行，Shutdown 不会中断已开始的任务.
func (l *loop) execute(ctx context.Context, work Work) {
	s := l.s
	l.runs++

	tc := &TaskContext{
		ID:   l.id,
		Kind: l.kind,
		Run:  l.runs,
	}

	if limiter := s.opts.limiter; limiter != nil {
		if err := limiter.Acquire(ctx); err != nil {
			l.skip(context.WithoutCancel(ctx), tc, err)
			if ctx.Err() != nil {
				s.logDebugf("调度器关闭，放弃等待执行许可 [task:%s]", l.id)
			} else {
				s.logWarnf("获取执行许可失败 [task:%s] [error:%v]", l.id, err)
			}
			return
		}
		defer func() {
			if err := limiter.Release(context.WithoutCancel(ctx)); err != nil {
				s.logWarnf("释放执行许可失败 [task:%s] [error:%v]", l.id, err)
			}
		}()
	}

	ctx = context.WithoutCancel(ctx)
	tc.StartTime = time.Now()

	if err := s.opts.hooks.runBeforeHooks(ctx, tc); err != nil {
		l.skip(ctx, tc, err)
		s.logDebugf("前置钩子阻止任务执行 [task:%s] [error:%v]", l.id, err)
		return
	}

	s.logDebugf("开始执行任务 [task:%s] [kind:%s] [run:%d]", l.id, l.kind, l.runs)

	err := l.invoke(ctx, tc, work)
	tc.Duration = time.Since(tc.StartTime)
	tc.Error = err

	if err != nil {
		s.metrics.RecordRun(l.kind, runError, tc.Duration)
		s.logErrorCtx(ctx, "任务执行失败 [task:%s] [run:%d] [error:%v]", l.id, l.runs, err)
		s.opts.hooks.runErrorHooks(ctx, tc)
	} else {
		s.metrics.RecordRun(l.kind, runOK, tc.Duration)
		s.logDebugf("任务执行成功 [task:%s] [duration:%v]", l.id, tc.Duration)
	}
	s.opts.hooks.runAfterHooks(ctx, tc)
}

// skip 记录一次被跳过的执行.
func (l *loop) skip(ctx context.Context, tc *TaskContext, reason error) {
	tc.Skipped = true
	tc.SkipReason = reason.Error()
	l.s.metrics.RecordRun(l.kind, runSkipped, 0)
	l.s.opts.hooks.runSkipHooks(ctx, tc)
}

// invoke 在 span 内调用任务函数.
func (l *loop) invoke(ctx context.Context, tc *TaskContext, work Work) (err error) {
	ctx, span := l.s.tracer.startRunSpan(ctx, tc)
	defer func() {
		l.s.tracer.endRunSpan(span, err)
	}()

	if timeout := l.s.opts.workTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return work(ctx)
}

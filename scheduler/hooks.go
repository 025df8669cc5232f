package scheduler

import (
	"context"
	"time"

	"github.com/Tsukikage7/nebulas/event"
)

// TaskContext 任务执行上下文.
type TaskContext struct {
	// ID 任务标识.
	ID event.TaskID

	// Kind 调度方式.
	Kind Kind

	// Run 第几次执行（从 1 开始）.
	Run int

	// StartTime 开始执行时间.
	StartTime time.Time

	// Error 执行错误（仅在 AfterRun/OnError 中有值）.
	Error error

	// Duration 执行耗时（仅在 AfterRun/OnError 中有值）.
	Duration time.Duration

	// Skipped 是否被跳过.
	Skipped bool

	// SkipReason 跳过原因.
	SkipReason string
}

// BeforeRunHook 任务执行前回调.
// 返回 error 将跳过本次执行，周期任务继续调度.
type BeforeRunHook func(ctx context.Context, tc *TaskContext) error

// AfterRunHook 任务执行后回调.
type AfterRunHook func(ctx context.Context, tc *TaskContext)

// OnErrorHook 任务错误回调.
type OnErrorHook func(ctx context.Context, tc *TaskContext)

// OnSkipHook 任务跳过回调.
type OnSkipHook func(ctx context.Context, tc *TaskContext)

// OnCancelHook 控制循环因 Shutdown 事件或调度器关闭而结束时回调.
type OnCancelHook func(ctx context.Context, tc *TaskContext)

// Hooks 任务钩子集合.
type Hooks struct {
	// BeforeRun 任务执行前回调列表.
	BeforeRun []BeforeRunHook

	// AfterRun 任务执行后回调列表（无论成功失败都会调用）.
	AfterRun []AfterRunHook

	// OnError 任务错误回调列表.
	OnError []OnErrorHook

	// OnSkip 任务跳过回调列表.
	OnSkip []OnSkipHook

	// OnCancel 任务取消回调列表.
	OnCancel []OnCancelHook
}

func (h *Hooks) runBeforeHooks(ctx context.Context, tc *TaskContext) error {
	if h == nil {
		return nil
	}
	for _, hook := range h.BeforeRun {
		if err := hook(ctx, tc); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hooks) runAfterHooks(ctx context.Context, tc *TaskContext) {
	if h == nil {
		return
	}
	for _, hook := range h.AfterRun {
		hook(ctx, tc)
	}
}

func (h *Hooks) runErrorHooks(ctx context.Context, tc *TaskContext) {
	if h == nil {
		return
	}
	for _, hook := range h.OnError {
		hook(ctx, tc)
	}
}

func (h *Hooks) runSkipHooks(ctx context.Context, tc *TaskContext) {
	if h == nil {
		return
	}
	for _, hook := range h.OnSkip {
		hook(ctx, tc)
	}
}

func (h *Hooks) runCancelHooks(ctx context.Context, tc *TaskContext) {
	if h == nil {
		return
	}
	for _, hook := range h.OnCancel {
		hook(ctx, tc)
	}
}

// HooksBuilder 钩子构建器.
type HooksBuilder struct {
	hooks *Hooks
}

// NewHooks 创建钩子构建器.
//
//	hooks := scheduler.NewHooks().
//	    BeforeRun(checkQuota).
//	    OnError(alert).
//	    Build()
func NewHooks() *HooksBuilder {
	return &HooksBuilder{hooks: &Hooks{}}
}

// BeforeRun 添加前置钩子.
func (b *HooksBuilder) BeforeRun(hook BeforeRunHook) *HooksBuilder {
	b.hooks.BeforeRun = append(b.hooks.BeforeRun, hook)
	return b
}

// AfterRun 添加后置钩子.
func (b *HooksBuilder) AfterRun(hook AfterRunHook) *HooksBuilder {
	b.hooks.AfterRun = append(b.hooks.AfterRun, hook)
	return b
}

// OnError 添加错误钩子.
func (b *HooksBuilder) OnError(hook OnErrorHook) *HooksBuilder {
	b.hooks.OnError = append(b.hooks.OnError, hook)
	return b
}

// OnSkip 添加跳过钩子.
func (b *HooksBuilder) OnSkip(hook OnSkipHook) *HooksBuilder {
	b.hooks.OnSkip = append(b.hooks.OnSkip, hook)
	return b
}

// OnCancel 添加取消钩子.
func (b *HooksBuilder) OnCancel(hook OnCancelHook) *HooksBuilder {
	b.hooks.OnCancel = append(b.hooks.OnCancel, hook)
	return b
}

// Build 构建钩子.
func (b *HooksBuilder) Build() *Hooks {
	return b.hooks
}

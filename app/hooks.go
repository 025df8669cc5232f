package app

import (
	"context"
	"fmt"

	"github.com/Tsukikage7/nebulas/scheduler"
)

// Stage 生命周期阶段.
type Stage int

// 生命周期阶段，按执行顺序排列.
const (
	// StageBeforeStart 调度器已创建，指标服务尚未启动.
	StageBeforeStart Stage = iota
	// StageAfterStart 应用已启动，通常在这里注册任务.
	StageAfterStart
	// StageBeforeStop 调度器关闭前，仍可调度或发送事件.
	StageBeforeStop
	// StageAfterStop 调度器与资源均已释放.
	StageAfterStop
	stageCount
)

var stageNames = [stageCount]string{"before-start", "after-start", "before-stop", "after-stop"}

func (s Stage) String() string {
	if s < 0 || s >= stageCount {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Hook 生命周期钩子，通过 a 访问调度器等组件.
type Hook func(ctx context.Context, a *Application) error

// Tasks 将任务注册函数包装为钩子.
//
//	app.NewHooks().AfterStart(app.Tasks(func(s *scheduler.Scheduler) error {
//	    return s.Every("report", time.Minute, flush)
//	}))
func Tasks(register func(s *scheduler.Scheduler) error) Hook {
	return func(_ context.Context, a *Application) error {
		return register(a.Scheduler())
	}
}

// Hooks 按阶段分组的生命周期钩子.
type Hooks struct {
	stages [stageCount][]Hook
}

// NewHooks 创建空的钩子集合.
func NewHooks() *Hooks {
	return &Hooks{}
}

// On 在 stage 阶段追加钩子，未知阶段被忽略.
func (h *Hooks) On(stage Stage, hook Hook) *Hooks {
	if stage >= 0 && stage < stageCount && hook != nil {
		h.stages[stage] = append(h.stages[stage], hook)
	}
	return h
}

// BeforeStart 添加启动前钩子，返回错误时应用不启动.
func (h *Hooks) BeforeStart(hook Hook) *Hooks { return h.On(StageBeforeStart, hook) }

// AfterStart 添加启动后钩子.
func (h *Hooks) AfterStart(hook Hook) *Hooks { return h.On(StageAfterStart, hook) }

// BeforeStop 添加停止前钩子.
func (h *Hooks) BeforeStop(hook Hook) *Hooks { return h.On(StageBeforeStop, hook) }

// AfterStop 添加停止后钩子.
func (h *Hooks) AfterStop(hook Hook) *Hooks { return h.On(StageAfterStop, hook) }

// Len 返回 stage 阶段的钩子数量.
func (h *Hooks) Len(stage Stage) int {
	if h == nil || stage < 0 || stage >= stageCount {
		return 0
	}
	return len(h.stages[stage])
}

// run 依次执行 stage 阶段的钩子，遇到第一个错误即停止.
func (h *Hooks) run(ctx context.Context, stage Stage, a *Application) error {
	if h == nil {
		return nil
	}
	for i, hook := range h.stages[stage] {
		if err := hook(ctx, a); err != nil {
			return fmt.Errorf("%w: %s hook #%d: %w", ErrHook, stage, i, err)
		}
	}
	return nil
}

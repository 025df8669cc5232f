package scheduler

import "errors"

// 预定义错误.
var (
	// ErrWorkNil 任务函数为空.
	ErrWorkNil = errors.New("scheduler: work is required")

	// ErrInvalidPeriod 周期必须为正数.
	ErrInvalidPeriod = errors.New("scheduler: period must be positive")

	// ErrNoCalendar 未配置日历时钟，无法按绝对时间调度.
	ErrNoCalendar = errors.New("scheduler: calendar clock is not configured")

	// ErrScheduleInvalid 无效的调度表达式.
	ErrScheduleInvalid = errors.New("scheduler: invalid schedule expression")

	// ErrSchedulerClosed 调度器已关闭.
	ErrSchedulerClosed = errors.New("scheduler: scheduler is closed")

	// ErrNilRuntime 运行时为空.
	ErrNilRuntime = errors.New("scheduler: runtime is required")
)

// errTimerFired 计时分支胜出时用于取消接收分支.
var errTimerFired = errors.New("scheduler: timer fired")

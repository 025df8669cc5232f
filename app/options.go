package app

import (
	"context"
	"os"
	"sort"

	"github.com/Tsukikage7/nebulas/logger"
	"github.com/Tsukikage7/nebulas/scheduler"
)

// CleanupFunc 清理函数.
type CleanupFunc func(ctx context.Context) error

// Cleanup 清理任务.
type Cleanup struct {
	Name     string
	Fn       CleanupFunc
	Priority int // 数字越小越先执行
}

type options struct {
	logger           logger.Logger
	hooks            *Hooks
	taskHooks        *scheduler.Hooks
	schedulerOptions []scheduler.Option
	signals          []os.Signal
	cleanups         []Cleanup
}

// Option 配置选项.
type Option func(*options)

// WithLogger 使用已有的日志记录器，忽略配置中的 logger 段.
func WithLogger(log logger.Logger) Option {
	return func(o *options) { o.logger = log }
}

// WithHooks 设置生命周期钩子.
func WithHooks(hooks *Hooks) Option {
	return func(o *options) { o.hooks = hooks }
}

// WithTaskHooks 设置任务执行钩子.
func WithTaskHooks(hooks *scheduler.Hooks) Option {
	return func(o *options) { o.taskHooks = hooks }
}

// WithSchedulerOptions 追加调度器选项，在配置生成的选项之后生效.
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(o *options) {
		o.schedulerOptions = append(o.schedulerOptions, opts...)
	}
}

// WithSignals 设置监听的系统信号，默认 SIGINT 与 SIGTERM.
func WithSignals(signals ...os.Signal) Option {
	return func(o *options) { o.signals = signals }
}

// RegisterCleanup 注册清理任务，在调度器关闭后执行.
func RegisterCleanup(name string, fn CleanupFunc, priority int) Option {
	return func(o *options) {
		o.cleanups = append(o.cleanups, Cleanup{
			Name:     name,
			Fn:       fn,
			Priority: priority,
		})
	}
}

// RegisterCloser 注册 io.Closer 作为清理任务.
func RegisterCloser(name string, closer interface{ Close() error }, priority int) Option {
	return RegisterCleanup(name, func(_ context.Context) error {
		return closer.Close()
	}, priority)
}

// sortedCleanups 按优先级返回清理任务副本.
func (o *options) sortedCleanups() []Cleanup {
	cleanups := make([]Cleanup, len(o.cleanups))
	copy(cleanups, o.cleanups)
	sort.SliceStable(cleanups, func(i, j int) bool {
		return cleanups[i].Priority < cleanups[j].Priority
	})
	return cleanups
}

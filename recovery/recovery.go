// Package recovery 提供 panic 恢复.
//
// 派生任务中的 panic 不应拖垮整个进程，Do 将其转换为 *PanicError 并记录日志.
package recovery

import (
	"fmt"
	"runtime"

	"github.com/Tsukikage7/nebulas/logger"
)

// Handler panic 处理函数，在日志记录之后调用.
type Handler func(p any, stack []byte)

// Options 配置选项.
type Options struct {
	// Logger 日志记录器，为空时不记录.
	Logger logger.Logger

	// Handler 自定义 panic 处理函数.
	Handler Handler

	// Component 日志中的组件名.
	Component string

	// StackSize 堆栈大小，默认 64KB.
	StackSize int

	// StackAll 是否捕获所有 goroutine 的堆栈，默认 false.
	StackAll bool
}

// Option 是配置函数.
type Option func(*Options)

// WithLogger 设置日志记录器.
func WithLogger(l logger.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithHandler 设置自定义 panic 处理函数.
func WithHandler(h Handler) Option {
	return func(o *Options) {
		o.Handler = h
	}
}

// WithComponent 设置组件名.
func WithComponent(name string) Option {
	return func(o *Options) {
		o.Component = name
	}
}

// WithStackSize 设置堆栈大小.
func WithStackSize(size int) Option {
	return func(o *Options) {
		if size > 0 {
			o.StackSize = size
		}
	}
}

// WithStackAll 设置是否捕获所有 goroutine 的堆栈.
func WithStackAll(all bool) Option {
	return func(o *Options) {
		o.StackAll = all
	}
}

func applyOptions(opts []Option) *Options {
	o := &Options{
		Component: "recovery",
		StackSize: 64 * 1024,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Do 执行 fn，fn 发生 panic 时返回 *PanicError.
//
//	if err := recovery.Do(task, recovery.WithLogger(log)); err != nil {
//	    var pe *recovery.PanicError
//	    errors.As(err, &pe)
//	}
func Do(fn func(), opts ...Option) (err error) {
	defer func() {
		if p := recover(); p != nil {
			o := applyOptions(opts)
			stack := captureStack(o.StackSize, o.StackAll)

			if o.Logger != nil {
				o.Logger.With(
					logger.Any("panic", p),
					logger.String("stack", string(stack)),
				).Errorf("[%s] panic recovered", o.Component)
			}
			if o.Handler != nil {
				o.Handler(p, stack)
			}

			err = &PanicError{Value: p, Stack: stack}
		}
	}()

	fn()
	return nil
}

// captureStack 捕获堆栈信息.
func captureStack(size int, all bool) []byte {
	stack := make([]byte, size)
	n := runtime.Stack(stack, all)
	return stack[:n]
}

// PanicError 表示 panic 错误.
type PanicError struct {
	// Value 是 panic 的值.
	Value any
	// Stack 是堆栈信息.
	Stack []byte
}

// Error 实现 error 接口.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap 返回原始错误（如果 panic 值是 error）.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

package app

import "errors"

// 预定义错误.
var (
	// ErrNilConfig 配置为空.
	ErrNilConfig = errors.New("app: config is nil")

	// ErrInvalidConfig 配置无效.
	ErrInvalidConfig = errors.New("app: invalid config")

	// ErrRunning 应用正在运行.
	ErrRunning = errors.New("app: already running")

	// ErrHook 生命周期钩子执行失败.
	ErrHook = errors.New("app: lifecycle hook failed")
)

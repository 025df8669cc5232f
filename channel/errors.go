package channel

import "errors"

// 预定义错误.
var (
	// ErrNilConfig 配置为空.
	ErrNilConfig = errors.New("channel: config is nil")

	// ErrUnsupported 不支持的通道类型.
	ErrUnsupported = errors.New("channel: unsupported type")

	// ErrMissingBackend 缺少所选类型的后端配置.
	ErrMissingBackend = errors.New("channel: backend config is missing")
)

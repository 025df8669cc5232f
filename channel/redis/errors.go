package redis

import "errors"

// 预定义错误.
var (
	// ErrNilConfig 配置为空.
	ErrNilConfig = errors.New("channel/redis: config is nil")

	// ErrEmptyAddr 服务器地址为空.
	ErrEmptyAddr = errors.New("channel/redis: addr is empty")

	// ErrInvalidConfig 配置无效.
	ErrInvalidConfig = errors.New("channel/redis: invalid config")

	// ErrConnect 连接失败.
	ErrConnect = errors.New("channel/redis: failed to connect")
)

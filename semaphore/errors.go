package semaphore

import "errors"

// 预定义错误.
var (
	// ErrClosed 信号量已关闭.
	ErrClosed = errors.New("semaphore: closed")

	// ErrInvalidSize 信号量大小无效.
	ErrInvalidSize = errors.New("semaphore: size must be positive")

	// ErrNilClient Redis 客户端为空.
	ErrNilClient = errors.New("semaphore: redis client is nil")
)

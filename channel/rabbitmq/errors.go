package rabbitmq

import "errors"

// 预定义错误.
var (
	// ErrNilConfig 配置为空.
	ErrNilConfig = errors.New("channel/rabbitmq: config is nil")

	// ErrEmptyURL 连接地址为空.
	ErrEmptyURL = errors.New("channel/rabbitmq: url is empty")

	// ErrConnect 连接失败.
	ErrConnect = errors.New("channel/rabbitmq: failed to connect")

	// ErrConnClosed 连接已关闭.
	ErrConnClosed = errors.New("channel/rabbitmq: connection is closed")

	// ErrSetup 声明队列或设置通道失败.
	ErrSetup = errors.New("channel/rabbitmq: failed to set up channel")
)

package kafka

import "errors"

// 预定义错误.
var (
	// ErrNilConfig 配置为空.
	ErrNilConfig = errors.New("channel/kafka: config is nil")

	// ErrNoBrokers 未配置服务器地址.
	ErrNoBrokers = errors.New("channel/kafka: no brokers")

	// ErrInvalidConfig 配置无效.
	ErrInvalidConfig = errors.New("channel/kafka: invalid config")

	// ErrCreateProducer 创建生产者失败.
	ErrCreateProducer = errors.New("channel/kafka: failed to create producer")

	// ErrCreateConsumer 创建消费者组失败.
	ErrCreateConsumer = errors.New("channel/kafka: failed to create consumer group")
)

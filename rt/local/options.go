package local

import (
	"github.com/Tsukikage7/nebulas/channel/memory"
	"github.com/Tsukikage7/nebulas/logger"
	"github.com/Tsukikage7/nebulas/metrics"
	"github.com/Tsukikage7/nebulas/rt"
)

// Option 运行时配置选项.
type Option func(*options)

type options struct {
	logger   logger.Logger
	metrics  metrics.Collector
	factory  rt.ChannelFactory
	capacity int
}

func defaultOptions() *options {
	return &options{
		capacity: rt.DefaultCapacity,
	}
}

// WithLogger 设置日志记录器.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		o.logger = log
	}
}

// WithMetrics 设置指标收集器，用于记录任务 panic 与运行中任务数.
func WithMetrics(c metrics.Collector) Option {
	return func(o *options) {
		o.metrics = c
	}
}

// WithChannelFactory 设置控制通道工厂.
//
// 默认创建进程内通道；接入 Redis、RabbitMQ、Kafka 时替换为对应工厂.
func WithChannelFactory(f rt.ChannelFactory) Option {
	return func(o *options) {
		o.factory = f
	}
}

// WithCapacity 设置默认进程内通道容量，设置了 WithChannelFactory 时无效.
func WithCapacity(n int) Option {
	return func(o *options) {
		o.capacity = n
	}
}

func (o *options) channelFactory() rt.ChannelFactory {
	if o.factory != nil {
		return o.factory
	}
	return memory.NewFactory(memory.WithCapacity(o.capacity))
}

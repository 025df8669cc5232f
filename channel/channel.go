// Package channel 按配置选择控制通道实现.
//
// 示例:
//
//	factory, err := channel.NewFactory(&channel.Config{
//	    Type:  channel.TypeRedis,
//	    Redis: &redis.Config{Addr: "localhost:6379"},
//	}, log)
//	runtime := local.New(local.WithChannelFactory(factory))
package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/Tsukikage7/nebulas/channel/kafka"
	"github.com/Tsukikage7/nebulas/channel/memory"
	"github.com/Tsukikage7/nebulas/channel/rabbitmq"
	"github.com/Tsukikage7/nebulas/channel/redis"
	"github.com/Tsukikage7/nebulas/logger"
	"github.com/Tsukikage7/nebulas/retry"
	"github.com/Tsukikage7/nebulas/rt"
)

// 通道类型.
const (
	TypeMemory   = "memory"
	TypeRedis    = "redis"
	TypeRabbitMQ = "rabbitmq"
	TypeKafka    = "kafka"
)

// DefaultConnectDelay 连接重试的默认初始间隔.
const DefaultConnectDelay = 500 * time.Millisecond

// Config 控制通道配置.
type Config struct {
	// Type 通道类型，默认 memory.
	Type string `json:"type" yaml:"type" mapstructure:"type"`
	// Capacity 内存通道容量，默认 rt.DefaultCapacity.
	Capacity int `json:"capacity" yaml:"capacity" mapstructure:"capacity"`
	// ConnectAttempts 远程通道建立连接的最大尝试次数，默认 1.
	ConnectAttempts int `json:"connect_attempts" yaml:"connect_attempts" mapstructure:"connect_attempts"`
	// ConnectDelay 连接重试的初始间隔，按指数退避增长.
	ConnectDelay time.Duration `json:"connect_delay" yaml:"connect_delay" mapstructure:"connect_delay"`

	Redis    *redis.Config    `json:"redis" yaml:"redis" mapstructure:"redis"`
	RabbitMQ *rabbitmq.Config `json:"rabbitmq" yaml:"rabbitmq" mapstructure:"rabbitmq"`
	Kafka    *kafka.Config    `json:"kafka" yaml:"kafka" mapstructure:"kafka"`
}

// ApplyDefaults 填充默认值.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = TypeMemory
	}
	if c.Capacity <= 0 {
		c.Capacity = rt.DefaultCapacity
	}
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = 1
	}
	if c.ConnectDelay <= 0 {
		c.ConnectDelay = DefaultConnectDelay
	}
}

// Validate 验证配置.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}

	switch c.Type {
	case "", TypeMemory:
		return nil
	case TypeRedis:
		if c.Redis == nil {
			return fmt.Errorf("%w: %s", ErrMissingBackend, c.Type)
		}
		return c.Redis.Validate()
	case TypeRabbitMQ:
		if c.RabbitMQ == nil {
			return fmt.Errorf("%w: %s", ErrMissingBackend, c.Type)
		}
		return c.RabbitMQ.Validate()
	case TypeKafka:
		if c.Kafka == nil {
			return fmt.Errorf("%w: %s", ErrMissingBackend, c.Type)
		}
		return c.Kafka.Validate()
	default:
		return fmt.Errorf("%w: %q", ErrUnsupported, c.Type)
	}
}

// NewFactory 按配置创建控制通道工厂.
//
// 只校验配置，连接在工厂每次被调用时建立.
func NewFactory(cfg *Config, log logger.Logger) (rt.ChannelFactory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	var factory rt.ChannelFactory
	switch cfg.Type {
	case TypeRedis:
		factory = redis.NewFactory(cfg.Redis, redis.WithLogger(log))
	case TypeRabbitMQ:
		factory = rabbitmq.NewFactory(cfg.RabbitMQ, rabbitmq.WithLogger(log))
	case TypeKafka:
		factory = kafka.NewFactory(cfg.Kafka, kafka.WithLogger(log))
	default:
		return memory.NewFactory(memory.WithCapacity(cfg.Capacity)), nil
	}
	return withRetry(factory, cfg, log), nil
}

// withRetry 连接失败时按退避策略重试.
func withRetry(factory rt.ChannelFactory, cfg *Config, log logger.Logger) rt.ChannelFactory {
	if cfg.ConnectAttempts <= 1 {
		return factory
	}

	return func() (tx rt.Sender, rx rt.Receiver, err error) {
		err = retry.Do(context.Background(), func() error {
			var err error
			tx, rx, err = factory()
			return err
		}).
			WithMaxAttempts(cfg.ConnectAttempts).
			WithDelay(cfg.ConnectDelay).
			WithBackoff(retry.ExponentialBackoff).
			OnRetry(func(attempt int, err error) {
				if log != nil {
					log.Warnf("[Channel] %s connect failed (%d/%d): %v", cfg.Type, attempt, cfg.ConnectAttempts, err)
				}
			}).
			Run()
		if err != nil {
			return nil, nil, err
		}
		return tx, rx, nil
	}
}

// MustNewFactory 创建控制通道工厂，失败时 panic.
func MustNewFactory(cfg *Config, log logger.Logger) rt.ChannelFactory {
	factory, err := NewFactory(cfg, log)
	if err != nil {
		panic(err)
	}
	return factory
}

package kafka

import (
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// 默认配置值.
const (
	DefaultTopic        = "nebulas.control"
	DefaultGroupID      = "nebulas"
	DefaultRetryBackoff = time.Second
)

// 起始偏移量.
const (
	OffsetNewest = "newest"
	OffsetOldest = "oldest"
)

// Config Kafka 控制通道配置.
//
// 同一消费者组内的接收端竞争消费，每个事件只投递给组内一个成员.
//
//	cfg := &kafka.Config{
//	    Brokers: []string{"localhost:9092"},
//	    Topic:   "billing.control",
//	}
type Config struct {
	// Brokers 服务器地址列表.
	Brokers []string `json:"brokers" yaml:"brokers" mapstructure:"brokers"`
	// Topic 承载事件的主题.
	Topic string `json:"topic" yaml:"topic" mapstructure:"topic"`
	// GroupID 消费者组.
	GroupID string `json:"group_id" yaml:"group_id" mapstructure:"group_id"`
	// InitialOffset 无已提交偏移量时的起点，newest 或 oldest.
	InitialOffset string `json:"initial_offset" yaml:"initial_offset" mapstructure:"initial_offset"`
	// Version 协议版本，如 "3.8.0"，为空使用默认值.
	Version string `json:"version" yaml:"version" mapstructure:"version"`
	// RetryBackoff 消费失败后的重试间隔.
	RetryBackoff time.Duration `json:"retry_backoff" yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// ApplyDefaults 填充默认值.
func (c *Config) ApplyDefaults() {
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.GroupID == "" {
		c.GroupID = DefaultGroupID
	}
	if c.InitialOffset == "" {
		c.InitialOffset = OffsetNewest
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
}

// Validate 验证配置.
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if len(c.Brokers) == 0 {
		return ErrNoBrokers
	}
	switch c.InitialOffset {
	case "", OffsetNewest, OffsetOldest:
	default:
		return fmt.Errorf("%w: initial_offset=%q", ErrInvalidConfig, c.InitialOffset)
	}
	if c.Version != "" {
		if _, err := sarama.ParseKafkaVersion(c.Version); err != nil {
			return fmt.Errorf("%w: version=%q", ErrInvalidConfig, c.Version)
		}
	}
	return nil
}

// saramaConfig 构建客户端配置.
func (c *Config) saramaConfig() *sarama.Config {
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_8_0_0
	if c.Version != "" {
		if v, err := sarama.ParseKafkaVersion(c.Version); err == nil {
			sc.Version = v
		}
	}

	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1

	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	if c.InitialOffset == OffsetOldest {
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	return sc
}

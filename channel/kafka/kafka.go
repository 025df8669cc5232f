// Package kafka 提供基于 Kafka 主题的控制通道.
//
// 发送端以任务标识为键写入主题，接收端以消费者组消费.
// 事件投递给进程内接收端后才标记偏移量，未标记的事件在重平衡后重新消费.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"

	"github.com/Tsukikage7/nebulas/channel/memory"
	"github.com/Tsukikage7/nebulas/event"
	"github.com/Tsukikage7/nebulas/logger"
	"github.com/Tsukikage7/nebulas/rt"
)

// Option 配置选项.
type Option func(*options)

type options struct {
	logger logger.Logger
}

// WithLogger 设置日志记录器.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		o.logger = log
	}
}

// New 连接 Kafka 并创建控制通道.
func New(cfg *Config, opts ...Option) (*Sender, *memory.Receiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	cfg.ApplyDefaults()
	sc := cfg.saramaConfig()

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, nil, errors.Join(ErrCreateProducer, err)
	}

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		_ = producer.Close()
		return nil, nil, errors.Join(ErrCreateConsumer, err)
	}

	tx, rx := NewWithClients(cfg, producer, group, opts...)
	return tx, rx, nil
}

// NewWithClients 使用已有的生产者与消费者组创建控制通道.
//
// 通道接管两者，发送端关闭时关闭生产者，接收端全部关闭时关闭消费者组.
func NewWithClients(cfg *Config, producer sarama.SyncProducer, group sarama.ConsumerGroup, opts ...Option) (*Sender, *memory.Receiver) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.ApplyDefaults()

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	local, rx := memory.New(memory.WithCapacity(0))
	c := &consumer{
		group:   group,
		cfg:     cfg,
		handler: &claimHandler{local: local, logger: o.logger},
		local:   local,
		logger:  o.logger,
	}
	go c.run()

	return &Sender{producer: producer, topic: cfg.Topic, logger: o.logger}, rx
}

// NewFactory 返回创建 Kafka 控制通道的工厂.
func NewFactory(cfg *Config, opts ...Option) rt.ChannelFactory {
	return func() (rt.Sender, rt.Receiver, error) {
		tx, rx, err := New(cfg, opts...)
		if err != nil {
			return nil, nil, err
		}
		return tx, rx, nil
	}
}

// Sender 发送端.
type Sender struct {
	producer sarama.SyncProducer
	topic    string
	logger   logger.Logger
	closed   atomic.Bool
}

var _ rt.Sender = (*Sender)(nil)

// Send 同步写入事件，键为目标任务标识.
func (s *Sender) Send(ctx context.Context, ev event.Event) error {
	if s.closed.Load() {
		return rt.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := event.Encode(ev)
	if err != nil {
		return err
	}

	_, _, err = s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(ev.To),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("kind"), Value: []byte(ev.Kind.String())},
		},
	})
	if err != nil {
		if errors.Is(err, sarama.ErrClosedClient) {
			return rt.ErrClosed
		}
		if s.logger != nil {
			s.logger.Errorf("[Channel] kafka send failed: topic=%s, err=%v", s.topic, err)
		}
		return err
	}
	return nil
}

// Close 关闭发送端.
func (s *Sender) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.producer.Close()
}

// consumer 以消费者组消费主题，直到进程内接收端全部关闭.
type consumer struct {
	group   sarama.ConsumerGroup
	cfg     *Config
	handler *claimHandler
	local   *memory.Sender
	logger  logger.Logger
}

func (c *consumer) run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		_ = c.group.Close()
		_ = c.local.Close()
	}()

	go func() {
		select {
		case <-c.local.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-c.group.Errors():
				if !ok {
					return
				}
				c.logf("kafka consumer error: %v", err)
			}
		}
	}()

	topics := []string{c.cfg.Topic}
	for {
		err := c.group.Consume(ctx, topics, c.handler)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return
		}
		if err != nil {
			c.logf("kafka consume failed: topic=%s, err=%v", c.cfg.Topic, err)
			select {
			case <-time.After(c.cfg.RetryBackoff):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *consumer) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Warnf("[Channel] "+format, args...)
	}
}

// claimHandler 实现 sarama.ConsumerGroupHandler，把分区消息转交进程内接收端.
type claimHandler struct {
	local  *memory.Sender
	logger logger.Logger
}

var _ sarama.ConsumerGroupHandler = (*claimHandler)(nil)

// Setup 实现 sarama.ConsumerGroupHandler.
func (h *claimHandler) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup 实现 sarama.ConsumerGroupHandler.
func (h *claimHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	session.Commit()
	return nil
}

// ConsumeClaim 实现 sarama.ConsumerGroupHandler.
//
// 接收端全部关闭时停止且不标记当前消息.
func (h *claimHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			ev, err := event.Decode(msg.Value)
			if err != nil {
				if h.logger != nil {
					h.logger.Warnf("[Channel] kafka drop malformed event: partition=%d, offset=%d, err=%v",
						msg.Partition, msg.Offset, err)
				}
				session.MarkMessage(msg, "")
				continue
			}

			if err := h.local.Send(ctx, ev); err != nil {
				if errors.Is(err, rt.ErrClosed) {
					return nil
				}
				return fmt.Errorf("channel/kafka: forward event: %w", err)
			}
			session.MarkMessage(msg, "")
		}
	}
}

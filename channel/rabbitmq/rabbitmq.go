// Package rabbitmq 提供基于 RabbitMQ 队列的控制通道.
//
// 所有发送端发布到同一队列，所有接收端从该队列竞争消费.
// 事件在投递给进程内接收端后才确认，接收端全部关闭时未投递的事件重新入队.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

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

// New 连接 RabbitMQ 并创建控制通道.
//
// 收发两端都关闭后断开连接.
func New(cfg *Config, opts ...Option) (*Sender, *memory.Receiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	cfg.ApplyDefaults()

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	conn, err := dial(cfg, o.logger)
	if err != nil {
		return nil, nil, err
	}

	refs := &refCount{conn: conn}
	refs.n.Store(2)

	tx := &Sender{conn: conn, cfg: cfg, refs: refs, logger: o.logger}
	if err := tx.setup(); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	local, rx := memory.New(memory.WithCapacity(0))
	c := &consumer{conn: conn, cfg: cfg, local: local, refs: refs, logger: o.logger}
	go c.run()

	return tx, rx, nil
}

// NewFactory 返回创建 RabbitMQ 控制通道的工厂.
func NewFactory(cfg *Config, opts ...Option) rt.ChannelFactory {
	return func() (rt.Sender, rt.Receiver, error) {
		tx, rx, err := New(cfg, opts...)
		if err != nil {
			return nil, nil, err
		}
		return tx, rx, nil
	}
}

// declareQueue 声明事件队列.
func declareQueue(ch *amqp.Channel, cfg *Config) error {
	_, err := ch.QueueDeclare(cfg.Queue, !cfg.Transient, false, false, false, nil)
	return err
}

// refCount 收发两端共享连接，引用归零时关闭.
type refCount struct {
	conn *connection
	n    atomic.Int32
}

func (r *refCount) release() {
	if r.n.Add(-1) == 0 {
		_ = r.conn.Close()
	}
}

// Sender 发送端.
type Sender struct {
	conn   *connection
	cfg    *Config
	refs   *refCount
	logger logger.Logger

	mu      sync.Mutex
	channel *amqp.Channel
	closed  atomic.Bool
}

var _ rt.Sender = (*Sender)(nil)

func (s *Sender) setup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.channelLocked()
	return err
}

// channelLocked 返回可用的 channel，必要时在当前连接上重新打开.
func (s *Sender) channelLocked() (*amqp.Channel, error) {
	if s.channel != nil && !s.channel.IsClosed() {
		return s.channel, nil
	}

	ch, err := s.conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := declareQueue(ch, s.cfg); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%w: %v", ErrSetup, err)
	}
	s.channel = ch
	return ch, nil
}

// Send 编码事件并发布到队列.
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

	mode := amqp.Persistent
	if s.cfg.Transient {
		mode = amqp.Transient
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ch, err := s.channelLocked()
	if err != nil {
		if errors.Is(err, ErrConnClosed) {
			return rt.ErrClosed
		}
		return err
	}

	err = ch.PublishWithContext(ctx, "", s.cfg.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: mode,
		Timestamp:    time.Now(),
		Type:         ev.Kind.String(),
		Body:         data,
	})
	if err != nil {
		s.channel = nil
		if s.logger != nil {
			s.logger.Errorf("[Channel] rabbitmq publish failed: queue=%s, err=%v", s.cfg.Queue, err)
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

	s.mu.Lock()
	if s.channel != nil {
		_ = s.channel.Close()
		s.channel = nil
	}
	s.mu.Unlock()

	s.refs.release()
	return nil
}

// consumer 从队列消费事件并投递给进程内接收端，断线后在新连接上重新消费.
type consumer struct {
	conn   *connection
	cfg    *Config
	local  *memory.Sender
	refs   *refCount
	logger logger.Logger
}

func (c *consumer) run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		_ = c.local.Close()
		c.refs.release()
	}()

	go func() {
		select {
		case <-c.local.Done():
		case <-ctx.Done():
		}
		cancel()
	}()

	for {
		ch, deliveries, err := c.consume()
		if err != nil {
			c.logf("rabbitmq consume failed: queue=%s, err=%v", c.cfg.Queue, err)
		} else {
			more := c.forward(ctx, deliveries)
			_ = ch.Close()
			if !more {
				return
			}
		}

		select {
		case <-c.conn.Reconnected():
		case <-time.After(c.cfg.ReconnectDelay):
		case <-c.conn.Gone():
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *consumer) consume() (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	if err := ch.Qos(c.cfg.PrefetchCount, 0, false); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("%w: qos: %v", ErrSetup, err)
	}
	if err := declareQueue(ch, c.cfg); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("%w: %v", ErrSetup, err)
	}

	deliveries, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("%w: consume: %v", ErrSetup, err)
	}
	return ch, deliveries, nil
}

// forward 转发消息直到 deliveries 关闭（返回 true）或接收端全部关闭（返回 false）.
func (c *consumer) forward(ctx context.Context, deliveries <-chan amqp.Delivery) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case d, ok := <-deliveries:
			if !ok {
				return true
			}

			ev, err := event.Decode(d.Body)
			if err != nil {
				c.logf("rabbitmq drop malformed event: %v", err)
				_ = d.Reject(false)
				continue
			}

			if err := c.local.Send(ctx, ev); err != nil {
				_ = d.Nack(false, true)
				return false
			}
			_ = d.Ack(false)
		}
	}
}

func (c *consumer) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Warnf("[Channel] "+format, args...)
	}
}

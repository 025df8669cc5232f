package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Tsukikage7/nebulas/logger"
	"github.com/Tsukikage7/nebulas/retry"
)

// connection RabbitMQ 连接管理器，断线后自动重连.
type connection struct {
	url            string
	conn           *amqp.Connection
	mu             sync.RWMutex
	closed         atomic.Bool
	reconnectDelay time.Duration
	maxRetries     int
	logger         logger.Logger

	// reconnected 每次重连成功后关闭并替换，等待方据此重建 channel.
	reconnected chan struct{}
	// gone 连接永久关闭（主动关闭或重连失败）后关闭.
	gone     chan struct{}
	goneOnce sync.Once
}

func dial(cfg *Config, log logger.Logger) (*connection, error) {
	c := &connection{
		url:            cfg.URL,
		reconnectDelay: cfg.ReconnectDelay,
		maxRetries:     cfg.MaxRetries,
		logger:         log,
		reconnected:    make(chan struct{}),
		gone:           make(chan struct{}),
	}

	notify, err := c.connect()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}

	go c.handleReconnect(notify)
	return c, nil
}

func (c *connection) connect() (chan *amqp.Error, error) {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return nil, err
	}

	notify := conn.NotifyClose(make(chan *amqp.Error, 1))

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		_ = conn.Close()
		return nil, ErrConnClosed
	}
	c.conn = conn
	c.mu.Unlock()

	c.logf("RabbitMQ 连接已建立")
	return notify, nil
}

func (c *connection) handleReconnect(notify chan *amqp.Error) {
	for {
		err, ok := <-notify
		if !ok || c.closed.Load() {
			c.shutdown()
			return
		}

		c.logf("RabbitMQ 连接断开: %v, 开始重连...", err)

		next, ok := c.reconnect()
		if !ok {
			c.shutdown()
			return
		}
		notify = next

		c.mu.Lock()
		close(c.reconnected)
		c.reconnected = make(chan struct{})
		c.mu.Unlock()
	}
}

// reconnect 重连直到成功、达到最大次数或连接被关闭.
func (c *connection) reconnect() (chan *amqp.Error, bool) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.gone:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := sleepCtx(ctx, c.reconnectDelay); err != nil {
		return nil, false
	}

	var notify chan *amqp.Error
	err := retry.Do(ctx, func() error {
		var err error
		notify, err = c.connect()
		return err
	}).
		WithMaxAttempts(c.maxRetries).
		WithDelay(c.reconnectDelay).
		WithRetryable(func(err error) bool {
			return !errors.Is(err, ErrConnClosed)
		}).
		OnRetry(func(attempt int, err error) {
			c.logf("RabbitMQ 重连失败 (%d): %v", attempt, err)
		}).
		Run()
	if err != nil {
		if errors.Is(err, retry.ErrMaxAttempts) {
			c.logf("RabbitMQ 重连失败，已达最大重试次数")
		}
		return nil, false
	}
	return notify, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Channel 在当前连接上打开 channel.
func (c *connection) Channel() (*amqp.Channel, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed.Load() {
		return nil, ErrConnClosed
	}
	return c.conn.Channel()
}

// Reconnected 返回下一次重连成功时关闭的 channel.
func (c *connection) Reconnected() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reconnected
}

// Gone 返回连接永久关闭时关闭的 channel.
func (c *connection) Gone() <-chan struct{} {
	return c.gone
}

func (c *connection) shutdown() {
	c.goneOnce.Do(func() { close(c.gone) })
}

// Close 关闭连接，可重复调用.
func (c *connection) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.shutdown()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && !c.conn.IsClosed() {
		return c.conn.Close()
	}
	return nil
}

func (c *connection) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Infof("[Channel] "+format, args...)
	}
}

// Package redis 提供基于 Redis 列表的控制通道.
//
// 发送端 LPUSH 到列表，接收端 BRPOP 取出，天然是竞争消费：
// 同一列表上的所有接收端（含其他进程）中只有一个取到某个事件.
// 进程内的接收端克隆通过内存队列共享同一个拉取任务.
// 本进程的接收端全部关闭后发送返回 rt.ErrClosed，
// 不再向无人拉取的列表写入.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

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

// NewClient 按配置创建并检测 Redis 客户端.
func NewClient(cfg *Config) (*goredis.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()

	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
		// BRPOP 阻塞期间不能触发读超时.
		ReadTimeout: cfg.PollTimeout + cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: addr=%s: %v", ErrConnect, cfg.Addr, err)
	}
	return client, nil
}

// New 连接 Redis 并创建控制通道.
//
// 收发两端都关闭后释放客户端.
func New(cfg *Config, opts ...Option) (*Sender, *memory.Receiver, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, nil, err
	}

	tx, rx := newChannel(client, cfg, true, opts...)
	return tx, rx, nil
}

// NewWithClient 使用已有客户端创建控制通道，关闭通道不会关闭客户端.
func NewWithClient(client goredis.UniversalClient, cfg *Config, opts ...Option) (*Sender, *memory.Receiver) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.ApplyDefaults()
	return newChannel(client, cfg, false, opts...)
}

// NewFactory 返回创建 Redis 控制通道的工厂.
func NewFactory(cfg *Config, opts ...Option) rt.ChannelFactory {
	return func() (rt.Sender, rt.Receiver, error) {
		tx, rx, err := New(cfg, opts...)
		if err != nil {
			return nil, nil, err
		}
		return tx, rx, nil
	}
}

func newChannel(client goredis.UniversalClient, cfg *Config, owned bool, opts ...Option) (*Sender, *memory.Receiver) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	// 无缓冲，拉取任务每次只持有一个未投递的事件.
	local, rx := memory.New(memory.WithCapacity(0))

	c := &conn{client: client, owned: owned}
	c.refs.Store(2)

	p := &puller{client: client, cfg: cfg, local: local, conn: c, logger: o.logger}
	go p.run()

	return &Sender{client: client, key: cfg.Key, conn: c, gone: local.Done(), logger: o.logger}, rx
}

// conn 收发两端共享的客户端，引用归零时关闭.
type conn struct {
	client goredis.UniversalClient
	owned  bool
	refs   atomic.Int32
}

func (c *conn) release() {
	if c.refs.Add(-1) == 0 && c.owned {
		_ = c.client.Close()
	}
}

// Sender 发送端.
type Sender struct {
	client goredis.UniversalClient
	key    string
	conn   *conn
	gone   <-chan struct{}
	logger logger.Logger

	closed atomic.Bool
	once   sync.Once
}

var _ rt.Sender = (*Sender)(nil)

// Send 编码事件并 LPUSH 到列表.
func (s *Sender) Send(ctx context.Context, ev event.Event) error {
	if s.closed.Load() {
		return rt.ErrClosed
	}
	select {
	case <-s.gone:
		return rt.ErrClosed
	default:
	}

	data, err := event.Encode(ev)
	if err != nil {
		return err
	}

	if err := s.client.LPush(ctx, s.key, data).Err(); err != nil {
		if errors.Is(err, goredis.ErrClosed) {
			return rt.ErrClosed
		}
		if s.logger != nil {
			s.logger.Errorf("[Channel] redis LPUSH failed: key=%s, err=%v", s.key, err)
		}
		return err
	}
	return nil
}

// Close 关闭发送端.
func (s *Sender) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		s.conn.release()
	})
	return nil
}

// puller 从列表拉取事件并投递给进程内接收端.
type puller struct {
	client goredis.UniversalClient
	cfg    *Config
	local  *memory.Sender
	conn   *conn
	logger logger.Logger
}

func (p *puller) run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		_ = p.local.Close()
		p.conn.release()
	}()

	go func() {
		select {
		case <-p.local.Done():
		case <-ctx.Done():
		}
		cancel()
	}()

	for {
		res, err := p.client.BRPop(ctx, p.cfg.PollTimeout, p.cfg.Key).Result()
		switch {
		case err == nil:
		case errors.Is(err, goredis.Nil):
			continue
		case ctx.Err() != nil, errors.Is(err, goredis.ErrClosed):
			return
		default:
			p.logf("redis BRPOP failed: key=%s, err=%v", p.cfg.Key, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(DefaultRetryBackoff):
			}
			continue
		}

		// res = [key, value]
		payload := res[1]
		ev, err := event.Decode([]byte(payload))
		if err != nil {
			p.logf("redis drop malformed event: %v", err)
			continue
		}

		if err := p.local.Send(ctx, ev); err != nil {
			// 本地接收端已全部关闭，放回队首供其他消费者取走.
			if err := p.client.RPush(context.Background(), p.cfg.Key, payload).Err(); err != nil {
				p.logf("redis requeue failed: key=%s, err=%v", p.cfg.Key, err)
			}
			return
		}
	}
}

func (p *puller) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Warnf("[Channel] "+format, args...)
	}
}

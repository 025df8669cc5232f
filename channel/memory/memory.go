// Package memory 提供进程内控制通道.
//
// 通道为有界队列，所有接收端克隆竞争消费同一队列.
// 最后一个接收端关闭后发送返回 rt.ErrClosed；
// 发送端关闭后接收端取完剩余事件再返回 rt.ErrClosed.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Tsukikage7/nebulas/event"
	"github.com/Tsukikage7/nebulas/rt"
)

// Option 通道配置选项.
type Option func(*options)

type options struct {
	capacity int
}

// WithCapacity 设置通道容量.
//
// 0 表示无缓冲，发送会等待接收方取走事件；负数忽略.
// 默认: rt.DefaultCapacity.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.capacity = n
		}
	}
}

// queue 收发两端共享的队列状态.
type queue struct {
	items chan event.Event

	txGone chan struct{}
	rxGone chan struct{}
	txOnce sync.Once
	rxOnce sync.Once

	mu        sync.Mutex
	receivers int
}

// New 创建控制通道.
func New(opts ...Option) (*Sender, *Receiver) {
	o := &options{capacity: rt.DefaultCapacity}
	for _, opt := range opts {
		opt(o)
	}

	q := &queue{
		items:     make(chan event.Event, o.capacity),
		txGone:    make(chan struct{}),
		rxGone:    make(chan struct{}),
		receivers: 1,
	}
	return &Sender{q: q}, &Receiver{q: q}
}

// NewFactory 返回创建内存通道的工厂.
func NewFactory(opts ...Option) rt.ChannelFactory {
	return func() (rt.Sender, rt.Receiver, error) {
		tx, rx := New(opts...)
		return tx, rx, nil
	}
}

// Sender 发送端.
type Sender struct {
	q *queue
}

var _ rt.Sender = (*Sender)(nil)

// Send 发送事件，队列满时阻塞.
func (s *Sender) Send(ctx context.Context, ev event.Event) error {
	select {
	case <-s.q.rxGone:
		return rt.ErrClosed
	case <-s.q.txGone:
		return rt.ErrClosed
	default:
	}

	select {
	case s.q.items <- ev:
		return nil
	case <-s.q.rxGone:
		return rt.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 关闭发送端，可重复调用.
func (s *Sender) Close() error {
	s.q.txOnce.Do(func() { close(s.q.txGone) })
	return nil
}

// Done 返回在全部接收端关闭后关闭的 channel.
func (s *Sender) Done() <-chan struct{} {
	return s.q.rxGone
}

// Len 返回队列中待取事件数.
func (s *Sender) Len() int {
	return len(s.q.items)
}

// Receiver 接收端.
type Receiver struct {
	q      *queue
	closed atomic.Bool
}

var _ rt.Receiver = (*Receiver)(nil)

// TryRecv 非阻塞接收.
func (r *Receiver) TryRecv(ctx context.Context) (event.Event, error) {
	if r.closed.Load() {
		return event.Event{}, rt.ErrClosed
	}

	select {
	case ev := <-r.q.items:
		return ev, nil
	default:
	}

	select {
	case <-r.q.txGone:
		return r.drain()
	default:
		return event.Event{}, rt.ErrEmpty
	}
}

// Recv 阻塞接收.
func (r *Receiver) Recv(ctx context.Context) (event.Event, error) {
	if r.closed.Load() {
		return event.Event{}, rt.ErrClosed
	}

	select {
	case ev := <-r.q.items:
		return ev, nil
	case <-r.q.txGone:
		return r.drain()
	case <-ctx.Done():
		return event.Event{}, ctx.Err()
	}
}

// drain 发送端关闭后取剩余事件.
func (r *Receiver) drain() (event.Event, error) {
	select {
	case ev := <-r.q.items:
		return ev, nil
	default:
		return event.Event{}, rt.ErrClosed
	}
}

// Clone 克隆接收端，克隆与原接收端竞争消费同一队列.
//
// 已关闭接收端的克隆同样处于关闭状态.
func (r *Receiver) Clone() rt.Receiver {
	r.q.mu.Lock()
	defer r.q.mu.Unlock()

	c := &Receiver{q: r.q}
	if r.closed.Load() || r.q.receivers == 0 {
		c.closed.Store(true)
		return c
	}
	r.q.receivers++
	return c
}

// Close 关闭当前接收端句柄，可重复调用.
func (r *Receiver) Close() error {
	if r.closed.Swap(true) {
		return nil
	}

	r.q.mu.Lock()
	defer r.q.mu.Unlock()

	r.q.receivers--
	if r.q.receivers == 0 {
		r.q.rxOnce.Do(func() { close(r.q.rxGone) })
	}
	return nil
}

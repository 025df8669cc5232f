package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Tsukikage7/nebulas/event"
	"github.com/Tsukikage7/nebulas/rt"
)

// inbox 控制循环的事件来源，只返回发往该循环的事件.
type inbox interface {
	// TryRecv 非阻塞接收，无事件返回 rt.ErrEmpty.
	TryRecv(ctx context.Context) (event.Event, error)
	// Recv 阻塞接收.
	Recv(ctx context.Context) (event.Event, error)
	// Close 释放接收端.
	Close()
}

// competingInbox 竞争消费的信箱，持有共享接收端的克隆.
//
// 取到非本任务的事件直接丢弃，与其他循环之间不做转交.
type competingInbox struct {
	id      event.TaskID
	rx      rt.Receiver
	discard func(ev event.Event)
}

func (b *competingInbox) TryRecv(ctx context.Context) (event.Event, error) {
	for {
		ev, err := b.rx.TryRecv(ctx)
		if err != nil {
			return ev, err
		}
		if ev.For(b.id) {
			return ev, nil
		}
		b.discard(ev)
	}
}

func (b *competingInbox) Recv(ctx context.Context) (event.Event, error) {
	for {
		ev, err := b.rx.Recv(ctx)
		if err != nil {
			return ev, err
		}
		if ev.For(b.id) {
			return ev, nil
		}
		b.discard(ev)
		if err := ctx.Err(); err != nil {
			return event.Event{}, err
		}
	}
}

func (b *competingInbox) Close() {
	_ = b.rx.Close()
}

// routerBackoff 路由接收失败后的重试间隔.
const routerBackoff = 100 * time.Millisecond

// router 扇出路由，从共享接收端取事件并复制给同标识的所有信箱.
type router struct {
	rx      rt.Receiver
	rt      rt.Runtime
	size    int
	discard func(ev event.Event)
	full    func(ev event.Event)
	failed  func(err error)

	mu      sync.RWMutex
	boxes   map[event.TaskID]map[*mailbox]struct{}
	stopped bool
}

func newRouter(rx rt.Receiver, runtime rt.Runtime, size int) *router {
	return &router{
		rx:      rx,
		rt:      runtime,
		size:    size,
		discard: func(event.Event) {},
		full:    func(event.Event) {},
		failed:  func(error) {},
		boxes:   make(map[event.TaskID]map[*mailbox]struct{}),
	}
}

// run 路由事件直到 ctx 结束或接收端关闭.
func (r *router) run(ctx context.Context) {
	defer r.stop()

	for {
		ev, err := r.rx.Recv(ctx)
		if err != nil {
			if errors.Is(err, rt.ErrClosed) || ctx.Err() != nil {
				return
			}
			r.failed(err)
			if r.rt.Sleep(ctx, routerBackoff) != nil {
				return
			}
			continue
		}
		r.dispatch(ev)
	}
}

func (r *router) dispatch(ev event.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	boxes := r.boxes[ev.To]
	if len(boxes) == 0 {
		r.discard(ev)
		return
	}
	for box := range boxes {
		select {
		case box.ch <- ev:
		default:
			r.full(ev)
		}
	}
}

// stop 关闭所有信箱，之后注册的信箱直接处于关闭状态.
func (r *router) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	r.stopped = true
	for _, boxes := range r.boxes {
		for box := range boxes {
			close(box.ch)
		}
	}
	r.boxes = make(map[event.TaskID]map[*mailbox]struct{})
}

func (r *router) register(id event.TaskID) *mailbox {
	box := &mailbox{id: id, ch: make(chan event.Event, r.size), r: r}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		close(box.ch)
		return box
	}
	if r.boxes[id] == nil {
		r.boxes[id] = make(map[*mailbox]struct{})
	}
	r.boxes[id][box] = struct{}{}
	return box
}

func (r *router) unregister(box *mailbox) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if boxes, ok := r.boxes[box.id]; ok {
		delete(boxes, box)
		if len(boxes) == 0 {
			delete(r.boxes, box.id)
		}
	}
}

// mailbox 扇出模式下单个控制循环的信箱.
type mailbox struct {
	id event.TaskID
	ch chan event.Event
	r  *router
}

func (b *mailbox) TryRecv(ctx context.Context) (event.Event, error) {
	select {
	case ev, ok := <-b.ch:
		if !ok {
			return event.Event{}, rt.ErrClosed
		}
		return ev, nil
	default:
		return event.Event{}, rt.ErrEmpty
	}
}

func (b *mailbox) Recv(ctx context.Context) (event.Event, error) {
	select {
	case ev, ok := <-b.ch:
		if !ok {
			return event.Event{}, rt.ErrClosed
		}
		return ev, nil
	case <-ctx.Done():
		return event.Event{}, ctx.Err()
	}
}

func (b *mailbox) Close() {
	b.r.unregister(b)
}

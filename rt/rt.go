// Package rt 定义调度器所依赖的异步执行环境能力.
//
// 任何执行环境只要提供 Runtime 的三项能力（派生任务、创建控制通道、挂起等待），
// 即可承载调度器.具体绑定位于独立的适配包中（rt/local、channel/...），
// 调度器核心只依赖本包的接口.
//
// 通道语义：接收端可克隆，但所有克隆共享同一队列，
// 每个事件只会被其中一个克隆取走（竞争消费），而不是广播给所有克隆.
package rt

import (
	"context"
	"time"

	"github.com/Tsukikage7/nebulas/event"
)

// DefaultCapacity 控制通道默认容量.
const DefaultCapacity = 512

// Sender 控制通道发送端.
type Sender interface {
	// Send 发送事件.
	// 通道已满时阻塞直到有空间或 ctx 结束；接收端全部关闭后返回 ErrClosed.
	Send(ctx context.Context, ev event.Event) error

	// Close 关闭发送端.
	Close() error
}

// Receiver 控制通道接收端.
type Receiver interface {
	// TryRecv 非阻塞接收.
	// 当前无事件返回 ErrEmpty，通道永久关闭返回 ErrClosed.
	TryRecv(ctx context.Context) (event.Event, error)

	// Recv 阻塞接收，直到收到事件、通道关闭（ErrClosed）或 ctx 结束.
	Recv(ctx context.Context) (event.Event, error)

	// Clone 克隆接收端，克隆与原接收端共享同一队列.
	Clone() Receiver

	// Close 关闭当前接收端句柄.
	Close() error
}

// ChannelFactory 控制通道工厂.
type ChannelFactory func() (Sender, Receiver, error)

// Runtime 异步执行环境.
type Runtime interface {
	// Spawn 派生独立执行的任务并立即返回.
	// 任务的结果与 panic 不会传回调用方.
	Spawn(fn func())

	// Channel 创建新的控制通道.
	Channel() (Sender, Receiver, error)

	// Sleep 挂起当前任务 d 时长，不阻塞底层线程.
	// ctx 提前结束时返回 ctx 的错误.
	Sleep(ctx context.Context, d time.Duration) error
}

// Package semaphore 提供限制任务并发执行数量的信号量.
//
// 本地信号量限制单个进程内的并发，Redis 信号量限制共享同一键的所有进程的并发.
//
//	sem := semaphore.NewLocal(4)
//	s, _ := scheduler.New(local.New(), scheduler.WithConcurrencyLimit(sem))
package semaphore

import "context"

// Semaphore 信号量接口.
type Semaphore interface {
	// Acquire 获取一个许可，没有可用许可时阻塞直到获取成功或 ctx 结束.
	Acquire(ctx context.Context) error

	// TryAcquire 尝试获取一个许可，没有可用许可时立即返回 false.
	TryAcquire(ctx context.Context) bool

	// Release 释放一个许可.
	Release(ctx context.Context) error

	// Available 返回当前可用的许可数量.
	Available(ctx context.Context) (int64, error)

	// Size 返回信号量的总大小.
	Size() int64
}

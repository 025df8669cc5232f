package semaphore

import (
	"context"
	"sync"
)

// Local 本地信号量.
type Local struct {
	size int64
	sem  chan struct{}
	done chan struct{}
	once sync.Once
}

var _ Semaphore = (*Local)(nil)

// NewLocal 创建本地信号量，size 为最大并发数.
func NewLocal(size int64) (*Local, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	return &Local{
		size: size,
		sem:  make(chan struct{}, size),
		done: make(chan struct{}),
	}, nil
}

// Acquire 获取一个许可.
func (s *Local) Acquire(ctx context.Context) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	select {
	case s.sem <- struct{}{}:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire 尝试获取一个许可.
func (s *Local) TryAcquire(context.Context) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release 释放一个许可，没有已占用的许可时忽略.
func (s *Local) Release(context.Context) error {
	select {
	case <-s.sem:
	default:
	}
	return nil
}

// Available 返回当前可用的许可数量.
func (s *Local) Available(context.Context) (int64, error) {
	return s.size - int64(len(s.sem)), nil
}

// Size 返回信号量的总大小.
func (s *Local) Size() int64 {
	return s.size
}

// Close 关闭信号量，等待中的 Acquire 返回 ErrClosed.
func (s *Local) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
